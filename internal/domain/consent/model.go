// Package consent implements the consent decision engine: candidate matching
// over a patient's active consents, provision evaluation into a field-level
// permission set, role/purpose/sensitivity/preference filtering, the
// emergency override, and assembly of the final decision bundle.
//
// The engine is stateless per call and shared-nothing. It owns none of its
// inputs; consents and requests are borrowed for the duration of a single
// Validate call and every observable effect travels through the returned
// bundle.
package consent

import (
	"time"

	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

// ConsentStatus is the lifecycle status of a consent record. Only active
// consents are considered by the matcher.
type ConsentStatus string

const (
	StatusDraft          ConsentStatus = "draft"
	StatusProposed       ConsentStatus = "proposed"
	StatusActive         ConsentStatus = "active"
	StatusRejected       ConsentStatus = "rejected"
	StatusInactive       ConsentStatus = "inactive"
	StatusEnteredInError ConsentStatus = "entered-in-error"
)

// ValidStatus reports membership in the closed status enumeration.
func ValidStatus(s ConsentStatus) bool {
	switch s {
	case StatusDraft, StatusProposed, StatusActive, StatusRejected,
		StatusInactive, StatusEnteredInError:
		return true
	}
	return false
}

// ProvisionType is either "permit" or "deny".
type ProvisionType string

const (
	ProvisionPermit ProvisionType = "permit"
	ProvisionDeny   ProvisionType = "deny"
)

// Relationship is the pre-materialized organizational relationship between
// the requester and the consent's custodian. The engine never infers it; the
// caller supplies it on the request.
type Relationship string

const (
	RelationshipExplicit       Relationship = "explicit"
	RelationshipNetworkPartner Relationship = "network-partner"
	RelationshipActiveReferral Relationship = "active-referral"
	RelationshipUnknown        Relationship = "unknown"
)

// TimeRange is the closed data window an access request targets.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Period converts the range to a temporal.Period.
func (tr TimeRange) Period() temporal.Period {
	return temporal.NewPeriod(tr.Start, tr.End)
}

// Request is the access request evaluated against a patient's consents.
type Request struct {
	RequestID             string             `json:"requestId" validate:"required,opaqueid"`
	PatientID             string             `json:"patientId" validate:"required,patientid"`
	RequesterID           string             `json:"requesterId" validate:"required,opaqueid"`
	RequesterOrganization string             `json:"requesterOrganization"`
	RequesterRole         terminology.Role   `json:"requesterRole" validate:"role"`
	DataTypes             []string           `json:"dataTypes" validate:"required,min=1,dive,fieldpath"`
	Purpose               terminology.Purpose `json:"purpose" validate:"purpose"`
	TimeRange             TimeRange          `json:"timeRange"`
	Relationship          Relationship       `json:"relationship,omitempty"`
	EmergencyContext      bool               `json:"emergencyContext"`
	Timestamp             time.Time          `json:"timestamp"`
}

// PatientPreferences carries the patient's standing filtering preferences.
// AllowsMarketing is the explicit opt-in required for HMARKT access.
type PatientPreferences struct {
	MaskDemographic      bool `json:"maskDemographic"`
	NoMarketing          bool `json:"noMarketing"`
	NoResearch           bool `json:"noResearch"`
	ContactEmergencyOnly bool `json:"contactEmergencyOnly"`
	AllowsMarketing      bool `json:"allowsMarketing"`
}

// Actor is a role/organization constraint on a provision. An empty field
// matches everything on that dimension; an actor with both fields empty
// matches no requester.
type Actor struct {
	Role         terminology.Role `json:"role,omitempty"`
	Organization string           `json:"organization,omitempty"`
}

// Provision is a node in a consent tree. Nested provisions are exceptions to
// their parent and take precedence over it.
type Provision struct {
	Type           ProvisionType         `json:"type"`
	Classes        []string              `json:"classes"`
	Codes          []string              `json:"codes,omitempty"`
	Purposes       []terminology.Purpose `json:"purposes,omitempty"`
	Actors         []Actor               `json:"actors,omitempty"`
	SecurityLabels []string              `json:"securityLabels,omitempty"`
	DataPeriod     *temporal.Period      `json:"dataPeriod,omitempty"`
	Nested         []Provision           `json:"nested,omitempty"`
}

// Consent is a patient-authorized policy tree.
type Consent struct {
	ConsentID    string          `json:"consentId" validate:"required,opaqueid"`
	PatientID    string          `json:"patientId" validate:"required,patientid"`
	Status       ConsentStatus   `json:"status"`
	DataPeriod   temporal.Period `json:"dataPeriod"`
	TopProvision *Provision      `json:"topProvision,omitempty"`
}

// DecisionKind is the terminal outcome of a validate call.
type DecisionKind string

const (
	DecisionApproved DecisionKind = "approved"
	DecisionDenied   DecisionKind = "denied"
	DecisionPending  DecisionKind = "pending"
)

// ReasonCode identifies why a decision came out the way it did. The code is
// the stable identifier; the human message is advisory.
type ReasonCode string

const (
	ReasonMatched             ReasonCode = "matched"
	ReasonEmergencyOverride   ReasonCode = "emergency_override"
	ReasonNoMatchingConsent   ReasonCode = "no_matching_consent"
	ReasonPartialCoverage     ReasonCode = "partial_coverage"
	ReasonEmptyPermissions    ReasonCode = "empty_permissions"
	ReasonTemporalOutOfScope  ReasonCode = "temporal_out_of_scope"
	ReasonRoleDenied          ReasonCode = "role_denied"
	ReasonPreferenceDenied    ReasonCode = "preference_denied"
	ReasonMarketingNotAllowed ReasonCode = "marketing_not_allowed"
	ReasonMalformedConsent    ReasonCode = "malformed_consent"
	ReasonReconsentRequired   ReasonCode = "reconsent_required"
)

// Reason pairs the stable code with a human-readable companion string.
type Reason struct {
	Code         ReasonCode `json:"code"`
	HumanMessage string     `json:"humanMessage"`
}

// Restriction is a structured condition attached to an approval.
type Restriction struct {
	Code   string   `json:"code"`
	Fields []string `json:"fields,omitempty"`
}

// AccessHandle is the opaque, non-secret identifier issued on approval. It is
// a lookup key for downstream stores, not a credential, and is never renewed
// by the engine.
type AccessHandle struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ScoreBreakdown records the per-axis match scores for the audit trail.
type ScoreBreakdown struct {
	DataType  float64 `json:"dataType"`
	Purpose   float64 `json:"purpose"`
	Requester float64 `json:"requester"`
	Temporal  float64 `json:"temporal"`
	Total     float64 `json:"total"`
}

// AuditInfo ties the decision back to the request and the matched consent.
type AuditInfo struct {
	RequestFingerprint string         `json:"requestFingerprint"`
	MatchedConsentID   string         `json:"matchedConsentId,omitempty"`
	Score              ScoreBreakdown `json:"scoreBreakdown"`
	EmergencyOverride  bool           `json:"emergencyOverride,omitempty"`
}

// Decision is the engine's structured verdict.
type Decision struct {
	Kind         DecisionKind   `json:"kind"`
	Reason       Reason         `json:"reason"`
	Permissions  *PermissionSet `json:"permissions,omitempty"`
	AccessHandle *AccessHandle  `json:"accessHandle,omitempty"`
	Restrictions []Restriction  `json:"restrictions,omitempty"`
	AuditInfo    AuditInfo      `json:"auditInfo"`
}

// Approved reports whether the decision grants access.
func (d *Decision) Approved() bool {
	return d.Kind == DecisionApproved
}
