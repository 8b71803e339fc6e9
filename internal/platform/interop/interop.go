// Package interop renders the engine's outputs as schema-fixed, JSON-shaped
// resources: a Consent snapshot of the final decision and a FHIR-aligned
// AuditEvent. Output bytes are canonicalized per RFC 8785 (recursively
// sorted keys), so identical inputs are byte-comparable.
package interop

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/consentcore/consentcore/internal/platform/temporal"
)

// Resource kinds emitted by the engine.
const (
	ResourceConsent    = "Consent"
	ResourceAuditEvent = "AuditEvent"
)

// REST read coding used on every audit event; the engine only ever observes
// read-shaped access.
const (
	AuditTypeRest = "rest"
	AuditActionR  = "R"
)

// Provenance ties a snapshot back to the matched consent and the engine that
// produced it.
type Provenance struct {
	MatchedConsentID string `json:"matchedConsentId,omitempty"`
	EngineID         string `json:"engineId"`
	RequestID        string `json:"requestId"`
}

// SnapshotProvision is the flattened provision carried on a snapshot: the
// final filtered permissions expressed as classes plus transformations.
type SnapshotProvision struct {
	Type                string   `json:"type"`
	Classes             []string `json:"classes"`
	DeniedClasses       []string `json:"deniedClasses,omitempty"`
	MaskedFields        []string `json:"maskedFields,omitempty"`
	PseudonymizedFields []string `json:"pseudonymizedFields,omitempty"`
}

// ConsentSnapshot is the interoperability artifact emitted for an approved
// decision.
type ConsentSnapshot struct {
	ResourceType  string            `json:"resourceType"`
	Status        string            `json:"status"`
	PatientID     string            `json:"patientId"`
	Purpose       string            `json:"purpose"`
	Period        temporal.Period   `json:"period"`
	Provision     SnapshotProvision `json:"provision"`
	SecurityLabel string            `json:"securityLabel"`
	Expiry        time.Time         `json:"expiry"`
	Provenance    Provenance        `json:"provenance"`
}

// AuditAgent describes the requester on an audit event.
type AuditAgent struct {
	Who          string `json:"who"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
	Network      string `json:"network,omitempty"`
	Requestor    bool   `json:"requestor"`
}

// AuditSource names the emitting engine.
type AuditSource struct {
	Observer string `json:"observer"`
}

// AuditEntity is one referenced artifact on an audit event.
type AuditEntity struct {
	What string `json:"what"`
	Role string `json:"role"`
}

// AuditPurpose is the purpose-of-event coding.
type AuditPurpose struct {
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// AuditEvent is the audit artifact emitted for every validate call.
type AuditEvent struct {
	ResourceType string        `json:"resourceType"`
	EventID      string        `json:"eventId"`
	Type         string        `json:"type"`
	Subtype      string        `json:"subtype"`
	Action       string        `json:"action"`
	Recorded     time.Time     `json:"recorded"`
	Outcome      string        `json:"outcome"`
	OutcomeDesc  string        `json:"outcomeDesc,omitempty"`
	Agent        AuditAgent    `json:"agent"`
	Source       AuditSource   `json:"source"`
	Entity       []AuditEntity `json:"entity"`
	Purpose      AuditPurpose  `json:"purposeOfEvent"`
}

// Canonical marshals v and canonicalizes the bytes per RFC 8785. The result
// is byte-identical for identical inputs.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("interop: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("interop: canonicalize: %w", err)
	}
	return out, nil
}
