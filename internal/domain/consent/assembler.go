package consent

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/consentcore/consentcore/internal/platform/terminology"
)

// handleSalt versions the access-handle derivation. Bump when the derivation
// input tuple changes so downstream stores can discriminate generations.
const handleSalt = "consentcore-handle-v1"

// Restriction codes attached to approvals.
const (
	RestrictionMask            = "mask"
	RestrictionPseudonymize    = "pseudonymize"
	RestrictionEmergencyExpiry = "emergency-expiry-24h"
)

// Fingerprint derives a stable digest of the request tuple for the audit
// trail. Inputs in the same order always produce the same fingerprint.
func Fingerprint(req *Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%d|%d|%t",
		req.RequestID, req.PatientID, req.RequesterID, req.RequesterOrganization,
		req.RequesterRole, req.Purpose, strings.Join(req.DataTypes, ","),
		req.TimeRange.Start.UTC().UnixNano(), req.TimeRange.End.UTC().UnixNano(),
		req.EmergencyContext)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// DeriveHandle produces the opaque access handle: a collision-resistant
// digest of (requestId, consentId, expiry, versioned salt). The handle
// carries no secrets and is not signed; hosts that need signatures wrap it.
func DeriveHandle(requestID, consentID string, expiry time.Time) AccessHandle {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		requestID, consentID, expiry.UTC().Format(time.RFC3339Nano), handleSalt)
	return AccessHandle{
		ID:        base64.RawURLEncoding.EncodeToString(h.Sum(nil)),
		ExpiresAt: expiry.UTC(),
	}
}

// ComputeExpiry applies the expiry min-rule: the consent period end when
// bounded, now plus the purpose default duration, and the emergency cap when
// the override triggered.
func ComputeExpiry(matched *Consent, purpose terminology.Purpose, now time.Time, reg *terminology.Registry, emergency bool, capHours int) time.Time {
	expiry := time.Time{}
	if info, ok := reg.PurposeInfo(purpose); ok {
		expiry = now.Add(info.DefaultDuration)
	} else {
		expiry = now
	}
	if matched != nil && matched.DataPeriod.End != nil && matched.DataPeriod.End.Before(expiry) {
		expiry = *matched.DataPeriod.End
	}
	if emergency {
		if capped := now.Add(time.Duration(capHours) * time.Hour); capped.Before(expiry) {
			expiry = capped
		}
	}
	return expiry.UTC()
}

// BuildRestrictions renders the structured restriction list from the final
// permission set plus the emergency marker.
func BuildRestrictions(ps *PermissionSet, emergency bool) []Restriction {
	var out []Restriction
	if len(ps.Masked) > 0 {
		fields := append([]string(nil), ps.Masked...)
		sort.Strings(fields)
		out = append(out, Restriction{Code: RestrictionMask, Fields: fields})
	}
	if len(ps.Pseudonymized) > 0 {
		fields := append([]string(nil), ps.Pseudonymized...)
		sort.Strings(fields)
		out = append(out, Restriction{Code: RestrictionPseudonymize, Fields: fields})
	}
	if emergency {
		out = append(out, Restriction{Code: RestrictionEmergencyExpiry})
	}
	return out
}

// reasonText is the human companion string for each closed reason code.
var reasonText = map[ReasonCode]string{
	ReasonMatched:             "request matched an active consent",
	ReasonEmergencyOverride:   "emergency override granted access to safety-critical data",
	ReasonNoMatchingConsent:   "no active consent matched the request",
	ReasonPartialCoverage:     "consent does not cover every requested data type",
	ReasonEmptyPermissions:    "consent evaluation produced no permitted data",
	ReasonTemporalOutOfScope:  "requested time range is outside the consent period",
	ReasonRoleDenied:          "role capabilities do not permit the requested data",
	ReasonPreferenceDenied:    "patient preference denies this access",
	ReasonMarketingNotAllowed: "patient has not opted in to marketing access",
	ReasonMalformedConsent:    "consent tree exceeds the supported size bounds",
	ReasonReconsentRequired:   "match score requires explicit reconsent",
}

// NewReason pairs a code with its standard human message.
func NewReason(code ReasonCode) Reason {
	return Reason{Code: code, HumanMessage: reasonText[code]}
}

// NewDenial builds a denied decision carrying the audit context accumulated
// so far.
func NewDenial(code ReasonCode, info AuditInfo) *Decision {
	return &Decision{
		Kind:      DecisionDenied,
		Reason:    NewReason(code),
		AuditInfo: info,
	}
}
