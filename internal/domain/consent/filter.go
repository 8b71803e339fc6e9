package consent

import (
	"github.com/consentcore/consentcore/internal/platform/terminology"
	"github.com/consentcore/consentcore/pkg/fieldpath"
)

// Sensitivity level at and above which role mask fields are forced onto an
// allowed class.
const maskingSensitivityFloor = 3

// Identifying fields pseudonymized for research access.
var researchIdentifyingFields = []string{
	"patient.identifier", "patient.name", "patient.contact", "patient.address",
}

// Demographic fields rewritten by the maskDemographic preference.
var demographicFields = []string{
	"patient.name", "patient.address", "patient.birthDate", "patient.telecom",
}

// Detailed clinical fields masked for payment access.
var clinicalDetailFields = []string{
	"observation.value", "condition.note", "diagnosticreport.result",
}

// Data-class roots considered clinical; treatment purposes are narrowed to
// these.
var clinicalRoots = map[string]bool{
	"Patient":            true,
	"Observation":        true,
	"Condition":          true,
	"MedicationRequest":  true,
	"AllergyIntolerance": true,
	"DiagnosticReport":   true,
	"Immunization":       true,
	"Procedure":          true,
}

// ApplyFilters runs the ordered filtering pipeline over a non-empty
// permission set: role capabilities, purpose narrowing, sensitivity masking,
// and patient preferences. Each stage reads and rewrites the set. When a
// stage withdraws every allowed class the returned reason identifies the
// stage; otherwise the reason is nil.
func ApplyFilters(ps *PermissionSet, req *Request, prefs *PatientPreferences, reg *terminology.Registry) (*PermissionSet, *Reason) {
	out := ps.Clone()

	cap := reg.Capability(req.RequesterRole)
	filterByRole(out, cap)
	if out.Empty() {
		out.Normalize()
		return out, &Reason{
			Code:         ReasonRoleDenied,
			HumanMessage: "role capabilities do not permit any of the requested data",
		}
	}

	if reason := filterByPurpose(out, req, prefs); reason != nil {
		out.Normalize()
		return out, reason
	}
	if out.Empty() {
		out.Normalize()
		return out, &Reason{
			Code:         ReasonEmptyPermissions,
			HumanMessage: "purpose narrowing removed every permitted class",
		}
	}

	filterBySensitivity(out, cap, reg)

	if reason := filterByPreferences(out, req, prefs); reason != nil {
		out.Normalize()
		return out, reason
	}

	out.Normalize()
	return out, nil
}

// filterByRole intersects the allowed classes with the role's base
// capability. Denies outrank allows.
func filterByRole(ps *PermissionSet, cap terminology.RoleCapability) {
	for _, class := range append([]string(nil), ps.Allowed...) {
		if cap.DeniesClass(class) || !cap.AllowsClass(class) {
			ps.Deny(class)
		}
	}
}

// filterByPurpose applies purpose-of-use narrowing.
func filterByPurpose(ps *PermissionSet, req *Request, prefs *PatientPreferences) *Reason {
	switch req.Purpose {
	case terminology.PurposeTreatment, terminology.PurposeEmergency:
		for _, class := range append([]string(nil), ps.Allowed...) {
			if !clinicalRoots[fieldpath.Root(class)] {
				ps.Deny(class)
			}
		}
	case terminology.PurposePayment:
		ps.Mask(clinicalDetailFields...)
	case terminology.PurposeResearch:
		ps.Pseudonymize(researchIdentifyingFields...)
	case terminology.PurposeMarketing:
		if prefs == nil || !prefs.AllowsMarketing {
			ps.Deny(append([]string(nil), ps.Allowed...)...)
			return &Reason{
				Code:         ReasonMarketingNotAllowed,
				HumanMessage: "patient has not opted in to marketing access",
			}
		}
	}
	return nil
}

// filterBySensitivity forces the role's mask fields whenever an allowed
// class sits at or above the masking sensitivity floor.
func filterBySensitivity(ps *PermissionSet, cap terminology.RoleCapability, reg *terminology.Registry) {
	for _, class := range ps.Allowed {
		if reg.Sensitivity(class) >= maskingSensitivityFloor {
			ps.Mask(cap.MaskFields...)
			ps.Pseudonymize(cap.PseudonymizeFields...)
		}
	}
}

// filterByPreferences applies the patient's standing preferences.
func filterByPreferences(ps *PermissionSet, req *Request, prefs *PatientPreferences) *Reason {
	if prefs == nil {
		return nil
	}
	if prefs.MaskDemographic {
		ps.Mask(demographicFields...)
	}
	if prefs.NoMarketing && req.Purpose == terminology.PurposeMarketing {
		ps.Deny(append([]string(nil), ps.Allowed...)...)
		return &Reason{
			Code:         ReasonMarketingNotAllowed,
			HumanMessage: "patient preference excludes marketing access",
		}
	}
	if prefs.NoResearch && req.Purpose == terminology.PurposeResearch {
		ps.Deny(append([]string(nil), ps.Allowed...)...)
		return &Reason{
			Code:         ReasonPreferenceDenied,
			HumanMessage: "patient preference excludes research access",
		}
	}
	if prefs.ContactEmergencyOnly && req.Purpose != terminology.PurposeEmergency {
		ps.Mask("patient.contact", "patient.telecom")
	}
	return nil
}
