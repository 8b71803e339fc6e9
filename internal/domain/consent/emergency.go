package consent

import (
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

// EmergencyEligible reports whether the request triggers the emergency
// override: emergency-treatment purpose combined with a role whose base
// capability carries the override right.
func EmergencyEligible(req *Request, reg *terminology.Registry) bool {
	if req.Purpose != terminology.PurposeEmergency {
		return false
	}
	return reg.Capability(req.RequesterRole).MayOverrideEmergency
}

// ApplyEmergencyOverride force-allows the requested safety-critical classes,
// clearing any standing deny on them. Classes outside the safety-critical
// set are untouched; they flow through the normal pipeline. The returned
// list names the classes the override opened.
func ApplyEmergencyOverride(ps *PermissionSet, req *Request, reg *terminology.Registry) []string {
	var forced []string
	for _, dt := range req.DataTypes {
		if !reg.IsSafetyCritical(dt) {
			continue
		}
		ps.Reallow(dt)
		forced = append(forced, dt)
	}
	ps.Normalize()
	return forced
}
