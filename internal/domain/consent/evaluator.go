package consent

import (
	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/pkg/fieldpath"
)

// EvaluateProvisions walks the selected consent tree depth-first,
// left-to-right as listed, and accumulates the field-level permission set for
// the request. Nested provisions are exceptions to their parent and take
// precedence; a deny matched at any reachable level wins over a sibling or
// ancestor permit. Provisions whose own data period excludes the requested
// window are skipped along with their children.
func EvaluateProvisions(c *Consent, req *Request) *PermissionSet {
	ps := NewPermissionSet()
	if c == nil || c.TopProvision == nil {
		return ps
	}
	walkProvision(c.TopProvision, req, req.TimeRange.Period(), ps, false)
	ps.Normalize()
	return ps
}

func walkProvision(p *Provision, req *Request, window temporal.Period, ps *PermissionSet, underDeny bool) {
	if p.DataPeriod != nil && !p.DataPeriod.ContainsPeriod(window) {
		return
	}

	if provisionApplies(p, req) {
		matched := matchedClasses(p, req)
		switch p.Type {
		case ProvisionDeny:
			ps.Deny(matched...)
		case ProvisionPermit:
			if underDeny {
				// Exception under a deny parent re-opens the class.
				ps.Reallow(matched...)
			} else {
				ps.Allow(matched...)
			}
		}
	}

	childUnderDeny := p.Type == ProvisionDeny
	for i := range p.Nested {
		walkProvision(&p.Nested[i], req, window, ps, childUnderDeny)
	}
}

// provisionApplies checks the non-class dimensions of a provision against the
// request. An empty constraint matches everything on that dimension.
func provisionApplies(p *Provision, req *Request) bool {
	if len(p.Purposes) > 0 {
		found := false
		for _, purpose := range p.Purposes {
			if purpose == req.Purpose {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.Actors) > 0 {
		found := false
		for _, a := range p.Actors {
			if actorMatches(a, req) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchedClasses resolves the provision's classes (possibly wildcards)
// against the concrete requested data types, preserving request order.
func matchedClasses(p *Provision, req *Request) []string {
	var out []string
	for _, dt := range req.DataTypes {
		for _, class := range p.Classes {
			if fieldpath.Matches(class, dt) {
				out = append(out, dt)
				break
			}
		}
	}
	return out
}

// Coverage reports which requested data types are missing from the allowed
// set after evaluation and filtering.
func Coverage(ps *PermissionSet, req *Request) (missing []string) {
	for _, dt := range req.DataTypes {
		if !ps.IsAllowed(dt) {
			missing = append(missing, dt)
		}
	}
	return missing
}
