package consent

import (
	"testing"
	"time"

	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

func TestEvaluateRootPermit(t *testing.T) {
	req := baseRequest()
	consent := treatmentConsent("c1")

	ps := EvaluateProvisions(&consent, req)
	if !ps.IsAllowed("Patient.demographics") || !ps.IsAllowed("Observation.vital-signs") {
		t.Errorf("root permit should allow both requested classes, got %+v", ps)
	}
	if len(ps.Denied) != 0 {
		t.Errorf("nothing should be denied, got %v", ps.Denied)
	}
}

func TestEvaluateNestedDenyWins(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.vital-signs", "Observation.genetic"}

	consent := treatmentConsent("c1")
	consent.TopProvision.Classes = []string{"Observation.*"}
	consent.TopProvision.Nested = []Provision{
		{Type: ProvisionDeny, Classes: []string{"Observation.genetic"}},
	}

	ps := EvaluateProvisions(&consent, req)
	if !ps.IsAllowed("Observation.vital-signs") {
		t.Error("vital signs should stay allowed")
	}
	if ps.IsAllowed("Observation.genetic") {
		t.Error("nested deny must remove genetic data from allowed")
	}
	if !ps.IsDenied("Observation.genetic") {
		t.Error("genetic data should be recorded as denied")
	}
}

func TestEvaluateSiblingDenyWinsEitherOrder(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.vital-signs"}

	permit := Provision{Type: ProvisionPermit, Classes: []string{"Observation.vital-signs"}}
	deny := Provision{Type: ProvisionDeny, Classes: []string{"Observation.vital-signs"}}

	for _, nested := range [][]Provision{{permit, deny}, {deny, permit}} {
		consent := treatmentConsent("c1")
		consent.TopProvision = &Provision{
			Type:    ProvisionPermit,
			Classes: []string{"Patient.demographics"},
			Nested:  nested,
		}
		ps := EvaluateProvisions(&consent, req)
		if ps.IsAllowed("Observation.vital-signs") {
			t.Errorf("deny must win over a sibling permit (order %v)", nested[0].Type)
		}
	}
}

func TestEvaluatePermitExceptionUnderDeny(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.laboratory"}

	consent := treatmentConsent("c1")
	consent.TopProvision = &Provision{
		Type:    ProvisionDeny,
		Classes: []string{"Observation.*"},
		Nested: []Provision{
			{Type: ProvisionPermit, Classes: []string{"Observation.laboratory"}},
		},
	}

	ps := EvaluateProvisions(&consent, req)
	if !ps.IsAllowed("Observation.laboratory") {
		t.Error("permit exception under a deny parent must re-open the class")
	}
	if ps.IsDenied("Observation.laboratory") {
		t.Error("re-opened class must leave the denied set")
	}
}

func TestEvaluateSkipsProvisionOutsideItsPeriod(t *testing.T) {
	req := baseRequest() // window 2025-03-01 .. 2025-03-02

	stale := temporal.NewPeriod(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	consent := treatmentConsent("c1")
	consent.TopProvision.Nested = []Provision{
		{Type: ProvisionDeny, Classes: []string{"Observation.vital-signs"}, DataPeriod: &stale},
	}

	ps := EvaluateProvisions(&consent, req)
	if !ps.IsAllowed("Observation.vital-signs") {
		t.Error("a deny whose period excludes the request must be skipped")
	}
}

func TestEvaluatePurposeAndActorGating(t *testing.T) {
	req := baseRequest()

	consent := treatmentConsent("c1")
	consent.TopProvision.Purposes = []terminology.Purpose{terminology.PurposeResearch}
	if ps := EvaluateProvisions(&consent, req); !ps.Empty() {
		t.Errorf("provision scoped to another purpose must not apply, got %+v", ps)
	}

	consent = treatmentConsent("c1")
	consent.TopProvision.Actors = []Actor{{Role: terminology.RoleNurse}}
	if ps := EvaluateProvisions(&consent, req); !ps.Empty() {
		t.Errorf("provision scoped to another role must not apply, got %+v", ps)
	}
}

func TestEvaluateEmptyTree(t *testing.T) {
	req := baseRequest()
	consent := treatmentConsent("c1")
	consent.TopProvision = nil

	if ps := EvaluateProvisions(&consent, req); !ps.Empty() {
		t.Error("empty consent tree yields an empty permission set")
	}
}

func TestCoverage(t *testing.T) {
	req := baseRequest()
	ps := NewPermissionSet()
	ps.Allow("Patient.demographics")

	missing := Coverage(ps, req)
	if len(missing) != 1 || missing[0] != "Observation.vital-signs" {
		t.Errorf("missing = %v, want [Observation.vital-signs]", missing)
	}

	ps.Allow("Observation.vital-signs")
	if missing := Coverage(ps, req); len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestPermissionSetInvariant(t *testing.T) {
	ps := NewPermissionSet()
	ps.Allow("a", "b")
	ps.Deny("b")
	ps.Normalize()

	if ps.IsAllowed("b") {
		t.Error("denied path must not stay allowed")
	}
	for _, p := range ps.Allowed {
		if contains(ps.Denied, p) {
			t.Errorf("allowed and denied overlap on %q", p)
		}
	}

	// Allow after deny must not resurrect the path.
	ps.Allow("b")
	if ps.IsAllowed("b") {
		t.Error("plain allow must not override a standing deny")
	}
}
