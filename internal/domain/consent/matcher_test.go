package consent

import (
	"testing"
	"time"

	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

func TestScoreConsentExactMatch(t *testing.T) {
	req := baseRequest()
	consent := treatmentConsent("c1")

	score, depth := ScoreConsent(req, &consent, testReg)
	if score.Total != 1.0 {
		t.Errorf("total = %v, want 1.0 (breakdown %+v)", score.Total, score)
	}
	if depth != 1 {
		t.Errorf("depth touched = %d, want 1", depth)
	}
}

func TestDataTypeAxisCoverDepths(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.vital-signs"}

	cases := []struct {
		name    string
		classes []string
		want    float64
	}{
		{"exact", []string{"Observation.vital-signs"}, 1.0},
		{"parent class", []string{"Observation"}, 0.7},
		{"parent wildcard", []string{"Observation.*"}, 0.7},
		{"bare wildcard", []string{"*"}, 0.5},
		{"miss", []string{"Condition.diagnosis"}, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			consent := treatmentConsent("c1")
			consent.TopProvision.Classes = tc.classes
			score, _ := ScoreConsent(req, &consent, testReg)
			if score.DataType != tc.want {
				t.Errorf("dataType axis = %v, want %v", score.DataType, tc.want)
			}
		})
	}
}

func TestDataTypeAxisAveragesOverRequestedTypes(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.vital-signs", "Condition.diagnosis"}
	consent := treatmentConsent("c1")
	consent.TopProvision.Classes = []string{"Observation.vital-signs"}

	score, _ := ScoreConsent(req, &consent, testReg)
	if score.DataType != 0.5 {
		t.Errorf("dataType axis = %v, want 0.5 (one of two covered)", score.DataType)
	}
}

func TestPurposeAxis(t *testing.T) {
	req := baseRequest()

	consent := treatmentConsent("c1")
	consent.TopProvision.Purposes = []terminology.Purpose{terminology.PurposeEmergency}
	score, _ := ScoreConsent(req, &consent, testReg)
	if score.Purpose != 0.7 {
		t.Errorf("TREAT vs ETREAT purpose axis = %v, want 0.7", score.Purpose)
	}

	consent.TopProvision.Purposes = []terminology.Purpose{terminology.PurposePayment}
	score, _ = ScoreConsent(req, &consent, testReg)
	if score.Purpose != 0 {
		t.Errorf("TREAT vs HPAYMT purpose axis = %v, want 0 (isolated)", score.Purpose)
	}

	consent.TopProvision.Purposes = nil
	score, _ = ScoreConsent(req, &consent, testReg)
	if score.Purpose != 1 {
		t.Errorf("unconstrained purpose axis = %v, want 1", score.Purpose)
	}
}

func TestRequesterAxis(t *testing.T) {
	req := baseRequest()

	consent := treatmentConsent("c1")
	score, _ := ScoreConsent(req, &consent, testReg)
	if score.Requester != 1 {
		t.Errorf("explicit role match = %v, want 1", score.Requester)
	}

	consent.TopProvision.Actors = []Actor{{Organization: "org-x"}}
	score, _ = ScoreConsent(req, &consent, testReg)
	if score.Requester != 1 {
		t.Errorf("explicit organization match = %v, want 1", score.Requester)
	}

	consent.TopProvision.Actors = []Actor{{Role: terminology.RoleNurse}}
	for _, tc := range []struct {
		rel  Relationship
		want float64
	}{
		{RelationshipNetworkPartner, 0.8},
		{RelationshipActiveReferral, 0.6},
		{RelationshipUnknown, 0.2},
		{"", 0.2},
	} {
		req.Relationship = tc.rel
		score, _ = ScoreConsent(req, &consent, testReg)
		if score.Requester != tc.want {
			t.Errorf("relationship %q = %v, want %v", tc.rel, score.Requester, tc.want)
		}
	}
}

func TestTemporalAxisPartialOverlap(t *testing.T) {
	req := baseRequest()
	req.TimeRange = TimeRange{
		Start: time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
	}
	consent := treatmentConsent("c1")
	consent.DataPeriod = temporal.NewPeriod(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	)

	score, _ := ScoreConsent(req, &consent, testReg)
	if score.Temporal >= 1 || score.Temporal <= 0 {
		t.Errorf("partial overlap temporal axis = %v, want strictly between 0 and 1", score.Temporal)
	}
}

func TestMatchCandidatesThreshold(t *testing.T) {
	req := baseRequest()
	weak := treatmentConsent("weak")
	weak.TopProvision.Classes = []string{"Condition.diagnosis"} // no data-type cover

	if _, ok := MatchCandidates(req, []*Consent{&weak}, testReg, 0.7); ok {
		t.Error("score below threshold must not match")
	}

	strong := treatmentConsent("strong")
	best, ok := MatchCandidates(req, []*Consent{&weak, &strong}, testReg, 0.7)
	if !ok {
		t.Fatal("expected a match")
	}
	if best.Consent.ConsentID != "strong" {
		t.Errorf("best = %q, want strong", best.Consent.ConsentID)
	}
	if best.Score.Total != 1.0 {
		t.Errorf("best total = %v, want 1.0", best.Score.Total)
	}
}

func TestMatchCandidatesDepthTieBreak(t *testing.T) {
	req := baseRequest()
	req.DataTypes = []string{"Observation.vital-signs"}

	shallow := treatmentConsent("aaa-shallow")
	shallow.TopProvision.Classes = []string{"Observation.vital-signs"}

	deep := treatmentConsent("zzz-deep")
	deep.TopProvision.Classes = []string{"Condition.diagnosis"}
	deep.TopProvision.Nested = []Provision{{
		Type:    ProvisionPermit,
		Classes: []string{"Observation.vital-signs"},
	}}

	best, ok := MatchCandidates(req, []*Consent{&shallow, &deep}, testReg, 0.7)
	if !ok {
		t.Fatal("expected a match")
	}
	// Same scores, same period width: the deeper touched provision wins.
	if best.Consent.ConsentID != "zzz-deep" {
		t.Errorf("best = %q, want zzz-deep", best.Consent.ConsentID)
	}
}
