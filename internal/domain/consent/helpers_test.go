package consent

import (
	"testing"
	"time"

	"github.com/consentcore/consentcore/internal/platform/audit"
	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

var (
	testNow  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testReg  = terminology.NewRegistry()
	yearStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd   = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
)

func baseRequest() *Request {
	return &Request{
		RequestID:             "req-001",
		PatientID:             "PAT1001",
		RequesterID:           "dr-smith",
		RequesterOrganization: "org-x",
		RequesterRole:         terminology.RolePhysician,
		DataTypes:             []string{"Patient.demographics", "Observation.vital-signs"},
		Purpose:               terminology.PurposeTreatment,
		TimeRange: TimeRange{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		Timestamp: testNow,
	}
}

func treatmentConsent(id string) Consent {
	return Consent{
		ConsentID:  id,
		PatientID:  "PAT1001",
		Status:     StatusActive,
		DataPeriod: temporal.NewPeriod(yearStart, yearEnd),
		TopProvision: &Provision{
			Type:     ProvisionPermit,
			Classes:  []string{"Patient.demographics", "Observation.vital-signs"},
			Purposes: []terminology.Purpose{terminology.PurposeTreatment},
			Actors:   []Actor{{Role: terminology.RolePhysician}},
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *audit.MemorySink) {
	t.Helper()
	sink := audit.NewMemorySink()
	engine, err := NewEngine(DefaultOptions(), terminology.NewStore(), sink)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, sink
}
