// Package audit defines the immutable record emitted once per validate call
// and the sink interface hosts implement to persist it. The engine itself
// performs no I/O; it constructs the record and hands it to the caller (and,
// when configured, to a sink) before the decision is returned.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/consentcore/consentcore/internal/platform/terminology"
)

// Outcome codes, aligned with the FHIR AuditEvent outcome value set.
const (
	OutcomeSuccess = "0"
	OutcomeFailure = "4"
)

// Event subtype markers.
const (
	SubtypeRead       = "read"
	SubtypeBreakGlass = "break-glass"
)

// namespace scopes deterministic event ids to this engine.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("consentcore/audit"))

// Actor identifies the requester that triggered the event.
type Actor struct {
	RequesterID  string `json:"requesterId"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
	NetworkAddr  string `json:"networkAddress,omitempty"`
}

// Entity references the request and the matched consent.
type Entity struct {
	RequestID        string `json:"requestId"`
	PatientID        string `json:"patientId"`
	MatchedConsentID string `json:"matchedConsentId,omitempty"`
}

// Record is the immutable audit record for a single validate invocation.
type Record struct {
	EventID          string    `json:"eventId"`
	RecordedAt       time.Time `json:"recordedAt"`
	DecisionKind     string    `json:"decisionKind"`
	SubjectPatientID string    `json:"subjectPatientId"`
	Actor            Actor     `json:"actor"`
	Entity           Entity    `json:"entity"`
	Outcome          string    `json:"outcome"`
	OutcomeDesc      string    `json:"outcomeDesc,omitempty"`
	Subtype          string    `json:"subtype"`
	PurposeCode      string    `json:"purposeCode"`
	PurposeDisplay   string    `json:"purposeDisplay,omitempty"`
	BreakGlass       bool      `json:"breakGlass,omitempty"`
}

// NewRecord builds a record with a deterministic event id derived from the
// request fingerprint and the injected clock, so identical inputs produce
// identical records.
func NewRecord(fingerprint string, recordedAt time.Time) Record {
	id := uuid.NewSHA1(namespace, []byte(fingerprint+"|"+recordedAt.UTC().Format(time.RFC3339Nano)))
	return Record{
		EventID:    id.String(),
		RecordedAt: recordedAt.UTC(),
		Subtype:    SubtypeRead,
	}
}

// WithPurpose attaches the purpose code and its display name from the
// registry.
func (r Record) WithPurpose(p terminology.Purpose, reg *terminology.Registry) Record {
	r.PurposeCode = string(p)
	if info, ok := reg.PurposeInfo(p); ok {
		r.PurposeDisplay = info.Display
	}
	return r
}

// Sink receives audit records. Implementations must tolerate concurrent
// calls; the engine records at most once per validate invocation.
type Sink interface {
	Record(rec Record) error
}

// MemorySink collects records in memory, primarily for tests and embedding
// hosts that flush in batches.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends the record.
func (s *MemorySink) Record(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
