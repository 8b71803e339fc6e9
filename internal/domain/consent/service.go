package consent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/consentcore/consentcore/internal/platform/audit"
	"github.com/consentcore/consentcore/internal/platform/interop"
	"github.com/consentcore/consentcore/internal/platform/terminology"
)

// Options are the engine's recognized configuration knobs.
type Options struct {
	MinimumMatchThreshold  float64
	ReuseThreshold         float64
	EmergencyCapHours      int
	MaxProvisionNodes      int
	MaxProvisionDepth      int
	StrictTimestampParsing bool
	AllowPending           bool
	EngineID               string
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinimumMatchThreshold:  0.7,
		ReuseThreshold:         0.8,
		EmergencyCapHours:      24,
		MaxProvisionNodes:      256,
		MaxProvisionDepth:      16,
		StrictTimestampParsing: true,
		EngineID:               "consentcore",
	}
}

// Validate rejects inconsistent option combinations.
func (o Options) Validate() error {
	if o.MinimumMatchThreshold < 0 || o.MinimumMatchThreshold > 1 {
		return fmt.Errorf("minimumMatchThreshold must be in [0,1], got %v", o.MinimumMatchThreshold)
	}
	if o.ReuseThreshold < o.MinimumMatchThreshold || o.ReuseThreshold > 1 {
		return fmt.Errorf("reuseThreshold must be in [minimumMatchThreshold,1], got %v", o.ReuseThreshold)
	}
	if o.EmergencyCapHours < 1 {
		return fmt.Errorf("emergencyCapHours must be >= 1, got %d", o.EmergencyCapHours)
	}
	if o.MaxProvisionNodes < 1 || o.MaxProvisionDepth < 1 {
		return fmt.Errorf("provision bounds must be >= 1, got nodes=%d depth=%d", o.MaxProvisionNodes, o.MaxProvisionDepth)
	}
	if o.EngineID == "" {
		return fmt.Errorf("engineID must be set")
	}
	return nil
}

// DecisionBundle is everything a validate call produces: the decision, the
// canonical consent snapshot (approved decisions only), the canonical audit
// event, and the structured audit record behind it.
type DecisionBundle struct {
	Decision        *Decision       `json:"decision"`
	ConsentSnapshot json.RawMessage `json:"consentSnapshot,omitempty"`
	AuditEvent      json.RawMessage `json:"auditEvent"`
	AuditRecord     audit.Record    `json:"auditRecord"`
}

// Engine evaluates access requests against per-patient consent sets. It is
// stateless per call: any number of Validate calls may run in parallel.
type Engine struct {
	opts  Options
	store *terminology.Store
	sink  audit.Sink
}

// NewEngine creates an engine. A nil store gets the default registry; a nil
// sink leaves audit delivery entirely to the caller via the bundle.
func NewEngine(opts Options, store *terminology.Store, sink audit.Sink) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("engine options: %w", err)
	}
	if store == nil {
		store = terminology.NewStore()
	}
	return &Engine{opts: opts, store: store, sink: sink}, nil
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Validate is the primary operation: evaluate one request against the
// patient's consents at the injected instant. Malformed requests surface as
// an *InputError; every authorization outcome surfaces as a decision inside
// the bundle. The audit record is constructed (and delivered to the sink,
// when one is configured) before the bundle is returned.
func (e *Engine) Validate(req *Request, activeConsents []Consent, now time.Time, prefs *PatientPreferences) (*DecisionBundle, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	now = now.UTC()
	reg := e.store.Load()
	info := AuditInfo{RequestFingerprint: Fingerprint(req)}

	var candidates []*Consent
	sawOversized := false
	for i := range activeConsents {
		c := &activeConsents[i]
		if c.Status != StatusActive || c.PatientID != req.PatientID {
			continue
		}
		if !c.DataPeriod.Contains(now) {
			continue
		}
		if !WithinBounds(c, e.opts.MaxProvisionNodes, e.opts.MaxProvisionDepth) {
			sawOversized = true
			continue
		}
		candidates = append(candidates, c)
	}

	eligible := EmergencyEligible(req, reg)

	best, ok := MatchCandidates(req, candidates, reg, e.opts.MinimumMatchThreshold)
	if !ok {
		if bundle := e.emergencyFallback(req, now, reg, info); bundle != nil {
			return bundle, nil
		}
		code := ReasonNoMatchingConsent
		if sawOversized && len(candidates) == 0 {
			code = ReasonMalformedConsent
		}
		return e.emit(NewDenial(code, info), req, nil, now, reg)
	}

	info.MatchedConsentID = best.Consent.ConsentID
	info.Score = best.Score

	if e.opts.AllowPending && best.Score.Total < e.opts.ReuseThreshold {
		pending := &Decision{
			Kind:      DecisionPending,
			Reason:    NewReason(ReasonReconsentRequired),
			AuditInfo: info,
		}
		return e.emit(pending, req, best.Consent, now, reg)
	}

	if !best.Consent.DataPeriod.ContainsPeriod(req.TimeRange.Period()) {
		return e.denyOrOverride(ReasonTemporalOutOfScope, nil, req, now, reg, info)
	}

	ps := EvaluateProvisions(best.Consent, req)
	if ps.Empty() {
		return e.denyOrOverride(ReasonEmptyPermissions, ps, req, now, reg, info)
	}

	filtered, denyReason := ApplyFilters(ps, req, prefs, reg)
	if denyReason != nil {
		return e.denyOrOverride(denyReason.Code, filtered, req, now, reg, info)
	}

	if eligible {
		ApplyEmergencyOverride(filtered, req, reg)
		info.EmergencyOverride = true
	}

	if missing := Coverage(filtered, req); len(missing) > 0 {
		denial := NewDenial(ReasonPartialCoverage, info)
		denial.Permissions = filtered
		return e.emit(denial, req, best.Consent, now, reg)
	}

	expiry := ComputeExpiry(best.Consent, req.Purpose, now, reg, eligible, e.opts.EmergencyCapHours)
	handle := DeriveHandle(req.RequestID, best.Consent.ConsentID, expiry)
	approved := &Decision{
		Kind:         DecisionApproved,
		Reason:       NewReason(ReasonMatched),
		Permissions:  filtered,
		AccessHandle: &handle,
		Restrictions: BuildRestrictions(filtered, eligible),
		AuditInfo:    info,
	}
	return e.emit(approved, req, best.Consent, now, reg)
}

// denyOrOverride produces the denial unless the emergency override can stand
// in for it.
func (e *Engine) denyOrOverride(code ReasonCode, ps *PermissionSet, req *Request, now time.Time, reg *terminology.Registry, info AuditInfo) (*DecisionBundle, error) {
	if bundle := e.emergencyFallback(req, now, reg, info); bundle != nil {
		return bundle, nil
	}
	denial := NewDenial(code, info)
	denial.Permissions = ps
	return e.emit(denial, req, nil, now, reg)
}

// emergencyFallback approves the request through the emergency override when
// the role is eligible and every requested class is safety-critical. The
// override never expands beyond the safety-critical set, so a request mixing
// in other classes falls back to the normal denial. Returns nil when the
// override does not apply.
func (e *Engine) emergencyFallback(req *Request, now time.Time, reg *terminology.Registry, info AuditInfo) *DecisionBundle {
	if !EmergencyEligible(req, reg) {
		return nil
	}
	ps := NewPermissionSet()
	forced := ApplyEmergencyOverride(ps, req, reg)
	if len(forced) != len(req.DataTypes) {
		return nil
	}
	filterBySensitivity(ps, reg.Capability(req.RequesterRole), reg)
	ps.Normalize()

	info.EmergencyOverride = true
	expiry := ComputeExpiry(nil, req.Purpose, now, reg, true, e.opts.EmergencyCapHours)
	handle := DeriveHandle(req.RequestID, info.MatchedConsentID, expiry)
	approved := &Decision{
		Kind:         DecisionApproved,
		Reason:       NewReason(ReasonEmergencyOverride),
		Permissions:  ps,
		AccessHandle: &handle,
		Restrictions: BuildRestrictions(ps, true),
		AuditInfo:    info,
	}
	bundle, err := e.emit(approved, req, nil, now, reg)
	if err != nil {
		return nil
	}
	return bundle
}

// emit finalizes the bundle: it builds the audit record and canonical audit
// event for every decision and the consent snapshot for approvals, and
// delivers the record to the configured sink before returning.
func (e *Engine) emit(d *Decision, req *Request, matched *Consent, now time.Time, reg *terminology.Registry) (*DecisionBundle, error) {
	rec := audit.NewRecord(d.AuditInfo.RequestFingerprint, now).WithPurpose(req.Purpose, reg)
	rec.DecisionKind = string(d.Kind)
	rec.SubjectPatientID = req.PatientID
	rec.Actor = audit.Actor{
		RequesterID:  req.RequesterID,
		Organization: req.RequesterOrganization,
		Role:         string(req.RequesterRole),
	}
	rec.Entity = audit.Entity{
		RequestID:        req.RequestID,
		PatientID:        req.PatientID,
		MatchedConsentID: d.AuditInfo.MatchedConsentID,
	}
	if d.Approved() {
		rec.Outcome = audit.OutcomeSuccess
	} else {
		rec.Outcome = audit.OutcomeFailure
	}
	if d.AuditInfo.EmergencyOverride {
		rec.Subtype = audit.SubtypeBreakGlass
		rec.BreakGlass = true
		rec.OutcomeDesc = fmt.Sprintf("break-glass access by %s (%s)", req.RequesterID, req.RequesterRole)
	}

	event := interop.AuditEvent{
		ResourceType: interop.ResourceAuditEvent,
		EventID:      rec.EventID,
		Type:         interop.AuditTypeRest,
		Subtype:      rec.Subtype,
		Action:       interop.AuditActionR,
		Recorded:     rec.RecordedAt,
		Outcome:      rec.Outcome,
		OutcomeDesc:  rec.OutcomeDesc,
		Agent: interop.AuditAgent{
			Who:          req.RequesterID,
			Organization: req.RequesterOrganization,
			Role:         string(req.RequesterRole),
			Requestor:    true,
		},
		Source: interop.AuditSource{Observer: e.opts.EngineID},
		Entity: []interop.AuditEntity{
			{What: "Patient/" + req.PatientID, Role: "patient"},
			{What: "Request/" + req.RequestID, Role: "query"},
		},
		Purpose: interop.AuditPurpose{Code: rec.PurposeCode, Display: rec.PurposeDisplay},
	}
	if d.AuditInfo.MatchedConsentID != "" {
		event.Entity = append(event.Entity, interop.AuditEntity{
			What: "Consent/" + d.AuditInfo.MatchedConsentID,
			Role: "policy",
		})
	}
	eventBytes, err := interop.Canonical(event)
	if err != nil {
		return nil, err
	}

	var snapshotBytes json.RawMessage
	if d.Approved() {
		snapshot := e.buildSnapshot(d, req, matched, reg)
		snapshotBytes, err = interop.Canonical(snapshot)
		if err != nil {
			return nil, err
		}
	}

	if e.sink != nil {
		if err := e.sink.Record(rec); err != nil {
			return nil, fmt.Errorf("audit sink: %w", err)
		}
	}

	return &DecisionBundle{
		Decision:        d,
		ConsentSnapshot: snapshotBytes,
		AuditEvent:      eventBytes,
		AuditRecord:     rec,
	}, nil
}

func (e *Engine) buildSnapshot(d *Decision, req *Request, matched *Consent, reg *terminology.Registry) interop.ConsentSnapshot {
	period := req.TimeRange.Period()
	if matched != nil {
		period = matched.DataPeriod
	}
	maxSensitivity := 0
	for _, class := range d.Permissions.Allowed {
		if s := reg.Sensitivity(class); s > maxSensitivity {
			maxSensitivity = s
		}
	}
	return interop.ConsentSnapshot{
		ResourceType: interop.ResourceConsent,
		Status:       string(StatusActive),
		PatientID:    req.PatientID,
		Purpose:      string(req.Purpose),
		Period:       period,
		Provision: interop.SnapshotProvision{
			Type:                string(ProvisionPermit),
			Classes:             d.Permissions.Allowed,
			DeniedClasses:       d.Permissions.Denied,
			MaskedFields:        d.Permissions.Masked,
			PseudonymizedFields: d.Permissions.Pseudonymized,
		},
		SecurityLabel: terminology.ConfidentialityLabel(maxSensitivity),
		Expiry:        d.AccessHandle.ExpiresAt,
		Provenance: interop.Provenance{
			MatchedConsentID: d.AuditInfo.MatchedConsentID,
			EngineID:         e.opts.EngineID,
			RequestID:        req.RequestID,
		},
	}
}
