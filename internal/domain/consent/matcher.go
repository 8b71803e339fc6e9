package consent

import (
	"math"
	"sort"
	"time"

	"github.com/consentcore/consentcore/internal/platform/temporal"
	"github.com/consentcore/consentcore/internal/platform/terminology"
	"github.com/consentcore/consentcore/pkg/fieldpath"
)

// Axis weights of the candidate score. The four axes always sum to 1.
const (
	weightDataType  = 0.4
	weightPurpose   = 0.3
	weightRequester = 0.2
	weightTemporal  = 0.1
)

// Cover scores per match depth on the data-type axis.
const (
	coverScoreExact    = 1.0
	coverScoreParent   = 0.7
	coverScoreWildcard = 0.5
)

// BestMatch is the matcher's verdict: the selected consent and the score
// breakdown recorded into the audit trail.
type BestMatch struct {
	Consent *Consent
	Score   ScoreBreakdown
}

// candidate carries the tie-break keys alongside the score.
type candidate struct {
	consent      *Consent
	score        ScoreBreakdown
	depthTouched int
	periodWidth  time.Duration
}

// MatchCandidates scores every candidate consent against the request and
// returns the best one at or above the minimum threshold. Candidates must
// already be filtered to active status and a data period containing now.
// Ties break on narrower data period, then deeper provision depth touched,
// then lexicographic consent id, so selection is deterministic.
func MatchCandidates(req *Request, candidates []*Consent, reg *terminology.Registry, minThreshold float64) (*BestMatch, bool) {
	scored := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		breakdown, depth := ScoreConsent(req, c, reg)
		if breakdown.Total < minThreshold {
			continue
		}
		scored = append(scored, candidate{
			consent:      c,
			score:        breakdown,
			depthTouched: depth,
			periodWidth:  periodWidth(c.DataPeriod),
		})
	}
	if len(scored) == 0 {
		return nil, false
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score.Total != b.score.Total {
			return a.score.Total > b.score.Total
		}
		if a.periodWidth != b.periodWidth {
			return a.periodWidth < b.periodWidth
		}
		if a.depthTouched != b.depthTouched {
			return a.depthTouched > b.depthTouched
		}
		return a.consent.ConsentID < b.consent.ConsentID
	})

	best := scored[0]
	return &BestMatch{Consent: best.consent, Score: best.score}, true
}

// ScoreConsent computes the weighted four-axis score of one consent against
// the request, returning the breakdown and the deepest provision level that
// covered a requested data type (a tie-break key).
func ScoreConsent(req *Request, c *Consent, reg *terminology.Registry) (ScoreBreakdown, int) {
	dt, depth := dataTypeScore(req, c)
	p := purposeScore(req, c, reg)
	r := requesterScore(req, c)
	t := temporalScore(req, c)

	breakdown := ScoreBreakdown{
		DataType:  dt,
		Purpose:   p,
		Requester: r,
		Temporal:  t,
	}
	total := weightDataType*dt + weightPurpose*p + weightRequester*r + weightTemporal*t
	// Guard against float drift so threshold comparisons stay stable.
	breakdown.Total = math.Round(total*1e9) / 1e9
	return breakdown, depth
}

// dataTypeScore is the mean, over requested types, of the best cover any
// provision class offers: exact 1.0, parent class 0.7, wildcard 0.5, miss 0.
func dataTypeScore(req *Request, c *Consent) (float64, int) {
	if len(req.DataTypes) == 0 || c.TopProvision == nil {
		return 0, 0
	}
	var sum float64
	deepest := 0
	for _, dt := range req.DataTypes {
		best, depth := bestCover(c.TopProvision, dt, 1)
		sum += best
		if best > 0 && depth > deepest {
			deepest = depth
		}
	}
	return sum / float64(len(req.DataTypes)), deepest
}

func bestCover(p *Provision, dataType string, level int) (float64, int) {
	var best float64
	bestDepth := 0
	for _, class := range p.Classes {
		var s float64
		switch fieldpath.CoverOf(class, dataType) {
		case fieldpath.CoverExact:
			s = coverScoreExact
		case fieldpath.CoverParent:
			s = coverScoreParent
		case fieldpath.CoverWildcard:
			s = coverScoreWildcard
		}
		if s > best {
			best = s
			bestDepth = level
		}
	}
	for i := range p.Nested {
		s, d := bestCover(&p.Nested[i], dataType, level+1)
		if s > best || (s == best && s > 0 && d > bestDepth) {
			best = s
			bestDepth = d
		}
	}
	return best, bestDepth
}

// purposeScore is the best compatibility between the requested purpose and
// any purpose named in the tree. A tree with no purpose constraints applies
// to every purpose and scores 1.0.
func purposeScore(req *Request, c *Consent, reg *terminology.Registry) float64 {
	purposes := collectPurposes(c.TopProvision, nil)
	if len(purposes) == 0 {
		return 1
	}
	var best float64
	for _, p := range purposes {
		if s := reg.Compatibility(req.Purpose, p); s > best {
			best = s
		}
	}
	return best
}

func collectPurposes(p *Provision, acc []terminology.Purpose) []terminology.Purpose {
	if p == nil {
		return acc
	}
	acc = append(acc, p.Purposes...)
	for i := range p.Nested {
		acc = collectPurposes(&p.Nested[i], acc)
	}
	return acc
}

// requesterScore intersects the tree's actor constraints with the requester.
// An explicit role or organization match scores 1.0, as does a tree with no
// actor constraints at all. Otherwise the pre-materialized organizational
// relationship on the request decides: network partner 0.8, active referral
// 0.6, unknown 0.2.
func requesterScore(req *Request, c *Consent) float64 {
	actors := collectActors(c.TopProvision, nil)
	if len(actors) == 0 {
		return 1
	}
	for _, a := range actors {
		if actorMatches(a, req) {
			return 1
		}
	}
	return relationshipScore(req.Relationship)
}

func collectActors(p *Provision, acc []Actor) []Actor {
	if p == nil {
		return acc
	}
	acc = append(acc, p.Actors...)
	for i := range p.Nested {
		acc = collectActors(&p.Nested[i], acc)
	}
	return acc
}

func actorMatches(a Actor, req *Request) bool {
	if a.Role != "" && a.Role != req.RequesterRole {
		return false
	}
	if a.Organization != "" && a.Organization != req.RequesterOrganization {
		return false
	}
	return a.Role != "" || a.Organization != ""
}

func relationshipScore(r Relationship) float64 {
	switch r {
	case RelationshipExplicit:
		return 1
	case RelationshipNetworkPartner:
		return 0.8
	case RelationshipActiveReferral:
		return 0.6
	default:
		return 0.2
	}
}

// temporalScore is 1.0 when the requested window lies entirely within the
// consent's data period and decays linearly with the uncovered fraction.
func temporalScore(req *Request, c *Consent) float64 {
	reqPeriod := req.TimeRange.Period()
	if c.DataPeriod.ContainsPeriod(reqPeriod) {
		return 1
	}
	return c.DataPeriod.OverlapFraction(reqPeriod)
}

// periodWidth orders consents by how narrow their data period is; unbounded
// periods sort as widest.
func periodWidth(p temporal.Period) time.Duration {
	if d, ok := p.Duration(); ok {
		return d
	}
	return time.Duration(math.MaxInt64)
}
