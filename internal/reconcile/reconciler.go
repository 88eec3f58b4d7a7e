// Package reconcile links externally-sourced candidate descriptors to
// canonical election records. Under-coverage is a correctness defect here:
// elections without linked candidates are enumerated explicitly, and
// ambiguous fuzzy matches are reported unresolved rather than guessed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"steward/internal/election/models"
	"steward/internal/election/store"
)

// Match methods in pipeline priority order.
type MatchMethod string

const (
	MethodExternalID MatchMethod = "external_id"
	MethodExactName  MatchMethod = "exact_name"
	MethodFuzzyName  MatchMethod = "fuzzy_name"
)

// Unresolved reasons.
const (
	ReasonNoMatch   = "no_match"
	ReasonAmbiguous = "ambiguous"
)

// Match links one source descriptor to at most one canonical election. It is
// transient: only an accepted linkage (a CandidateRecord) is ever persisted.
type Match struct {
	Source     models.SourceCandidate `json:"source"`
	ElectionID string                 `json:"election_id,omitempty"`
	// CandidateID is set when the source resolved to an already-linked
	// candidacy rather than a bare election.
	CandidateID string      `json:"candidate_id,omitempty"`
	Confidence  float64     `json:"confidence"`
	Method      MatchMethod `json:"method,omitempty"`
	Unresolved  bool        `json:"unresolved"`
	Reason      string      `json:"reason,omitempty"`
}

// Config holds the matching constants. With the 0.6 token-overlap / 0.4
// edit-similarity blend, a single-typo surname scores about 0.56 and a
// dropped middle name about 0.66, while unrelated names stay under 0.35.
// The 0.55 default accepts the former two and rejects the latter; score ties
// closer than 0.03 are not trustworthy enough to break on score alone.
type Config struct {
	Threshold float64
	TieMargin float64
}

const (
	DefaultThreshold = 0.55
	DefaultTieMargin = 0.03
)

// Reconciler matches source candidates against the canonical record set.
// It reads from the store only; persisting accepted linkages is an explicit
// separate step (ApplyMatches).
type Reconciler struct {
	store     store.RecordStore
	threshold float64
	tieMargin float64
	logger    *slog.Logger
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		if cfg.Threshold > 0 {
			r.threshold = cfg.Threshold
		}
		if cfg.TieMargin > 0 {
			r.tieMargin = cfg.TieMargin
		}
	}
}

func New(recordStore store.RecordStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     recordStore,
		threshold: DefaultThreshold,
		tieMargin: DefaultTieMargin,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// indexedCandidate is one already-linked candidacy with its election context
// denormalized for matching.
type indexedCandidate struct {
	candidateID  string
	electionID   string
	normName     string
	jurisdiction string
	office       string
	electionDate time.Time
}

type matchIndex struct {
	byExternalID map[string]*models.ElectionRecord
	candidates   []indexedCandidate
}

// buildIndex streams the corpus page by page into a compact in-memory match
// index. Only normalized names and ids are retained, not full records.
func (r *Reconciler) buildIndex(ctx context.Context) (*matchIndex, error) {
	idx := &matchIndex{byExternalID: make(map[string]*models.ElectionRecord)}

	elections := make(map[string]*models.ElectionRecord)
	cursor := ""
	for {
		page, err := r.store.ListElections(ctx, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("index elections: %w", err)
		}
		for _, e := range page.Records {
			elections[e.ID] = e
			if e.ExternalID != "" {
				idx.byExternalID[e.ExternalID] = e
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	cursor = ""
	for {
		page, err := r.store.ListCandidates(ctx, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("index candidates: %w", err)
		}
		for _, c := range page.Records {
			e, ok := elections[c.ElectionID]
			if !ok {
				// Orphaned candidacy; coverage checks will surface the
				// election side, nothing to index here.
				continue
			}
			idx.candidates = append(idx.candidates, indexedCandidate{
				candidateID:  c.ID,
				electionID:   e.ID,
				normName:     NormalizeName(c.Name),
				jurisdiction: e.Jurisdiction,
				office:       normalizeOffice(e.Office),
				electionDate: e.Date,
			})
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return idx, nil
}

// Reconcile runs the matching pipeline over a batch of source descriptors.
// First match wins per source: external id, then exact normalized name
// within jurisdiction+office, then bounded fuzzy match.
func (r *Reconciler) Reconcile(ctx context.Context, sources []models.SourceCandidate) ([]Match, error) {
	ctx, span := otel.Tracer("steward/reconcile").Start(ctx, "reconcile.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("source_count", len(sources)))

	idx, err := r.buildIndex(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(sources))
	unresolved := 0
	for i := range sources {
		m := r.matchOne(idx, sources[i])
		if m.Unresolved {
			unresolved++
		}
		matches = append(matches, m)
	}

	span.SetAttributes(attribute.Int("unresolved_count", unresolved))
	r.logger.InfoContext(ctx, "reconciliation batch complete",
		"sources", len(sources),
		"unresolved", unresolved,
	)
	return matches, nil
}

func (r *Reconciler) matchOne(idx *matchIndex, src models.SourceCandidate) Match {
	// Step 1: canonical external identifier already stored against an election.
	if src.ExternalID != "" {
		if e, ok := idx.byExternalID[src.ExternalID]; ok {
			return Match{Source: src, ElectionID: e.ID, Confidence: 1, Method: MethodExternalID}
		}
	}

	normName := NormalizeName(src.Name)
	if normName == "" {
		return Match{Source: src, Unresolved: true, Reason: ReasonNoMatch}
	}
	srcOffice := normalizeOffice(src.Office)

	// Step 2: exact normalized name + jurisdiction + office.
	var exact []indexedCandidate
	for _, c := range idx.candidates {
		if c.normName == normName && r.scopeMatches(src, srcOffice, c) {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		if winner, ok := r.breakTie(exact, src, normName); ok {
			return Match{
				Source: src, ElectionID: winner.electionID, CandidateID: winner.candidateID,
				Confidence: 1, Method: MethodExactName,
			}
		}
		return Match{Source: src, Unresolved: true, Reason: ReasonAmbiguous}
	}

	// Step 3: bounded fuzzy match within the same jurisdiction and office.
	type scored struct {
		cand  indexedCandidate
		score float64
	}
	var (
		candidates []scored
		bestScore  float64
	)
	for _, c := range idx.candidates {
		if !r.scopeMatches(src, srcOffice, c) {
			continue
		}
		score := similarity(normName, c.normName)
		if score < r.threshold {
			continue
		}
		candidates = append(candidates, scored{cand: c, score: score})
		if score > bestScore {
			bestScore = score
		}
	}
	if len(candidates) == 0 {
		return Match{Source: src, Unresolved: true, Reason: ReasonNoMatch}
	}

	// Everything within the tie margin of the best score competes in the
	// tie-break; a clear winner above the margin stands alone.
	var best []indexedCandidate
	for _, s := range candidates {
		if s.score >= bestScore-r.tieMargin {
			best = append(best, s.cand)
		}
	}
	winner, ok := r.breakTie(best, src, normName)
	if !ok {
		return Match{Source: src, Unresolved: true, Reason: ReasonAmbiguous}
	}
	return Match{
		Source: src, ElectionID: winner.electionID, CandidateID: winner.candidateID,
		Confidence: bestScore, Method: MethodFuzzyName,
	}
}

// scopeMatches restricts matching to the source's jurisdiction and office.
// Empty source fields act as wildcards because scrapes frequently omit them.
func (r *Reconciler) scopeMatches(src models.SourceCandidate, srcOffice string, c indexedCandidate) bool {
	if src.Jurisdiction != "" && src.Jurisdiction != c.jurisdiction {
		return false
	}
	if srcOffice != "" && srcOffice != c.office {
		return false
	}
	return true
}

// breakTie picks a single winner from tied candidates: nearest election date
// to the source's stated date first, then lowest edit distance. A residual
// tie is ambiguity, not a coin flip.
func (r *Reconciler) breakTie(tied []indexedCandidate, src models.SourceCandidate, normName string) (indexedCandidate, bool) {
	if len(tied) == 1 {
		return tied[0], true
	}

	if src.ElectionDate != nil {
		bestGap := math.MaxFloat64
		var nearest []indexedCandidate
		for _, c := range tied {
			gap := math.Abs(c.electionDate.Sub(*src.ElectionDate).Hours())
			switch {
			case gap < bestGap:
				nearest = []indexedCandidate{c}
				bestGap = gap
			case gap == bestGap:
				nearest = append(nearest, c)
			}
		}
		tied = nearest
		if len(tied) == 1 {
			return tied[0], true
		}
	}

	bestDist := math.MaxInt
	var closest []indexedCandidate
	for _, c := range tied {
		d := levenshtein(normName, c.normName)
		switch {
		case d < bestDist:
			closest = []indexedCandidate{c}
			bestDist = d
		case d == bestDist:
			closest = append(closest, c)
		}
	}
	if len(closest) == 1 {
		return closest[0], true
	}
	return indexedCandidate{}, false
}

// ApplyMatches persists accepted linkages: every resolved match that points
// at a bare election (no existing candidacy) becomes a new CandidateRecord.
// Matches that resolved to an existing candidate are already linked and left
// alone.
func (r *Reconciler) ApplyMatches(ctx context.Context, matches []Match) ([]*models.CandidateRecord, error) {
	var created []*models.CandidateRecord
	for _, m := range matches {
		if m.Unresolved || m.CandidateID != "" || m.ElectionID == "" {
			continue
		}
		rec := &models.CandidateRecord{
			ID:         uuid.NewString(),
			ExternalID: m.Source.ExternalID,
			Name:       m.Source.Name,
			Party:      m.Source.Party,
			ElectionID: m.ElectionID,
		}
		if err := r.store.PutCandidate(ctx, rec); err != nil {
			return created, fmt.Errorf("apply match for %q: %w", m.Source.Name, err)
		}
		created = append(created, rec)
	}
	return created, nil
}
