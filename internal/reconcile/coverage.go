package reconcile

import (
	"context"
	"fmt"
	"time"
)

// CoverageGap is an election inside the coverage window with no linked
// candidates. These are enumerated record by record; merging them away would
// hide a correctness defect.
type CoverageGap struct {
	ElectionID   string    `json:"election_id"`
	Title        string    `json:"title"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Date         time.Time `json:"date"`
}

// DefaultCoverageWindow is the lookahead applied when a caller does not
// supply explicit bounds.
const DefaultCoverageWindow = 60 * 24 * time.Hour

// MissingCandidates enumerates every active election whose date falls in
// [from, to] and which has zero linked candidates. The scan is streamed page
// by page so the corpus size never matters.
func (r *Reconciler) MissingCandidates(ctx context.Context, from, to time.Time) ([]CoverageGap, error) {
	if to.Before(from) {
		from, to = to, from
	}

	var gaps []CoverageGap
	cursor := ""
	for {
		page, err := r.store.ListElections(ctx, cursor, 0)
		if err != nil {
			return nil, fmt.Errorf("coverage scan: %w", err)
		}
		for _, e := range page.Records {
			if !e.Active || e.Date.Before(from) || e.Date.After(to) {
				continue
			}
			linked, err := r.store.ListCandidatesByElection(ctx, e.ID)
			if err != nil {
				return nil, fmt.Errorf("coverage scan for election %s: %w", e.ID, err)
			}
			if len(linked) == 0 {
				gaps = append(gaps, CoverageGap{
					ElectionID:   e.ID,
					Title:        e.Title,
					Jurisdiction: e.Jurisdiction,
					Date:         e.Date,
				})
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return gaps, nil
}
