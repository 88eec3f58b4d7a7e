// Package rules evaluates a single election record against jurisdiction
// election law. This is pure domain logic - no I/O, no side effects. Every
// rule runs independently and all violations are collected; nothing
// short-circuits.
package rules

import (
	"fmt"
	"strings"
	"time"

	"steward/internal/election/models"
)

// Violation codes. These are stable identifiers consumed by policies and
// dashboards; renaming one is a breaking change.
const (
	CodeInvalidFederalDate  = "invalid_federal_date"
	CodeMissingProclamation = "missing_proclamation"
	CodeMockDataDetected    = "mock_data_detected"
	CodeInvalidState        = "invalid_state"
	CodeUnrealisticDate     = "unrealistic_date"
)

// Violation is a structured finding, not an error. It is always returned,
// never thrown.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// SkippedCheck reports a rule that could not run because the record is
// missing the fields it needs. Skips do not abort anything.
type SkippedCheck struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// Result aggregates everything the validator has to say about one record.
type Result struct {
	Violations []Violation    `json:"violations"`
	Skipped    []SkippedCheck `json:"skipped,omitempty"`
}

// mockWords is the fixed denylist of placeholder words. A title or
// description containing any of these is flagged regardless of every other
// rule's outcome.
var mockWords = []string{"test", "demo", "example", "placeholder", "mock", "sample", "dummy"}

// maxYearDrift bounds how far an election date may sit from the evaluation
// year before it is considered unrealistic.
const maxYearDrift = 4

// Config carries the jurisdiction-specific inputs the validator needs. It is
// constructed once at startup from configuration and never mutated.
type Config struct {
	// SaturdayJurisdictions is the set of state codes whose elections must
	// fall on a Saturday (e.g. Louisiana).
	SaturdayJurisdictions map[string]bool
}

// Validator applies the full rule set to election records.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	if cfg.SaturdayJurisdictions == nil {
		cfg.SaturdayJurisdictions = map[string]bool{}
	}
	return &Validator{cfg: cfg}
}

// Validate runs every rule against one election. now supplies the evaluation
// time so results are reproducible in tests.
func (v *Validator) Validate(e *models.ElectionRecord, now time.Time) Result {
	var res Result

	v.checkJurisdictionFormat(e, &res)
	v.checkMockData(e, &res)

	if e.Date.IsZero() {
		res.Skipped = append(res.Skipped,
			SkippedCheck{Check: "weekday", Reason: "malformed: date missing"},
			SkippedCheck{Check: "temporal_sanity", Reason: "malformed: date missing"},
		)
	} else {
		v.checkWeekday(e, &res)
		v.checkTemporalSanity(e, now, &res)
	}

	v.checkProclamation(e, &res)
	return res
}

// checkWeekday enforces the Saturday rule for Saturday-only jurisdictions and
// the federal November-Tuesday rule everywhere else.
//
// The federal rule is intentionally narrow: it checks "November + wrong
// weekday", not the statutory "first Tuesday after the first Monday"
// computation. Tightening it would change which records flag, so the narrow
// form is kept until the owning team confirms the stricter semantics.
func (v *Validator) checkWeekday(e *models.ElectionRecord, res *Result) {
	if v.cfg.SaturdayJurisdictions[e.Jurisdiction] {
		if e.Date.Weekday() != time.Saturday {
			res.Violations = append(res.Violations, Violation{
				Code:    fmt.Sprintf("invalid_%s_date", strings.ToLower(e.Jurisdiction)),
				Message: fmt.Sprintf("%s elections must be held on a Saturday, got %s", e.Jurisdiction, e.Date.Weekday()),
				Field:   "date",
			})
		}
		return
	}

	if e.Level == models.LevelFederal && e.Type == models.TypeGeneral &&
		e.Date.Month() == time.November && e.Date.Weekday() != time.Tuesday {
		res.Violations = append(res.Violations, Violation{
			Code:    CodeInvalidFederalDate,
			Message: fmt.Sprintf("federal general elections in November must fall on a Tuesday, got %s", e.Date.Weekday()),
			Field:   "date",
		})
	}
}

// checkProclamation requires governor-proclamation provenance for federal
// special elections held in Saturday-only jurisdictions.
func (v *Validator) checkProclamation(e *models.ElectionRecord, res *Result) {
	if e.Level != models.LevelFederal || e.Type != models.TypeSpecial {
		return
	}
	if !v.cfg.SaturdayJurisdictions[e.Jurisdiction] {
		return
	}
	if e.Provenance == nil ||
		e.Provenance.Type != models.ProvenanceGovernorProclamation ||
		strings.TrimSpace(e.Provenance.URL) == "" {
		res.Violations = append(res.Violations, Violation{
			Code:    CodeMissingProclamation,
			Message: fmt.Sprintf("federal special election in %s requires governor proclamation provenance with a source URL", e.Jurisdiction),
			Field:   "provenance",
		})
	}
}

// checkMockData flags any title or description containing a denylisted
// placeholder word. Case-insensitive substring match, first hit named.
func (v *Validator) checkMockData(e *models.ElectionRecord, res *Result) {
	haystack := strings.ToLower(e.Title + " " + e.Description)
	for _, word := range mockWords {
		if strings.Contains(haystack, word) {
			res.Violations = append(res.Violations, Violation{
				Code:    CodeMockDataDetected,
				Message: fmt.Sprintf("title or description contains placeholder word %q", word),
				Field:   "title",
			})
			return
		}
	}
}

// checkJurisdictionFormat requires a two-letter uppercase state code when a
// jurisdiction is present at all. Empty means federal-only and is legal.
func (v *Validator) checkJurisdictionFormat(e *models.ElectionRecord, res *Result) {
	if e.Jurisdiction == "" {
		return
	}
	if len(e.Jurisdiction) != 2 || strings.ToUpper(e.Jurisdiction) != e.Jurisdiction {
		res.Violations = append(res.Violations, Violation{
			Code:    CodeInvalidState,
			Message: fmt.Sprintf("jurisdiction must be a two-letter uppercase state code, got %q", e.Jurisdiction),
			Field:   "jurisdiction",
		})
	}
}

// checkTemporalSanity flags dates more than maxYearDrift years away from the
// evaluation year in either direction.
func (v *Validator) checkTemporalSanity(e *models.ElectionRecord, now time.Time, res *Result) {
	drift := e.Date.Year() - now.Year()
	if drift < 0 {
		drift = -drift
	}
	if drift > maxYearDrift {
		res.Violations = append(res.Violations, Violation{
			Code:    CodeUnrealisticDate,
			Message: fmt.Sprintf("election year %d is more than %d years from %d", e.Date.Year(), maxYearDrift, now.Year()),
			Field:   "date",
		})
	}
}
