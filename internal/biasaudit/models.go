// Package biasaudit implements the bias audit computation engine: given
// subject records carrying protected-category attributes and a binary
// selection outcome, it computes per-group selection rates, disparate-impact
// ratios against the highest-rate reference group, intersectional
// cross-tabulations, four-fifths adverse-impact flags, and small-sample
// exclusions.
//
// The engine is a pure library: no I/O, no clocks, no shared state. Identical
// inputs always produce identical results.
package biasaudit

import (
	dErrors "equilens/pkg/domain-errors"
)

// CategoryTypeIntersectional is the category_type assigned to rows produced
// by crossing two or more categories.
const CategoryTypeIntersectional = "intersectional"

// DefaultThreshold is the four-fifths adverse-impact threshold applied when a
// config document does not specify one.
const DefaultThreshold = 0.80

// Record is one subject: a mapping from category key (e.g. "sex",
// "race_ethnicity") to a group-name string, plus the selection outcome.
// An absent or empty attribute value means "unknown for this category"; such
// records are excluded from that category's grouping but still count toward
// the applicant total. Records are constructed once by the upstream parser
// and never mutated by the engine.
type Record struct {
	Attributes map[string]string `json:"attributes"`
	Selected   bool              `json:"selected"`
}

// Attribute returns the record's group name for a category key, or "" when
// the value is unknown.
func (r Record) Attribute(key string) string {
	return r.Attributes[key]
}

// CategoryConfig describes one protected category to analyze. Groups lists
// the expected group names for display purposes only; the engine discovers
// actual groups from the data.
type CategoryConfig struct {
	Label  string   `json:"label" yaml:"label"`
	Groups []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// IntersectionalConfig controls cross-tabulated analysis over two or more
// category keys.
type IntersectionalConfig struct {
	Required bool     `json:"required" yaml:"required"`
	Cross    []string `json:"cross,omitempty" yaml:"cross,omitempty"`
}

// AuditConfig declares which categories to analyze, how to cross them, the
// adverse-impact threshold, and the small-sample exclusion fraction. It is
// immutable for the duration of one audit.
type AuditConfig struct {
	Categories           map[string]CategoryConfig `json:"categories" yaml:"categories"`
	Intersectional       IntersectionalConfig      `json:"intersectional" yaml:"intersectional"`
	Threshold            float64                   `json:"threshold" yaml:"threshold"`
	SmallSampleExclusion *float64                  `json:"small_sample_exclusion,omitempty" yaml:"small_sample_exclusion,omitempty"`

	// Metadata is carried through untouched for callers; the engine never
	// reads it.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate rejects structurally invalid configuration. Numeric edge cases in
// the data itself are absorbed into defined behavior, not errors.
func (c AuditConfig) Validate() error {
	if len(c.Categories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "audit config requires at least one category")
	}
	for key, cat := range c.Categories {
		if key == "" {
			return dErrors.New(dErrors.CodeValidation, "category keys cannot be empty")
		}
		if cat.Label == "" {
			return dErrors.Newf(dErrors.CodeValidation, "category %q requires a label", key)
		}
	}
	if c.Intersectional.Required && len(c.Intersectional.Cross) < 2 {
		return dErrors.New(dErrors.CodeValidation, "intersectional analysis requires at least two cross keys")
	}
	for _, key := range c.Intersectional.Cross {
		if key == "" {
			return dErrors.New(dErrors.CodeValidation, "intersectional cross keys cannot be empty")
		}
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return dErrors.New(dErrors.CodeValidation, "threshold must be within [0, 1]")
	}
	if c.SmallSampleExclusion != nil && (*c.SmallSampleExclusion < 0 || *c.SmallSampleExclusion > 1) {
		return dErrors.New(dErrors.CodeValidation, "small_sample_exclusion must be within [0, 1]")
	}
	return nil
}

// GroupResult is the per-group output row.
//
// Invariants: 0 <= SelectionRate <= 1; ApplicantCount >= SelectedCount >= 0;
// ImpactRatio, when non-nil, is within [0, 1].
type GroupResult struct {
	// CategoryType is the category key, or "intersectional" for crossed rows.
	CategoryType string `json:"category_type"`
	// CategoryName is the group name, or the " - "-joined compound name for
	// intersectional rows.
	CategoryName   string   `json:"category_name"`
	ApplicantCount int      `json:"applicant_count"`
	SelectedCount  int      `json:"selected_count"`
	SelectionRate  float64  `json:"selection_rate"`
	ImpactRatio    *float64 `json:"impact_ratio"`
	Excluded       bool     `json:"excluded"`
	Flagged        bool     `json:"flagged"`
}

// CategoryTable is the computed table for one category (or the intersectional
// cross). Rows are sorted by group name ascending.
type CategoryTable struct {
	Title       string        `json:"title"`
	CategoryKey string        `json:"category_key"`
	Rows        []GroupResult `json:"rows"`
	// HighestGroup names the group whose rate anchors the impact-ratio
	// denominator. HighestRate is nil only when every group's rate is 0.
	HighestGroup string   `json:"highest_group"`
	HighestRate  *float64 `json:"highest_rate"`
}

// AuditResult is the sole output of one audit computation. It is returned by
// value and carries no behavior; persistence and rendering are caller
// responsibilities.
type AuditResult struct {
	Tables               []CategoryTable `json:"tables"`
	OverallSelectionRate float64         `json:"overall_selection_rate"`
	TotalApplicants      int             `json:"total_applicants"`
	TotalSelected        int             `json:"total_selected"`
	// UnknownCount is supplied by the caller: rows dropped upstream for
	// missing demographic data. The engine reports it, it does not compute it.
	UnknownCount  int    `json:"unknown_count"`
	FlagsCount    int    `json:"flags_count"`
	ExcludedCount int    `json:"excluded_count"`
	Summary       string `json:"summary"`
}
