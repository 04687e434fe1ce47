package biasaudit

import (
	"fmt"
	"sort"
	"strings"
)

// Compute runs one full bias audit over the given records.
//
// This is pure domain logic - no I/O, no side effects, no clocks. Identical
// inputs produce an identical AuditResult, so callers may invoke it
// concurrently without coordination.
//
// unknownCount is the number of rows the upstream parser dropped for missing
// demographic data; it is reported, not recomputed.
//
// Errors: only structurally invalid configuration is rejected. All numeric
// edge cases (no records, all-zero selection, empty categories) are absorbed
// into defined behavior.
func Compute(records []Record, config AuditConfig, unknownCount int) (AuditResult, error) {
	if err := config.Validate(); err != nil {
		return AuditResult{}, err
	}

	totalApplicants := len(records)
	totalSelected := 0
	for _, r := range records {
		if r.Selected {
			totalSelected++
		}
	}
	overallRate := 0.0
	if totalApplicants > 0 {
		overallRate = round6(float64(totalSelected) / float64(totalApplicants))
	}

	result := AuditResult{
		OverallSelectionRate: overallRate,
		TotalApplicants:      totalApplicants,
		TotalSelected:        totalSelected,
		UnknownCount:         unknownCount,
	}

	// Map iteration order is random; categories are processed in sorted key
	// order so repeated runs produce identical results.
	keys := make([]string, 0, len(config.Categories))
	for key := range config.Categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		table := buildCategoryTable(records, key, config.Categories[key].Label,
			totalApplicants, config.Threshold, config.SmallSampleExclusion)
		result.Tables = append(result.Tables, table)
	}

	if config.Intersectional.Required && len(config.Intersectional.Cross) >= 2 {
		table := buildIntersectionalTable(records, config.Intersectional.Cross,
			totalApplicants, config.Threshold, config.SmallSampleExclusion)
		result.Tables = append(result.Tables, table)
	}

	for _, table := range result.Tables {
		for _, row := range table.Rows {
			if row.Flagged {
				result.FlagsCount++
			}
			if row.Excluded {
				result.ExcludedCount++
			}
		}
	}

	result.Summary = summarize(result, config.Threshold)
	return result, nil
}

// summarize renders the result as short prose. It must stay deterministic:
// no timestamps, no map iteration.
func summarize(res AuditResult, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audited %d applicants, %d selected (%.1f%% overall selection rate).",
		res.TotalApplicants, res.TotalSelected, res.OverallSelectionRate*100)

	if res.UnknownCount > 0 {
		fmt.Fprintf(&b, " %d records were dropped upstream for missing demographic data.", res.UnknownCount)
	}

	if res.FlagsCount > 0 {
		fmt.Fprintf(&b, " %d adverse impact flag(s) raised at the %.2f impact-ratio threshold.",
			res.FlagsCount, threshold)
	} else {
		b.WriteString(" No adverse impact flags detected.")
	}

	if res.ExcludedCount > 0 {
		fmt.Fprintf(&b, " %d group(s) excluded for small sample size.", res.ExcludedCount)
	}

	return b.String()
}
