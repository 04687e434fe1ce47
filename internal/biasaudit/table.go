package biasaudit

import (
	"math"
	"sort"
)

// groupCount accumulates per-group tallies during grouping.
type groupCount struct {
	applicants int
	selected   int
}

// round6 rounds to six decimal places, the precision all reported rates and
// ratios carry.
func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

// buildCategoryTable groups records by one category's values and computes
// selection rate, reference group, and impact ratio per group. Records whose
// value for categoryKey is empty are skipped from grouping but still count in
// totalApplicants (the caller passes the full record count).
func buildCategoryTable(records []Record, categoryKey, categoryLabel string, totalApplicants int, threshold float64, smallSampleExclusion *float64) CategoryTable {
	groups := make(map[string]*groupCount)
	for _, r := range records {
		name := r.Attribute(categoryKey)
		if name == "" {
			continue
		}
		g := groups[name]
		if g == nil {
			g = &groupCount{}
			groups[name] = g
		}
		g.applicants++
		if r.Selected {
			g.selected++
		}
	}

	rows, highestGroup, highestRate := tabulate(categoryKey, groups, totalApplicants, threshold, smallSampleExclusion)
	return CategoryTable{
		Title:        categoryLabel,
		CategoryKey:  categoryKey,
		Rows:         rows,
		HighestGroup: highestGroup,
		HighestRate:  highestRate,
	}
}

// tabulate turns grouped tallies into ordered result rows. It makes two
// passes over the groups in lexicographic name order:
//
// Pass one selects the reference group using strict greater-than, so ties go
// to the alphabetically first group with the maximum rate. This pass considers
// every group, including ones pass two will mark excluded for small sample
// size; a tiny group's high rate still anchors the four-fifths comparison even
// though its own ratio is suppressed. Observed behavior, kept as is.
//
// Pass two assigns impact ratios and flags against that reference.
func tabulate(categoryType string, groups map[string]*groupCount, totalApplicants int, threshold float64, smallSampleExclusion *float64) ([]GroupResult, string, *float64) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	rates := make(map[string]float64, len(groups))
	highestGroup := ""
	highestRate := 0.0
	seenPositive := false
	for _, name := range names {
		g := groups[name]
		rate := 0.0
		if g.applicants > 0 {
			rate = float64(g.selected) / float64(g.applicants)
		}
		rates[name] = rate
		if rate > highestRate {
			highestRate = rate
			highestGroup = name
			seenPositive = true
		}
	}

	rows := make([]GroupResult, 0, len(names))
	for _, name := range names {
		g := groups[name]
		rate := rates[name]
		row := GroupResult{
			CategoryType:   categoryType,
			CategoryName:   name,
			ApplicantCount: g.applicants,
			SelectedCount:  g.selected,
			SelectionRate:  round6(rate),
		}

		if smallSampleExclusion != nil && totalApplicants > 0 &&
			float64(g.applicants)/float64(totalApplicants) < *smallSampleExclusion {
			row.Excluded = true
			rows = append(rows, row)
			continue
		}

		if highestRate > 0 {
			ratio := round6(rate / highestRate)
			row.ImpactRatio = &ratio
			if threshold > 0 && ratio < threshold {
				row.Flagged = true
			}
		}
		// highestRate == 0 means nobody anywhere was selected: no ratio, no
		// flag, rather than a division by zero or a misleading disparity.

		rows = append(rows, row)
	}

	var highest *float64
	if seenPositive {
		h := round6(highestRate)
		highest = &h
	}
	return rows, highestGroup, highest
}
