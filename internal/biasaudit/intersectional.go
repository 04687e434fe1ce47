package biasaudit

import "strings"

// compoundSeparator joins per-key group values into a compound group name, in
// cross-key order. The same separator appears in persisted rows, so changing
// it is a data-compatibility break.
const compoundSeparator = " - "

// buildIntersectionalTable computes the same table as buildCategoryTable over
// compound groups formed by crossing two or more category keys. A record
// missing any crossed value is skipped from this table entirely, never
// partially grouped.
func buildIntersectionalTable(records []Record, crossKeys []string, totalApplicants int, threshold float64, smallSampleExclusion *float64) CategoryTable {
	groups := make(map[string]*groupCount)
	parts := make([]string, len(crossKeys))
	for _, r := range records {
		complete := true
		for i, key := range crossKeys {
			v := r.Attribute(key)
			if v == "" {
				complete = false
				break
			}
			parts[i] = v
		}
		if !complete {
			continue
		}
		name := strings.Join(parts, compoundSeparator)
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

	rows, highestGroup, highestRate := tabulate(CategoryTypeIntersectional, groups, totalApplicants, threshold, smallSampleExclusion)
	return CategoryTable{
		Title:        "Intersectional",
		CategoryKey:  CategoryTypeIntersectional,
		Rows:         rows,
		HighestGroup: highestGroup,
		HighestRate:  highestRate,
	}
}
