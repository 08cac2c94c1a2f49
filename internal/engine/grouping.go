package engine

import "github.com/optlens/optlens/internal/models"

// pairings are the three ways to split four legs into two pairs. Tried in
// this fixed order; the first pairing whose halves both classify wins.
var pairings = [3][2][2]int{
	{{0, 1}, {2, 3}},
	{{0, 2}, {1, 3}},
	{{0, 3}, {1, 2}},
}

// Group partitions positions into rows. Non-option positions become
// single-leg rows immediately, in input order. Option legs are bucketed by
// (underlying, DTE, date acquired, |quantity|) preserving first-seen bucket
// order, then each bucket is classified as a whole, split into two pairs,
// or dissolved back into singles.
//
// The input slice is copied up front; callers keep full ownership of their
// positions and Group may be invoked repeatedly with identical results.
func Group(positions []models.Position) []models.Row {
	rows := make([]models.Row, 0, len(positions))

	var bucketOrder []models.GroupKey
	buckets := make(map[models.GroupKey][]*models.Position)

	for i := range positions {
		p := positions[i] // copy; rows must not alias caller memory
		if !p.IsOption() {
			rows = append(rows, models.Row{Single: &p})
			continue
		}
		key := p.Key()
		if _, seen := buckets[key]; !seen {
			bucketOrder = append(bucketOrder, key)
		}
		buckets[key] = append(buckets[key], &p)
	}

	for _, key := range bucketOrder {
		rows = append(rows, groupBucket(buckets[key])...)
	}
	return rows
}

func groupBucket(legs []*models.Position) []models.Row {
	switch len(legs) {
	case 1:
		return []models.Row{{Single: legs[0]}}
	case 2, 4:
		if name, ok := Classify(legs); ok {
			return []models.Row{{Strategy: &models.StrategyGroup{Name: name, Legs: legs}}}
		}
		if len(legs) == 4 {
			if rows, ok := splitQuad(legs); ok {
				return rows
			}
		}
	}
	return singles(legs)
}

// splitQuad tries the three canonical pairings of four legs into two pairs,
// accepting the first pairing where both halves independently classify.
func splitQuad(legs []*models.Position) ([]models.Row, bool) {
	for _, pairing := range pairings {
		first := []*models.Position{legs[pairing[0][0]], legs[pairing[0][1]]}
		second := []*models.Position{legs[pairing[1][0]], legs[pairing[1][1]]}

		firstName, ok1 := Classify(first)
		secondName, ok2 := Classify(second)
		if ok1 && ok2 {
			return []models.Row{
				{Strategy: &models.StrategyGroup{Name: firstName, Legs: first}},
				{Strategy: &models.StrategyGroup{Name: secondName, Legs: second}},
			}, true
		}
	}
	return nil, false
}

func singles(legs []*models.Position) []models.Row {
	rows := make([]models.Row, 0, len(legs))
	for _, leg := range legs {
		rows = append(rows, models.Row{Single: leg})
	}
	return rows
}
