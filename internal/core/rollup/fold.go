package rollup

// Fold combines rows with the aggregation table
// Sum-like measures are folded first so ratio and difference rules see the folded components
func Fold(rows []Values) Values {
	var out Values
	if len(rows) == 0 {
		return out
	}

	for i := range Specs {
		sp := &Specs[i]
		switch sp.Rule {
		case RuleSum:
			out[i] = sum(rows, sp.Measure)
		case RuleMean:
			out[i] = mean(rows, sp.Measure)
		case RuleWeighted:
			out[i] = weighted(rows, sp.Measure, sp.Weight)
		}
	}

	for i := range Specs {
		sp := &Specs[i]
		switch sp.Rule {
		case RuleRatio:
			out[i] = ratio(out[sp.Num], out[sp.Den])
		case RuleDifference:
			out[i] = difference(out[sp.Num], out[sp.Den])
		}
	}
	return out
}

// FoldGroups folds each group first, then folds the group results
// a group is every row of one sub-period (one day, one month)
func FoldGroups(groups [][]Values) Values {
	if len(groups) == 1 {
		return Fold(groups[0])
	}
	sub := make([]Values, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		sub = append(sub, Fold(g))
	}
	return Fold(sub)
}

func sum(rows []Values, m Measure) *float64 {
	var acc float64
	seen := false
	for i := range rows {
		if p := rows[i][m]; p != nil {
			acc += *p
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return F(acc)
}

func mean(rows []Values, m Measure) *float64 {
	var acc float64
	n := 0
	for i := range rows {
		if p := rows[i][m]; p != nil {
			acc += *p
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return F(acc / float64(n))
}

// weighted uses rows carrying both value and a positive weight
// when no row has a usable weight the simple mean of the values is used
func weighted(rows []Values, m, w Measure) *float64 {
	var num, den float64
	for i := range rows {
		v, wt := rows[i][m], rows[i][w]
		if v == nil || wt == nil || *wt <= 0 {
			continue
		}
		num += *v * *wt
		den += *wt
	}
	if den > 0 {
		return F(num / den)
	}
	return mean(rows, m)
}

// ratio is nil when either side is missing or the denominator is zero
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return F(*num / *den)
}

// difference treats a missing side as zero as long as the other side is present
func difference(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var x, y float64
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	return F(x - y)
}
