package optimizer

import (
	"sort"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
)

// rank orders evaluations by score, keeps the best of each strategy family
// and returns at most MaxSuggestions of them. Ties keep generation order.
func rank(evaluations []evaluation) []evaluation {
	sorted := make([]evaluation, len(evaluations))
	copy(sorted, evaluations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	kept := make(map[optimization.StrategyFamily]int)
	var ranked []evaluation
	for _, eval := range sorted {
		idx, ok := kept[eval.family]
		if !ok {
			kept[eval.family] = len(ranked)
			ranked = append(ranked, eval)
			continue
		}
		if eval.score > ranked[idx].score {
			ranked[idx] = eval
		}
	}

	if len(ranked) > constants.MaxSuggestions {
		ranked = ranked[:constants.MaxSuggestions]
	}
	return ranked
}

// bestOf returns the highest scoring material evaluation of a family, or nil.
func bestOf(evaluations []evaluation, family optimization.StrategyFamily, baselineEMI float64) *candidate {
	var best *evaluation
	for i := range evaluations {
		eval := &evaluations[i]
		if eval.family != family || !eval.material(baselineEMI) {
			continue
		}
		if best == nil || eval.score > best.score {
			best = eval
		}
	}
	if best == nil {
		return nil
	}
	return &best.candidate
}
