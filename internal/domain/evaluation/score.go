package evaluation

import (
	"fmt"
	"sort"
)

type GradeRange struct {
	Grade    string  `json:"grade" yaml:"grade"`
	MinScore float64 `json:"minScore" yaml:"minScore"`
	MaxScore float64 `json:"maxScore" yaml:"maxScore"`
}

func (r GradeRange) Contains(score float64) bool {
	return score >= r.MinScore && score <= r.MaxScore
}

type GradeRanges []GradeRange

// Validate requires named buckets with min <= max and no two buckets sharing
// any score.
func (g GradeRanges) Validate() error {
	sorted := make(GradeRanges, len(g))
	copy(sorted, g)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	for i, r := range sorted {
		if r.Grade == "" {
			return fmt.Errorf("grade range [%v,%v] has no grade label", r.MinScore, r.MaxScore)
		}
		if r.MinScore > r.MaxScore {
			return fmt.Errorf("grade %s has min %v above max %v", r.Grade, r.MinScore, r.MaxScore)
		}
		if i > 0 && r.MinScore <= sorted[i-1].MaxScore {
			return fmt.Errorf("grade %s overlaps grade %s", r.Grade, sorted[i-1].Grade)
		}
	}
	return nil
}

// Lookup returns the label of the single bucket containing score. A score
// outside every bucket, or inside more than one, has no grade.
func (g GradeRanges) Lookup(score float64) (string, bool) {
	grade := ""
	matches := 0
	for _, r := range g {
		if r.Contains(score) {
			grade = r.Grade
			matches++
		}
	}
	if matches != 1 {
		return "", false
	}
	return grade, true
}

// WeightedItem is one scored WBS item. A nil Weight means no weight was set.
type WeightedItem struct {
	WbsItemID string
	Weight    *float64
	Score     float64
	Completed bool
}

// WeightedScore yields nothing unless every item is completed. Items without
// a weight take an equal 1/n share; weighted items split the rest in
// proportion to their weights. When no item carries a positive weight the
// unweighted items share everything, or all items split equally if every
// weight was set to zero.
func WeightedScore(items []WeightedItem) (float64, bool) {
	if len(items) == 0 {
		return 0, false
	}
	n := float64(len(items))
	unset := 0
	totalWeight := 0.0
	for _, item := range items {
		if !item.Completed {
			return 0, false
		}
		switch {
		case item.Weight == nil:
			unset++
		case *item.Weight > 0:
			totalWeight += *item.Weight
		}
	}

	weightedShare := (n - float64(unset)) / n
	unsetShare := 1 / n
	if totalWeight == 0 {
		weightedShare = 0
		if unset > 0 {
			unsetShare = 1 / float64(unset)
		}
	}

	total := 0.0
	for _, item := range items {
		var share float64
		switch {
		case totalWeight == 0 && unset == 0:
			share = 1 / n
		case item.Weight == nil:
			share = unsetShare
		case *item.Weight > 0:
			share = weightedShare * *item.Weight / totalWeight
		}
		total += item.Score * share
	}
	return total, true
}
