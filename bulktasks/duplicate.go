package bulktasks

import "strings"

// DuplicateStrategy selects how candidate tasks are matched against
// existing ones (spec.md §4.4.5 duplicate detection table).
type DuplicateStrategy string

const (
	StrategyExternalID        DuplicateStrategy = "external_id"
	StrategyTitle             DuplicateStrategy = "title"
	StrategyTitleAndMilestone DuplicateStrategy = "title_and_milestone"
)

var acceptThresholds = map[DuplicateStrategy]float64{
	StrategyExternalID:        100,
	StrategyTitle:             80,
	StrategyTitleAndMilestone: 70,
}

// ExistingTask is a minimal projection of a dashboard task used for
// duplicate matching.
type ExistingTask struct {
	ID            string
	Title         string
	Description   string
	ExternalID    string
	MilestoneSlug string
}

// DuplicateDetector scores candidate tasks against a pool of existing
// ones and reports the best match, if any clears the strategy's
// acceptance threshold.
type DuplicateDetector struct {
	Strategy DuplicateStrategy
	Existing []ExistingTask
}

// Match returns the matching existing task and its score, or ok=false
// when nothing clears the threshold.
func (d *DuplicateDetector) Match(title, description, externalID, milestoneSlug string) (ExistingTask, float64, bool) {
	threshold := acceptThresholds[d.Strategy]
	if threshold == 0 {
		threshold = acceptThresholds[StrategyTitle]
	}

	var best ExistingTask
	bestScore := 0.0
	found := false

	for _, existing := range d.Existing {
		score := d.score(existing, title, description, externalID, milestoneSlug)
		if score > bestScore {
			bestScore = score
			best = existing
			found = true
		}
	}

	if !found || bestScore < threshold {
		return ExistingTask{}, bestScore, false
	}
	return best, bestScore, true
}

func (d *DuplicateDetector) score(existing ExistingTask, title, description, externalID, milestoneSlug string) float64 {
	switch d.Strategy {
	case StrategyExternalID:
		if externalID != "" && existing.ExternalID == externalID {
			return 100
		}
		return 0
	case StrategyTitleAndMilestone:
		if milestoneSlug != "" && existing.MilestoneSlug != milestoneSlug {
			return 0
		}
		titleOverlap := wordSetOverlap(title, existing.Title)
		descOverlap := wordSetOverlap(description, existing.Description)
		return 100 * (0.7*titleOverlap + 0.3*descOverlap)
	default: // StrategyTitle
		return 100 * wordSetOverlap(title, existing.Title)
	}
}

// wordSetOverlap returns the Jaccard overlap of the two strings' lowercased
// word sets, in [0, 1].
func wordSetOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
