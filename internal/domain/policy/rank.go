package policy

import "archer/internal/domain/entity"

// rankThresholds are the ascending lower bounds of every tier above Unranked.
var rankThresholds = []struct {
	min  float64
	tier entity.RankTier
}{
	{170, entity.RankCopper},
	{250, entity.RankSilver},
	{270, entity.RankGold},
	{300, entity.RankPlatinum},
	{320, entity.RankDiamond},
	{335, entity.RankWorldChampion},
	{340, entity.RankAsianChampion},
	{345, entity.RankOlympicChampion},
}

// Rank maps the mean of the history to a tier. An empty history is Unranked.
func Rank(history []entity.ScoreRecord) entity.RankTier {
	if len(history) == 0 {
		return entity.RankUnranked
	}

	var sum float64
	for _, r := range history {
		sum += r.Score
	}
	mean := sum / float64(len(history))

	tier := entity.RankUnranked
	for _, t := range rankThresholds {
		if mean >= t.min {
			tier = t.tier
		}
	}

	return tier
}

// EvaluateScore compares the rank before and after a score was appended.
// Only a strict increase is a promotion.
func EvaluateScore(before, after []entity.ScoreRecord) entity.ScoreEvent {
	prev, cur := Rank(before), Rank(after)
	kind := entity.ScoreEventSaved
	if cur > prev {
		kind = entity.ScoreEventPromotion
	}

	return entity.ScoreEvent{Kind: kind, Previous: prev, Current: cur}
}
