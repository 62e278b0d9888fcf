package policy

import (
	"testing"

	"archer/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func scores(values ...float64) []entity.ScoreRecord {
	out := make([]entity.ScoreRecord, len(values))
	for i, v := range values {
		out[i] = entity.ScoreRecord{Score: v, RecordedAt: t0}
	}

	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name    string
		history []entity.ScoreRecord
		want    entity.RankTier
		ordinal int
	}{
		{name: "empty", history: nil, want: entity.RankUnranked, ordinal: 0},
		{name: "below copper", history: scores(169.9), want: entity.RankUnranked, ordinal: 0},
		{name: "copper pair", history: scores(170, 170), want: entity.RankCopper, ordinal: 1},
		{name: "silver", history: scores(250), want: entity.RankSilver, ordinal: 2},
		{name: "gold mean", history: scores(260, 280), want: entity.RankGold, ordinal: 3},
		{name: "platinum", history: scores(300), want: entity.RankPlatinum, ordinal: 4},
		{name: "diamond", history: scores(320), want: entity.RankDiamond, ordinal: 5},
		{name: "world", history: scores(335), want: entity.RankWorldChampion, ordinal: 6},
		{name: "asian", history: scores(340), want: entity.RankAsianChampion, ordinal: 7},
		{name: "olympic", history: scores(345), want: entity.RankOlympicChampion, ordinal: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(tt.history)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ordinal, got.Ordinal())
		})
	}
	assert.Equal(t, "Olympic Champion", entity.RankOlympicChampion.String())
}

func TestEvaluateScore(t *testing.T) {
	before := scores(250, 270)
	a := assert.New(t)
	a.Equal(entity.RankSilver, Rank(before))

	up := append(scores(250, 270), entity.ScoreRecord{Score: 305})
	event := EvaluateScore(before, up)
	a.True(event.IsPromotion())
	a.Equal(entity.RankSilver, event.Previous)
	a.Equal(entity.RankGold, event.Current)

	down := append(scores(250, 270, 305), entity.ScoreRecord{Score: 240})
	event = EvaluateScore(up, down)
	a.False(event.IsPromotion())
	a.Equal(entity.ScoreEventSaved, event.Kind)
	a.Equal(entity.RankSilver, event.Current)

	same := EvaluateScore(before, append(scores(250, 270), entity.ScoreRecord{Score: 260}))
	a.Equal(entity.ScoreEventSaved, same.Kind)
}
