package entity

import "time"

// ScoreRecord is one completed shooting session's result. Records are
// immutable and kept in append order.
type ScoreRecord struct {
	Score      float64   `json:"score"`
	Label      string    `json:"label,omitempty"` // Free-form date label supplied by the client.
	RecordedAt time.Time `json:"recorded_at"`
}

// RankTier is the discrete skill tier derived from the score mean. The
// underlying ordinal (0-8) is only used to compare tiers.
type RankTier int

const (
	RankUnranked RankTier = iota
	RankCopper
	RankSilver
	RankGold
	RankPlatinum
	RankDiamond
	RankWorldChampion
	RankAsianChampion
	RankOlympicChampion
)

var rankNames = [...]string{
	RankUnranked:        "Unranked",
	RankCopper:          "Copper",
	RankSilver:          "Silver",
	RankGold:            "Gold",
	RankPlatinum:        "Platinum",
	RankDiamond:         "Diamond",
	RankWorldChampion:   "World Champion",
	RankAsianChampion:   "Asian Champion",
	RankOlympicChampion: "Olympic Champion",
}

// String returns the display name of the tier.
func (r RankTier) String() string {
	if r < 0 || int(r) >= len(rankNames) {
		return rankNames[RankUnranked]
	}

	return rankNames[r]
}

// Ordinal returns the tier's position in the ordered table.
func (r RankTier) Ordinal() int {
	return int(r)
}

// ScoreEventKind distinguishes promotions from plain saves.
type ScoreEventKind string

const (
	ScoreEventSaved     ScoreEventKind = "score_saved"
	ScoreEventPromotion ScoreEventKind = "promotion"
)

// ScoreEvent is emitted every time a score is recorded.
type ScoreEvent struct {
	Kind     ScoreEventKind `json:"kind"`
	Previous RankTier       `json:"previous"`
	Current  RankTier       `json:"current"`
}

// IsPromotion reports whether the rank strictly increased.
func (e ScoreEvent) IsPromotion() bool {
	return e.Kind == ScoreEventPromotion
}
