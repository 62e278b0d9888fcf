package usecase

import (
	"context"

	"archer/internal/domain/entity"
)

// ScoreInput records one completed session.
type ScoreInput struct {
	Score float64 `json:"score" validate:"gte=0,lte=720"`
	Label string  `json:"label,omitempty" validate:"max=64"`
}

// ScoreOutcome is returned after recording a score.
type ScoreOutcome struct {
	Record entity.ScoreRecord `json:"record"`
	Event  entity.ScoreEvent  `json:"event"`
}

// RankSummary describes the current rank.
type RankSummary struct {
	Tier    entity.RankTier `json:"tier"`
	Name    string          `json:"name"`
	Mean    float64         `json:"mean"`
	Samples int             `json:"samples"`
}

// ScoreUsecase records scores and derives the rank.
type ScoreUsecase interface {
	// RecordScore appends a score and reports whether it promoted the rank.
	RecordScore(ctx context.Context, uid string, input ScoreInput) (*ScoreOutcome, error)

	// ListScores returns the history in append order.
	ListScores(ctx context.Context, uid string) ([]entity.ScoreRecord, error)

	// GetRank returns the rank derived from the full history.
	GetRank(ctx context.Context, uid string) (*RankSummary, error)
}
