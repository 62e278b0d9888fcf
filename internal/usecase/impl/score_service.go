package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "archer/internal/delivery/context"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/policy"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/usecase"

	"go.uber.org/fx"
)

type scoreService struct {
	accountRepo repository.AccountRepository
	scoreRepo   repository.ScoreRepository
	publisher   service.EventPublisher
	notifier    service.NotificationService
	metrics     service.MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// ScoreServiceParams holds dependencies for ScoreService, injected by Fx.
type ScoreServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	ScoreRepo   repository.ScoreRepository
	Publisher   service.EventPublisher
	Notifier    service.NotificationService `optional:"true"`
	Metrics     service.MetricsRecorder     `optional:"true"`
	Logger      *slog.Logger
}

// NewScoreService is the constructor for scoreService.
func NewScoreService(params ScoreServiceParams) usecase.ScoreUsecase {
	srv := &scoreService{
		accountRepo: params.AccountRepo,
		scoreRepo:   params.ScoreRepo,
		publisher:   params.Publisher,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		logger:      params.Logger,
		now:         time.Now,
	}
	if srv.metrics == nil {
		srv.metrics = service.NopMetrics{}
	}

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *scoreService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// RecordScore appends a score and reports whether it promoted the rank.
func (srv *scoreService) RecordScore(ctx context.Context, uid string, input usecase.ScoreInput) (*usecase.ScoreOutcome, error) {
	account, err := srv.accountRepo.FindByID(ctx, uid)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "failed to record score")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load account")
	}

	record := entity.ScoreRecord{Score: input.Score, Label: input.Label, RecordedAt: srv.now()}
	history, err := srv.scoreRepo.Append(ctx, uid, record)
	if err != nil {
		return nil, errors.Wrap(err, "failed to append score")
	}

	event := policy.EvaluateScore(history[:len(history)-1], history)
	srv.metrics.ObserveScore(string(event.Kind))
	srv.log(ctx).Info("Score recorded", slog.String("uid", uid), slog.Float64("score", input.Score), slog.String("event", string(event.Kind)), slog.String("rank", event.Current.String()))

	srv.publish(ctx, uid, record, event)
	if event.IsPromotion() {
		srv.announcePromotion(ctx, account, event)
	}

	return &usecase.ScoreOutcome{Record: record, Event: event}, nil
}

// ListScores returns the history in append order.
func (srv *scoreService) ListScores(ctx context.Context, uid string) ([]entity.ScoreRecord, error) {
	history, err := srv.scoreRepo.List(ctx, uid)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scores")
	}

	return history, nil
}

// GetRank returns the rank derived from the full history.
func (srv *scoreService) GetRank(ctx context.Context, uid string) (*usecase.RankSummary, error) {
	history, err := srv.ListScores(ctx, uid)
	if err != nil {
		return nil, err
	}

	tier := policy.Rank(history)
	summary := &usecase.RankSummary{Tier: tier, Name: tier.String(), Samples: len(history)}
	if len(history) > 0 {
		var sum float64
		for _, r := range history {
			sum += r.Score
		}
		summary.Mean = sum / float64(len(history))
	}

	return summary, nil
}

// publish is fire-and-forget: the score is already stored.
func (srv *scoreService) publish(ctx context.Context, uid string, record entity.ScoreRecord, event entity.ScoreEvent) {
	msg := &service.ScoreEventMessage{
		RequestID:    deliverycontext.GetRequestIDFromContext(ctx),
		AccountID:    uid,
		Kind:         string(event.Kind),
		Score:        record.Score,
		PreviousRank: event.Previous.String(),
		CurrentRank:  event.Current.String(),
		Ordinal:      event.Current.Ordinal(),
		RecordedAt:   record.RecordedAt,
	}
	if err := srv.publisher.PublishScoreEvent(ctx, msg); err != nil {
		srv.log(ctx).Warn("Failed to publish score event", slog.String("uid", uid), slog.Any("error", err))
	}
}

func (srv *scoreService) announcePromotion(ctx context.Context, account *entity.Account, event entity.ScoreEvent) {
	tokens := account.PushTokens()
	if srv.notifier == nil || len(tokens) == 0 {
		return
	}

	_, failed, _, err := srv.notifier.SendBatchNotification(ctx, tokens,
		"Rank up!", "You reached "+event.Current.String(),
		map[string]string{"type": "promotion", "rank": event.Current.String()})
	if err != nil || failed > 0 {
		srv.log(ctx).Warn("Promotion notice not fully delivered", slog.String("uid", account.ID), slog.Int("failed", failed), slog.Any("error", err))
	}
}
