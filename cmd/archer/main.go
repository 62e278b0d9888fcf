package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"archer/config"
	"archer/internal/delivery"
	"archer/internal/delivery/api"
	apimiddleware "archer/internal/delivery/api/middleware"
	"archer/internal/delivery/api/router/handler"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/infra/auth"
	"archer/internal/infra/challenge"
	"archer/internal/infra/identity"
	logs "archer/internal/infra/log"
	"archer/internal/infra/metrics"
	"archer/internal/infra/notification"
	"archer/internal/infra/persistence/firestore"
	"archer/internal/infra/persistence/memory"
	"archer/internal/infra/persistence/postgres"
	"archer/internal/infra/pubsub"
	"archer/internal/usecase/impl"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/fx"
)

// Store providers selectable through store.provider.
const (
	storeMemory    = "memory"
	storeFirestore = "firestore"
	storePostgres  = "postgres"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			identity.NewApp,
			metrics.NewRegistry,
		),
		challenge.Module,
		pubsub.Module,
	)
}

type storeParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
	App    *firebase.App
}

type storeResult struct {
	fx.Out

	Accounts repository.AccountRepository
	Scores   repository.ScoreRepository
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			newStores,
		),
	)
}

// newStores opens the backend selected by store.provider.
func newStores(params storeParams) (storeResult, error) {
	provider := storeMemory
	if params.Config.Store != nil && params.Config.Store.Provider != "" {
		provider = params.Config.Store.Provider
	}
	params.Logger.Info("Opening account store", slog.String("provider", provider))

	switch provider {
	case storeMemory:
		store := memory.NewStore()

		return storeResult{
			Accounts: memory.NewAccountRepository(store),
			Scores:   memory.NewScoreRepository(store),
		}, nil

	case storeFirestore:
		client, err := firestore.New(firestore.Params{
			Lifecycle: params.Lc,
			App:       params.App,
			Logger:    params.Logger,
		})
		if err != nil {
			return storeResult{}, err
		}

		return storeResult{
			Accounts: firestore.NewAccountRepository(client),
			Scores:   firestore.NewScoreRepository(client),
		}, nil

	case storePostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lc,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return storeResult{}, err
		}

		return storeResult{
			Accounts: postgres.NewAccountRepository(db),
			Scores:   postgres.NewScoreRepository(db),
		}, nil

	default:
		return storeResult{}, errors.Errorf("unsupported store provider: %s", provider)
	}
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			identity.NewAdmin,
			identity.NewToolkitClient,
			auth.NewFlowCodec,
			auth.NewPasswordPolicy,
			newNotificationService,
			fx.Annotate(
				func(r *metrics.Registry) *metrics.Registry { return r },
				fx.As(new(service.MetricsRecorder)),
				fx.As(new(apimiddleware.HTTPObserver)),
			),
			fx.Annotate(
				func(r *metrics.Registry) http.Handler { return r.Handler() },
				fx.ResultTags(`name:"metrics"`),
			),
		),
	)
}

// newNotificationService sends pushes through FCM when the app has explicit
// credentials and only logs them otherwise.
func newNotificationService(cfg *config.Config, app *firebase.App, logger *slog.Logger) (service.NotificationService, error) {
	if cfg.Firebase == nil || cfg.Firebase.CredentialsPath == "" {
		logger.Info("Push notifications are logged only")

		return notification.NewLogService(logger), nil
	}

	svc, err := notification.NewFirebaseService(app)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Firebase service")
	}

	return svc, nil
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewMFAService,
			impl.NewAuthFlowService,
			impl.NewAccountService,
			impl.NewScoreService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			apimiddleware.NewAuthMiddleware,
			apimiddleware.NewRateLimiter,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthFlowHandler,
			handler.NewAccountHandler,
			handler.NewMFAHandler,
			handler.NewScoreHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
