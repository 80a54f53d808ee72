package main

import (
	"context"
	"fmt"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/handler"
	"github.com/zhouzirui/med-assist/backend/internal/handler/health"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/internal/service/ai"
	"github.com/zhouzirui/med-assist/backend/internal/service/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/internal/service/dashboard"
	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
	"github.com/zhouzirui/med-assist/backend/internal/storage/badgerstore"
	"github.com/zhouzirui/med-assist/backend/internal/storage/sqlstore"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
	"github.com/zhouzirui/med-assist/backend/pkg/srv"
)

// logStore is what the composition root needs from a chat log backend.
type logStore interface {
	chatlog.Store
	Ping(ctx context.Context) error
	Close() error
}

// NewServices builds every component and returns them in start order.
// ShutdownServices stops them in reverse, so the HTTP server drains first
// and the store closes last.
func NewServices(ctx context.Context, cfg *config.Config) ([]srv.Service, error) {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0, 4)

	// 1. Storage
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat log store: %w", err)
	}
	var (
		records chatlog.Store
		pinger  health.Pinger
	)
	if store != nil {
		services = append(services, srv.NewCleanup(store.Close))
		records = store
		pinger = store
	} else {
		logger.Warn().Msg("conversation logging disabled, admin dashboard unavailable")
	}

	// 2. Rate limiter
	limiter := ratelimit.New(ratelimit.Options{
		Window:        cfg.RateLimit.Window,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		SweepInterval: cfg.RateLimit.SweepInterval,
		MaxEntries:    cfg.RateLimit.MaxEntries,
	})
	services = append(services, limiter)

	// 3. Conversation logger
	recorder := chatlog.NewLogger(records, cfg.Store.LogWriteTimeout)
	services = append(services, recorder)

	// 4. Completion provider. The service still starts without one so the
	// error path keeps returning emergency numbers.
	var completer ai.Completer
	if c, err := ai.NewCompleter(ctx, cfg.AI); err != nil {
		logger.Warn().Err(err).Msg("completion provider unavailable, chat requests will fail")
	} else {
		completer = c
	}

	// 5. Core services
	jurisdictions := jurisdiction.NewMemoryStore(jurisdiction.Seed(), cfg.Chat.DefaultRegion)
	chatSvc := chat.NewService(limiter, ai.NewPromptBuilder(cfg.AI), completer, recorder, jurisdictions, chat.Options{
		MaxQuestionLength: cfg.Chat.MaxQuestionLength,
		MaxHistoryItems:   cfg.Chat.MaxHistoryItems,
		EnforceDisclaimer: cfg.AI.EnforceDisclaimer,
	})
	dashboards := dashboard.NewService(records, cfg.Dashboard)

	// 6. HTTP
	router := handler.NewRouter(handler.Dependencies{
		Server:         cfg.Server,
		Production:     cfg.Production(),
		Chat:           chatSvc,
		Dashboards:     dashboards,
		Jurisdictions:  jurisdictions,
		StreamInterval: cfg.Dashboard.StreamInterval,
		Store:          pinger,
	})
	services = append(services, newHTTPService(ctx, cfg.Server, router))

	logger.Info().
		Str("env", cfg.Env).
		Str("store", cfg.Store.Driver).
		Str("provider", cfg.AI.Provider).
		Str("region", jurisdictions.Default().Code).
		Int("rate_limit", cfg.RateLimit.MaxRequests).
		Dur("rate_window", cfg.RateLimit.Window).
		Msg("services initialized")

	return services, nil
}

// openStore opens the configured backend. DriverNone yields a nil store.
func openStore(ctx context.Context, cfg config.StoreConfig) (logStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return sqlstore.Open(ctx, sqlstore.Postgres, cfg.DSN, cfg.AutoMigrate)
	case config.DriverSQLite:
		return sqlstore.Open(ctx, sqlstore.SQLite, cfg.SQLitePath, cfg.AutoMigrate)
	case config.DriverBadger:
		return badgerstore.Open(ctx, cfg.BadgerPath, false)
	case config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
