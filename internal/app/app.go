package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skyyMo/skynet-ai/internal/config"
	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/httpapi"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/jira"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/llm"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/notion"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/parser"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/scheduler"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/slack"
	"github.com/skyyMo/skynet-ai/internal/infrastructure/storage"
	"github.com/skyyMo/skynet-ai/internal/ledger"
	"github.com/skyyMo/skynet-ai/internal/logging"
	"github.com/skyyMo/skynet-ai/internal/pacing"
	"github.com/skyyMo/skynet-ai/internal/ports"
	"github.com/skyyMo/skynet-ai/internal/source"
	"github.com/skyyMo/skynet-ai/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	Ledger      *ledger.Ledger
	Stories     *storage.StoryRepository
	Pipeline    *usecase.Pipeline
	Deployments *usecase.Deployments
	Scheduler   *usecase.Scheduler
}

// New builds the application graph. A missing backend credential does not fail here;
// the affected entry points report ErrConfiguration when called.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := source.NewRegistry()
	registry.Register(notion.NewClient(cfg.Source, nil))
	registry.Register(parser.NewDirectorySource(cfg.Source.Directory, baseLogger.With("component", "source.directory")))

	var docs ports.DocumentSource
	if strategy, err := registry.Resolve(cfg.Source.Kind); err != nil {
		baseLogger.Warn("document source unavailable", "error", err)
	} else {
		docs = strategy
	}

	var extractor ports.StoryExtractor
	if cfg.LLM.APIKey != "" {
		extractor = usecase.NewExtractionService(
			llm.NewChatGPTClient(cfg.LLM),
			uuid.NewString,
			time.Now,
			baseLogger.With("component", "extraction"),
		)
	} else {
		baseLogger.Warn("no LLM api key configured, passes will be refused")
	}

	stories, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open story storage: %w", err)
	}

	led := ledger.Open(cfg.Ledger.Path, time.Now, baseLogger.With("component", "ledger"))

	var notifierOpts []slack.Option
	if cfg.Slack.WebhookPrefix != "" {
		notifierOpts = append(notifierOpts, slack.WithPrefix(cfg.Slack.WebhookPrefix))
	}
	notifier := slack.NewNotifier(
		pacing.NewLimiter(cfg.Slack.Pacing.Std()),
		baseLogger.With("component", "notifier"),
		notifierOpts...,
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     docs,
		Ledger:     led,
		Extractor:  extractor,
		Notifier:   notifier,
		Repository: stories,
		WebhookURL: cfg.Slack.WebhookURL,
		PageSizes: usecase.PageSizes{
			Scheduled: cfg.Pipeline.ScheduledPageSize,
			OnDemand:  cfg.Pipeline.OnDemandPageSize,
			Preview:   cfg.Pipeline.PreviewPageSize,
		},
		Logger: baseLogger,
	})

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		Ledger:      led,
		Stories:     stories,
		Pipeline:    pipeline,
		Deployments: usecase.NewDeployments(stories, jira.NewDeployer(nil, baseLogger.With("component", "jira")), baseLogger),
		Scheduler: usecase.NewScheduler(
			scheduler.NewIntervalScheduler(cfg.Scheduler.Interval.Std(), true),
			pipeline,
			baseLogger,
		),
	}, nil
}

// Handler returns the REST surface over this application.
func (a *Application) Handler() http.Handler {
	return httpapi.NewHandler(httpapi.Services{
		Pipeline:    a.Pipeline,
		Status:      a.Pipeline.RunState(),
		Stories:     a.Stories,
		Deployments: a.Deployments,
		Ledger:      a.Ledger,
	}, a.logger)
}

// Serve runs the HTTP server, and the scheduler when enabled, until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler enabled", "interval", a.cfg.Scheduler.Interval.Std())
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("http shutdown: %w", err)
	}
	return serveErr
}

// Run performs a single on-demand pass.
func (a *Application) Run(ctx context.Context) (domain.PassSummary, error) {
	return a.Pipeline.RunOnDemand(ctx)
}

// Close releases storage.
func (a *Application) Close() error {
	if a.Stories == nil {
		return nil
	}
	return a.Stories.Close()
}
