// Package app wires configured components into a runnable pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/control"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/core"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/entity"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/export"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm/anthropic"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/llm/openai"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/report"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/repository"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/source"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/source/drive"
	"github.com/joseph-ayodele/pdf-cost-reports/internal/source/local"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config       *common.Config
	Logger       *slog.Logger
	Source       source.FileSource
	Extractor    llm.ReportExtractor
	Control      control.Store
	Reports      report.Store
	Renderer     *report.Renderer
	DB           *repository.DB
	Catalog      repository.ReportRepository
	Exporter     *export.Service
	Orchestrator *core.Orchestrator
}

// New validates cfg and builds the pipeline. Missing credentials surface as
// common.ErrMissingCredentials before anything is opened.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a, err := NewOffline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if a.Source, err = NewSource(ctx, cfg, logger); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.Extractor, err = NewExtractor(cfg, logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Orchestrator = core.NewOrchestrator(a.deps(), logger)
	return a, nil
}

// NewOffline builds only the local stores, catalog and exporter. It needs no
// credentials and backs commands that never reach Drive or a model.
func NewOffline(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := report.NewRenderer(cfg.Storage.RenderDir, logger)
	if err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		SQLitePath:       cfg.Database.SQLitePath,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	catalog := repository.NewReportRepository(db, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Control:  control.NewFileStore(cfg.Storage.ControlFile, logger),
		Reports:  report.NewFileStore(cfg.Storage.ReportsDir, logger),
		Renderer: renderer,
		DB:       db,
		Catalog:  catalog,
		Exporter: export.NewService(catalog, logger),
	}
	a.Orchestrator = core.NewOrchestrator(a.deps(), logger)
	return a, nil
}

func (a *App) deps() core.Deps {
	return core.Deps{
		Source:    a.Source,
		Extractor: a.Extractor,
		Control:   a.Control,
		Reports:   a.Reports,
		Renderer:  a.Renderer,
		Catalog:   a.Catalog,
	}
}

// FolderID is the source scope passed to every run.
func (a *App) FolderID() string {
	if a.Config.Source.Kind == common.SourceKindDrive {
		return a.Config.Source.DriveFolderID
	}
	return ""
}

// Run performs one ingestion run against the configured folder.
func (a *App) Run(ctx context.Context) entity.RunResult {
	return a.Orchestrator.Run(ctx, a.FolderID())
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewSource builds the configured FileSource.
func NewSource(ctx context.Context, cfg *common.Config, logger *slog.Logger) (source.FileSource, error) {
	switch cfg.Source.Kind {
	case common.SourceKindDrive:
		src, err := drive.New(ctx, cfg.Source.DriveCredentials, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case common.SourceKindLocal:
		return local.New(cfg.Source.LocalDir, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR",
			fmt.Sprintf("unknown SOURCE_KIND %q", cfg.Source.Kind), common.ErrInvalidInput)
	}
}

// NewExtractor builds the configured model client.
func NewExtractor(cfg *common.Config, logger *slog.Logger) (llm.ReportExtractor, error) {
	switch cfg.LLM.Provider {
	case common.ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR",
			fmt.Sprintf("unknown LLM_PROVIDER %q", cfg.LLM.Provider), common.ErrInvalidInput)
	}
}

const (
	CheckSource   = "source"
	CheckLLM      = "llm"
	CheckDatabase = "database"
)

// CheckResult is the outcome of one connectivity check.
type CheckResult struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

func (r CheckResult) OK() bool { return r.Err == nil }

// NewForCheck builds the offline components plus only the source or model
// client the named checks reach. Each of those validates its own settings, so
// checking the model does not require file source credentials and vice versa.
func NewForCheck(ctx context.Context, cfg *common.Config, logger *slog.Logger, names ...string) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var wantSource, wantLLM bool
	for _, name := range names {
		switch name {
		case CheckSource:
			wantSource = true
		case CheckLLM:
			wantLLM = true
		}
	}
	if wantSource {
		if err := cfg.ValidateSourceCredentials(); err != nil {
			return nil, err
		}
	}
	if wantLLM {
		if err := cfg.ValidateLLMCredentials(); err != nil {
			return nil, err
		}
	}

	a, err := NewOffline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if wantSource {
		if a.Source, err = NewSource(ctx, cfg, logger); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if wantLLM {
		if a.Extractor, err = NewExtractor(cfg, logger); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.Orchestrator = core.NewOrchestrator(a.deps(), logger)
	return a, nil
}

// Check pings each named dependency. Unknown names and components without a
// Ping method are reported as failures.
func (a *App) Check(ctx context.Context, names ...string) []CheckResult {
	out := make([]CheckResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		err := a.ping(ctx, name)
		r := CheckResult{Name: name, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			a.Logger.Warn("check.failed", "target", name, "error", err)
		} else {
			a.Logger.Info("check.ok", "target", name, "elapsed_ms", r.Elapsed.Milliseconds())
		}
		out = append(out, r)
	}
	return out
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) ping(ctx context.Context, name string) error {
	switch name {
	case CheckSource:
		if a.Source == nil {
			return errors.New("source is not configured")
		}
		p, ok := a.Source.(pinger)
		if !ok {
			return errors.New("source does not support checks")
		}
		return p.Ping(ctx)
	case CheckLLM:
		if a.Extractor == nil {
			return errors.New("model client is not configured")
		}
		p, ok := a.Extractor.(llm.Pinger)
		if !ok {
			return errors.New("extractor does not support checks")
		}
		return p.Ping(ctx)
	case CheckDatabase:
		return a.DB.HealthCheck(ctx, 5*time.Second)
	default:
		return fmt.Errorf("unknown check target %q", name)
	}
}
