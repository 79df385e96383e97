package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/internal/config"
	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/adapters/guidefile"
	"github.com/aretw0/wayfinder/pkg/adapters/memory"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/aretw0/wayfinder/pkg/ports"
)

// EngineOptions describes how a command wants its engine wired.
type EngineOptions struct {
	Config config.Config
	// Backend persists the run state. Nil runs without persistence.
	Backend *Backend
	// Host overrides the element fixture named by Config.UI.
	Host   wayfinder.Host
	Visual ports.VisualAdapter
	Bus    *event.Bus
	Logger *slog.Logger
	// Debug logs every bus event.
	Debug bool
}

// Engine is an orchestrator together with the pieces the CLI keeps using.
type Engine struct {
	*wayfinder.Orchestrator
	// UI is the element fixture when the host came from a file, nil otherwise.
	UI  *memory.UI
	Bus *event.Bus
	// Loaded is the number of registered file guides.
	Loaded int
}

// NewEngine initializes an orchestrator with standard CLI conventions.
func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	engine := &Engine{Bus: opts.Bus}

	// 1. Logger & Bus
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if engine.Bus == nil {
		engine.Bus = event.NewBus(event.WithLogger(logger))
	}
	if opts.Debug {
		TraceEvents(engine.Bus, logger)
	}

	// 2. Host: an explicit host wins, then the fixture file, then an empty tree
	host := opts.Host
	if host == nil {
		ui := memory.NewUI()
		if cfg.UI != "" {
			loaded, err := guidefile.LoadUI(cfg.UI)
			if err != nil {
				return nil, fmt.Errorf("failed to load ui fixture: %w", err)
			}
			ui = loaded
		}
		engine.UI = ui
		host = ui
	}

	engineOpts := []wayfinder.Option{
		wayfinder.WithConfig(cfg.Engine),
		wayfinder.WithLogger(logger),
		wayfinder.WithEventBus(engine.Bus),
	}

	// 3. Persistence
	if opts.Backend != nil {
		engineOpts = append(engineOpts, wayfinder.WithStore(opts.Backend.Store))
		if opts.Backend.Locker != nil {
			engineOpts = append(engineOpts, wayfinder.WithLocker(opts.Backend.Locker))
		}
	}
	if cfg.ResetInterval > 0 {
		engineOpts = append(engineOpts, wayfinder.WithResetPolicy(wayfinder.IntervalResetPolicy{Interval: cfg.ResetInterval}))
	}
	if opts.Visual != nil {
		engineOpts = append(engineOpts, wayfinder.WithVisualAdapter(opts.Visual))
	}

	// 4. Initialize
	o, err := wayfinder.New(host, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	engine.Orchestrator = o

	// 5. Guides
	if len(cfg.Guides) > 0 {
		n, err := o.LoadGuides(ctx, guidefile.New(cfg.Guides...))
		if err != nil {
			_ = o.Close(context.WithoutCancel(ctx))
			return nil, err
		}
		engine.Loaded = n
		logger.Info("guides loaded", "count", n)
	}

	return engine, nil
}
