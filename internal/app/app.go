// Package app assembles the proverbs service from a Config.
package app

import (
	"context"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/proverbs/agent"
	"github.com/hupe1980/proverbs/internal/config"
	"github.com/hupe1980/proverbs/logging"
	"github.com/hupe1980/proverbs/mcpserver"
	"github.com/hupe1980/proverbs/metrics"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/model/anthropic"
	"github.com/hupe1980/proverbs/model/openai"
	"github.com/hupe1980/proverbs/proverb"
	"github.com/hupe1980/proverbs/runner"
	"github.com/hupe1980/proverbs/server"
	"github.com/hupe1980/proverbs/session"
	"github.com/hupe1980/proverbs/tool"
	"github.com/hupe1980/proverbs/weather"
)

// Version is reported by the MCP server.
var Version = "dev"

// Options overrides components built by New.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Weather replaces the static weather provider.
	Weather weather.Provider
}

// App owns the process-wide components. There is exactly one proverb store
// per App and every run, HTTP request and MCP call shares it.
type App struct {
	Config   config.Config
	Proverbs *proverb.Store
	Catalog  *tool.Catalog
	Metrics  *metrics.Metrics
	Runner   *runner.Runner
	Server   *server.Server

	logger logging.Logger
}

// New validates cfg and wires the service. A missing model credential fails
// before anything else is built.
func New(cfg config.Config, logger logging.Logger, optFns ...func(o *Options)) (*App, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	llm := opts.Model
	if llm == nil {
		apiKey, err := cfg.ResolveCredential()
		if err != nil {
			return nil, err
		}

		llm, err = newModel(cfg.Model, apiKey)
		if err != nil {
			return nil, err
		}
	}

	store := proverb.NewStore()
	m := metrics.NewMetrics(store)

	catalog, err := tool.NewCatalog(
		append(proverb.Tools(), weather.NewTool(opts.Weather)),
		func(o *tool.CatalogOptions) {
			o.Hooks = []tool.Hook{tool.NewLoggingHook(nil), m}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}

	factory, err := agent.NewFactory(llm, catalog, func(o *agent.FactoryOptions) {
		if cfg.Agent.Name != "" {
			o.Name = cfg.Agent.Name
		}
		if cfg.Agent.Instruction != "" {
			o.Instruction = agent.NewTemplateInstruction(cfg.Agent.Instruction)
		}
		o.EnableStreaming = !cfg.Agent.DisableStreaming
		o.MaxHistoryMessages = cfg.Agent.MaxHistoryMessages
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(factory, func(o *runner.Options) {
		o.MaxConcurrentRuns = cfg.Runner.MaxConcurrentRuns
		o.EventBufferSize = cfg.Runner.EventBufferSize
		o.MaxModelCalls = cfg.Agent.MaxModelCalls
		o.SessionStore = session.NewInMemoryStore(func(so *session.Options) {
			so.MaxEvents = cfg.Session.MaxEvents
			so.MaxSessions = cfg.Session.MaxSessions
		})
		o.Proverbs = store
		o.Observer = m
		o.Logger = logger
	})

	srv := server.New(r, catalog, store, func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.AllowedOrigins = cfg.Server.AllowedOrigins
		o.ShutdownTimeout = cfg.Server.ShutdownTimeout
		o.Metrics = m.Handler()
		o.Logger = logger
	})

	logger.Info("app.ready",
		"provider", cfg.Model.Provider,
		"model", llm.Info().Name,
		"tools", catalog.Names(),
	)

	return &App{
		Config:   cfg,
		Proverbs: store,
		Catalog:  catalog,
		Metrics:  m,
		Runner:   r,
		Server:   srv,
		logger:   logger,
	}, nil
}

// Serve runs the HTTP server until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	return a.Server.ListenAndServe(ctx)
}

// ServeMCP serves the tool catalog over MCP on in/out until ctx is done or
// the client disconnects.
func (a *App) ServeMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	s, err := mcpserver.New(a.Catalog, a.Proverbs, func(o *mcpserver.Options) {
		o.Version = Version
		o.Logger = a.logger
	})
	if err != nil {
		return err
	}

	a.logger.Info("app.mcp.start", "tools", len(a.Catalog.Names()))

	return s.Serve(ctx, in, out)
}

func newModel(cfg config.ModelConfig, apiKey string) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = apiKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.APIKey = apiKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
