// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file with WARP_* environment overrides.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/adapters/filestore"
	"github.com/artpar/warpmodel/adapters/hasher"
	"github.com/artpar/warpmodel/adapters/metrics"
	"github.com/artpar/warpmodel/adapters/natsrelay"
	"github.com/artpar/warpmodel/config"
	apihttp "github.com/artpar/warpmodel/core/channel/http"
	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/events"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/registry"
	"github.com/artpar/warpmodel/core/runtime"
	"github.com/artpar/warpmodel/core/storage"
)

// App represents the running application.
type App struct {
	Logger  zerolog.Logger
	Config  *config.Config
	Store   *storage.SQLiteStore
	Runtime *runtime.Runtime
	Events  *events.Bus
	Metrics *metrics.Collector
	Channel *apihttp.Channel

	// holder is set when the config file is watched for changes
	holder *config.Holder

	// nats is set when events are relayed
	nats *nats.Conn
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML file to load. Missing files fall back to the
	// environment.
	ConfigPath string

	// Config replaces file loading when set.
	Config *config.Config

	// Watch reloads the config file on change and on SIGHUP.
	Watch bool

	// Registerer receives the metrics. Defaults to the global registry.
	Registerer prometheus.Registerer

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application: it loads every model file,
// migrates the database and builds the HTTP channel.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadWithFallback(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("models", cfg.Models.Dir).Msg("initializing warpmodel")

	a := &App{Logger: logger, Config: cfg}

	store, err := storage.NewSQLiteStore(cfg.Database.DSN, logger.With().Str("component", "storage").Logger())
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Store = store

	a.Events = events.NewBus(logger.With().Str("component", "events").Logger())

	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		a.Metrics = metrics.NewWithRegistry(reg)
		a.Metrics.Subscribe(a.Events)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if cfg.Events.NatsURL != "" {
		nc, err := natsrelay.Connect(cfg.Events.NatsURL, "warpmodel", logger.With().Str("component", "nats").Logger())
		if err != nil {
			a.Shutdown()
			return nil, err
		}
		a.nats = nc
		natsrelay.New(nc, cfg.Events.SubjectPrefix, logger.With().Str("component", "nats").Logger()).Subscribe(a.Events)
		logger.Info().Str("prefix", cfg.Events.SubjectPrefix).Msg("relaying events to nats")
	}

	rt, err := a.loadModels()
	if err != nil {
		a.Shutdown()
		return nil, err
	}
	a.Runtime = rt

	if err := store.Migrate(context.Background(), rt.Registry().List()); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.Channel = apihttp.New(rt, a.channelConfig())

	if opts.Watch && opts.ConfigPath != "" {
		a.watchConfig(opts.ConfigPath)
	}

	return a, nil
}

// Compile loads and compiles the model files named by cfg without opening
// a database. The returned runtime has no executor and serves only
// definitions.
func Compile(cfg *config.Config, logger zerolog.Logger) (*runtime.Runtime, error) {
	a := &App{Logger: logger, Config: cfg}
	return a.loadModels()
}

func (a *App) loadModels() (*runtime.Runtime, error) {
	cfg := a.Config

	files, err := filestore.New(cfg.Storage.BaseURL)
	if err != nil {
		return nil, err
	}

	reg := registry.New(convention.Options{
		Hasher:       hasher.NewBcrypt(),
		PasswordCost: cfg.Security.PasswordCost,
		Storage:      files,
		Logger:       a.Logger.With().Str("component", "compiler").Logger(),
	})

	rtCfg := runtime.Config{
		Events: a.Events,
		Logger: a.Logger.With().Str("component", "runtime").Logger(),
	}
	if a.Metrics != nil {
		rtCfg.Observer = a.Metrics
	}

	rt := runtime.New(reg, executor(a.Store), rtCfg)
	RegisterHooks(rt, a.Events, a.Logger)

	if err := rt.LoadGlob(cfg.Models.Dir, cfg.Models.Pattern); err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	if cfg.Models.Strict {
		if err := reg.CheckReferences(); err != nil {
			return nil, err
		}
	}

	if a.Metrics != nil {
		a.Metrics.ModelsLoaded.Set(float64(len(rt.Models())))
	}
	a.Logger.Info().Int("count", len(rt.Models())).Msg("models loaded")

	return rt, nil
}

// executor keeps a nil store from becoming a non-nil interface.
func executor(s *storage.SQLiteStore) query.Executor {
	if s == nil {
		return nil
	}
	return s
}

func (a *App) channelConfig() apihttp.Config {
	cfg := apihttp.Config{
		Addr:         a.Config.Server.Addr(),
		Timeout:      a.Config.Server.RequestTimeout,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		Docs:         a.Config.Docs.Enabled,
		DocsTitle:    a.Config.Docs.Title,
		Logger:       a.Logger.With().Str("component", "http").Logger(),
	}
	if a.Metrics != nil {
		cfg.MetricsHandler = a.Metrics.Handler()
		cfg.MetricsPath = a.Config.Metrics.Path
		cfg.Middlewares = append(cfg.Middlewares, a.Metrics.Middleware)
	}
	return cfg
}

func (a *App) watchConfig(path string) {
	h, err := config.NewHolder(path, a.Logger.With().Str("component", "config").Logger())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("config watch disabled")
		return
	}
	h.OnChange(func(_, new *config.Config) {
		config.ApplyLogLevel(new)
	})
	if err := h.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch failed")
	}
	h.WatchSignals()
	a.holder = h
}

// Run starts the HTTP channel and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Channel.Start(context.Background()); err != nil {
		return fmt.Errorf("start http: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")

	return a.Shutdown()
}

// Shutdown stops the channel, drains the event relay and closes the database.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.Channel != nil {
		if err := a.Channel.Stop(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.Logger.Error().Err(err).Msg("nats drain error")
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
