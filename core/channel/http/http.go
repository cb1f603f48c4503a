// Package http exposes compiled models over a REST surface:
//
//	GET    /classes/{className}        find (where, select, include, sort, limit, skip)
//	GET    /classes/{className}/{id}   first
//	POST   /classes/{className}        create
//	PUT    /classes/{className}/{id}   update
//	DELETE /classes/{className}/{id}   destroy
//
// Every response uses the envelope of pkg/envelope.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/warpmodel/core/apperr"
	"github.com/artpar/warpmodel/core/openapi"
	"github.com/artpar/warpmodel/core/record"
	"github.com/artpar/warpmodel/core/runtime"
	"github.com/artpar/warpmodel/pkg/envelope"
)

// Request headers carrying caller metadata.
const (
	HeaderClient     = "X-Warp-Client"
	HeaderSDKVersion = "X-Warp-SDK-Version"
	HeaderAppVersion = "X-Warp-App-Version"
)

// DocsInstance is the name the OpenAPI document is registered under for the
// Swagger UI.
const DocsInstance = "warpmodel"

// DefaultLimit caps find results when the caller gives no limit.
const DefaultLimit = 100

// Config configures the channel.
type Config struct {
	// Addr is the listen address. Empty means the channel is only mounted.
	Addr string

	// Timeout bounds each request. Zero means 60 seconds.
	Timeout time.Duration

	// ReadTimeout and WriteTimeout configure the listening server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MetricsHandler is served at MetricsPath (default /metrics) when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// Docs serves a Swagger UI for the generated OpenAPI document at
	// /_docs/. The document itself is always served under /_schema.
	Docs      bool
	DocsTitle string

	// Middlewares run after request id assignment and before logging.
	Middlewares []func(http.Handler) http.Handler

	Logger zerolog.Logger
}

// Channel serves the models of a runtime over HTTP.
type Channel struct {
	router  chi.Router
	runtime *runtime.Runtime
	addr    string
	server  *http.Server
	docs    *openapi.Service
	cfg     Config
	logger  zerolog.Logger
}

// New creates the channel and its routes.
func New(rt *runtime.Runtime, cfg Config) *Channel {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Channel{
		router:  chi.NewRouter(),
		runtime: rt,
		addr:    cfg.Addr,
		cfg:     cfg,
		logger:  cfg.Logger,
	}

	r := c.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cfg.Middlewares...)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		envelope.WriteOK(w, map[string]any{"models": len(rt.Models())})
	})
	if cfg.MetricsHandler != nil {
		if cfg.MetricsPath == "" {
			cfg.MetricsPath = "/metrics"
		}
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	}

	c.docs = openapi.NewService(openapi.ServiceConfig{
		Definitions: rt.Registry().List,
		Info:        openapi.Info{Title: cfg.DocsTitle},
		Logger:      cfg.Logger,
	})
	r.Mount("/_schema", NewSchemaHandler(rt, c.docs).Routes())

	if cfg.Docs {
		openapi.Register(DocsInstance, c.docs)
		r.Get("/_docs/*", httpSwagger.Handler(
			httpSwagger.URL("/_docs/doc.json"),
			httpSwagger.InstanceName(DocsInstance),
		))
	}

	r.Route("/classes/{className}", func(r chi.Router) {
		r.Get("/", c.handleFind)
		r.Post("/", c.handleCreate)
		r.Get("/{id}", c.handleFirst)
		r.Put("/{id}", c.handleUpdate)
		r.Delete("/{id}", c.handleDestroy)
	})

	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "http"
}

// Docs returns the OpenAPI service of the channel.
func (c *Channel) Docs() *openapi.Service {
	return c.docs
}

// Handler returns the HTTP handler.
func (c *Channel) Handler() http.Handler {
	return c.router
}

// Start starts the HTTP server in the background.
func (c *Channel) Start(ctx context.Context) error {
	// Only start if addr is set (standalone mode)
	if c.addr == "" {
		return nil
	}

	c.server = &http.Server{
		Addr:              c.addr,
		Handler:           c.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       c.cfg.ReadTimeout,
		WriteTimeout:      c.cfg.WriteTimeout,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Str("addr", c.addr).Msg("http server failed")
		}
	}()

	c.logger.Info().Str("addr", c.addr).Msg("http channel listening")
	return nil
}

// Stop gracefully stops the HTTP server.
func (c *Channel) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

func (c *Channel) model(w http.ResponseWriter, r *http.Request) (*runtime.Model, bool) {
	className := chi.URLParam(r, "className")
	m, ok := c.runtime.Model(className)
	if !ok {
		envelope.WriteError(w, apperr.New(apperr.ObjectNotFound, "Class `%s` not found", className))
		return nil, false
	}
	return m, true
}

func (c *Channel) handleFind(w http.ResponseWriter, r *http.Request) {
	m, ok := c.model(w, r)
	if !ok {
		return
	}

	opts, err := ParseFindOptions(r.URL.Query())
	if err != nil {
		c.fail(w, r, err)
		return
	}

	rows, err := m.Find(r.Context(), opts)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	envelope.WriteOK(w, rows)
}

func (c *Channel) handleFirst(w http.ResponseWriter, r *http.Request) {
	m, ok := c.model(w, r)
	if !ok {
		return
	}

	include, err := parseKeys(r.URL.Query().Get("include"))
	if err != nil {
		c.fail(w, r, err)
		return
	}

	id := ParseID(chi.URLParam(r, "id"))
	row, err := m.First(r.Context(), id, include)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if row == nil {
		c.fail(w, r, apperr.New(apperr.ObjectNotFound, "Object `%v` not found", id))
		return
	}
	envelope.WriteOK(w, row)
}

func (c *Channel) handleCreate(w http.ResponseWriter, r *http.Request) {
	m, ok := c.model(w, r)
	if !ok {
		return
	}

	fields, err := decodeBody(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	out, err := m.Create(r.Context(), fields, metaOf(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.Write(w, http.StatusCreated, out)
}

func (c *Channel) handleUpdate(w http.ResponseWriter, r *http.Request) {
	m, ok := c.model(w, r)
	if !ok {
		return
	}

	fields, err := decodeBody(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	out, err := m.Update(r.Context(), ParseID(chi.URLParam(r, "id")), fields, metaOf(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteOK(w, out)
}

func (c *Channel) handleDestroy(w http.ResponseWriter, r *http.Request) {
	m, ok := c.model(w, r)
	if !ok {
		return
	}

	fields, err := decodeBody(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	out, err := m.Destroy(r.Context(), ParseID(chi.URLParam(r, "id")), fields, metaOf(r))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	envelope.WriteOK(w, out)
}

// fail logs failures that are not the caller's fault and writes err.
func (c *Channel) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.CodeOf(err) == apperr.InternalServerError {
		c.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}
	envelope.WriteError(w, err)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if r.Body == nil || r.ContentLength == 0 {
		return map[string]any{}, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, apperr.New(apperr.InvalidObjectKey, "invalid JSON body: %v", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func metaOf(r *http.Request) record.Meta {
	return record.Meta{
		Client:     r.Header.Get(HeaderClient),
		SDKVersion: r.Header.Get(HeaderSDKVersion),
		AppVersion: r.Header.Get(HeaderAppVersion),
	}
}

// ParseID returns numeric ids as int64 and anything else unchanged.
func ParseID(s string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n
	}
	return s
}

// NewLoggingMiddleware logs every request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
