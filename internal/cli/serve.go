package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowtrim/pkg/buildinfo"
	"github.com/matzehuels/flowtrim/pkg/config"
	"github.com/matzehuels/flowtrim/pkg/errors"
	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
	"github.com/matzehuels/flowtrim/pkg/observability"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

const (
	// maxRequestBytes bounds request bodies.
	maxRequestBytes = 64 << 20

	shutdownTimeout = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collapse HTTP API",
		Long: `Serve exposes the collapse pipeline over HTTP:

  POST /v1/collapse   collapse a table sent as JSON
  POST /v1/render     draw a table as SVG or DOT
  GET  /healthz       liveness probe
  GET  /metrics       Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || cfg.Server.Addr == "" {
				cfg.Server.Addr = addr
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg config.Config) error {
	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	reg := prometheus.NewRegistry()
	observability.Register(observability.NewPrometheus(reg))
	defer observability.Reset()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(runner, c.Logger, cfg.Collapse, reg).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", cfg.Server.Addr, "cache", cfg.Cache.Backend, "version", buildinfo.Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// =============================================================================
// HTTP Server
// =============================================================================

// server holds the handlers of the HTTP API.
type server struct {
	runner   *pipeline.Runner
	logger   *log.Logger
	defaults config.Collapse
	gatherer prometheus.Gatherer
}

func newServer(runner *pipeline.Runner, logger *log.Logger, defaults config.Collapse, g prometheus.Gatherer) *server {
	return &server{runner: runner, logger: logger, defaults: defaults, gatherer: g}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/collapse", s.handleCollapse)
		r.Post("/render", s.handleRender)
	})
	return r
}

// observe reports every response to the HTTP hooks under its route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status, "duration", elapsed)
	})
}

// collapseRequest is the body of POST /v1/collapse.
type collapseRequest struct {
	Options  *pipeline.Options `json:"options,omitempty"`
	Segments []network.Segment `json:"segments"`
}

// collapseResponse is the body returned by POST /v1/collapse.
type collapseResponse struct {
	RunID     string             `json:"run_id"`
	TableHash string             `json:"table_hash"`
	Cached    bool               `json:"cached"`
	Segments  []network.Segment  `json:"segments"`
	Members   []collapse.Group   `json:"members"`
	Removed   []collapse.Removal `json:"removed"`
	Warnings  []string           `json:"warnings,omitempty"`
	Stats     pipeline.Stats     `json:"stats"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	RunID   string      `json:"run_id,omitempty"`
}

type healthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: buildinfo.Get()})
}

func (s *server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	w.Header().Set("X-Run-ID", runID)
	logger := s.logger.With("run_id", runID)

	var req collapseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, runID, err)
		return
	}
	table, err := newTable(req.Segments)
	if err != nil {
		s.writeError(w, runID, err)
		return
	}

	opts := s.options(req.Options)
	opts.Logger = logger
	res, err := s.runner.Execute(r.Context(), table, opts)
	if err != nil {
		logger.Warn("collapse failed", "err", err)
		s.writeError(w, runID, err)
		return
	}

	writeJSON(w, http.StatusOK, collapseResponse{
		RunID:     runID,
		TableHash: res.TableHash,
		Cached:    res.CacheInfo.CollapseHit,
		Segments:  res.Table.Rows(),
		Members:   res.Members,
		Removed:   res.Removed,
		Warnings:  res.Warnings,
		Stats:     res.Stats,
	})
}

func (s *server) handleRender(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	w.Header().Set("X-Run-ID", runID)

	q := r.URL.Query()
	opts := pipeline.RenderOptions{
		Format:      q.Get("format"),
		ShowRemoved: queryBool(q.Get("show_removed")),
		Detailed:    queryBool(q.Get("detailed")),
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		s.writeError(w, runID, err)
		return
	}

	var req collapseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, runID, err)
		return
	}
	table, err := newTable(req.Segments)
	if err != nil {
		s.writeError(w, runID, err)
		return
	}

	data, _, err := s.runner.Render(r.Context(), table, opts)
	if err != nil {
		s.writeError(w, runID, err)
		return
	}
	contentType := "image/svg+xml"
	if opts.Format == pipeline.FormatDOT {
		contentType = "text/vnd.graphviz"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// options fills unset request options from the server defaults.
func (s *server) options(req *pipeline.Options) pipeline.Options {
	if req == nil {
		req = &pipeline.Options{}
	}
	opts := *req
	if opts.Thresh == 0 {
		opts.Thresh = s.defaults.Thresh
	}
	if opts.Thresh == 0 {
		opts.Thresh = pipeline.DefaultThresh
	}
	if opts.MainstemThresh == 0 {
		opts.MainstemThresh = s.defaults.MainstemThresh
	}
	if opts.Exclude == nil {
		opts.Exclude = s.defaults.Exclude
	}
	opts.AddCategory = opts.AddCategory || s.defaults.AddCategory
	return opts
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid request body")
	}
	return nil
}

func newTable(rows []network.Segment) (*network.Table, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "segments must not be empty")
	}
	t, err := network.New(rows)
	if err != nil {
		code := errors.ErrCodeInvalidInput
		if stderrors.Is(err, network.ErrDuplicateID) {
			code = errors.ErrCodeDuplicateSegment
		}
		return nil, errors.Wrap(code, err, "invalid table")
	}
	return t, nil
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *server) writeError(w http.ResponseWriter, runID string, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.HTTPStatus(err), errorResponse{Error: errorBody{
		Code:    code,
		Message: errors.UserMessage(err),
		RunID:   runID,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
