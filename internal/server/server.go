// =============================================================================
// Rural Credit Season Pipeline - HTTP API
// =============================================================================
//
// This module serves the aggregation outputs over HTTP. The harmonized table
// is loaded once through a loader.Memo and shared by every request; each
// request only resolves its window, filters and aggregates.
//
// ROUTES:
//   GET  /healthz                            liveness and load state
//   GET  /metrics                            Prometheus exposition
//   GET  /api/seasons                        seasons present, newest first
//   GET  /api/institutions                   institutions present, sorted
//   GET  /api/load-report                    partitions loaded and skipped
//   POST /api/reload                         discard the table and load again
//   GET  /api/evolution                      monthly evolution rows
//   GET  /api/market-share                   one share table per season
//   GET  /api/charts/evolution.png           monthly evolution chart
//   GET  /api/charts/market-share/{season}   share chart of one season (PNG)
//   GET  /api/export.xlsx                    workbook with every output
//
// SELECTION PARAMETERS (evolution, market-share, charts, export):
//   start, end    month number or name; default is the whole season
//   season        repeatable; default is every season
//   institution   repeatable; default is every institution
//
// =============================================================================

package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/aggregate"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/export"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/filter"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/loader"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/logger"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/metrics"
	charts "github.com/jpmelo-tech/acompanhamento-safra/internal/render"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server holds the request handlers.
type Server struct {
	memo    *loader.Memo
	order   season.CyclicOrder
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a Server.
//
// PARAMETERS:
//   - memo: The cached table shared by all requests.
//   - order: The cyclic month order used to resolve windows.
//   - log: The base logger; each request gets a child with its request id.
//   - m: Optional metrics; nil disables recording and /metrics.
func New(memo *loader.Memo, order season.CyclicOrder, log zerolog.Logger, m *metrics.Metrics) *Server {
	return &Server{memo: memo, order: order, log: log, metrics: m}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log, s.metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, &ProblemDetails{
			Type:     TypeNotFound,
			Title:    "Resource Not Found",
			Status:   http.StatusNotFound,
			Instance: r.URL.Path,
		})
	})

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Get("/seasons", s.seasons)
			r.Get("/institutions", s.institutions)
			r.Get("/load-report", s.loadReport)
			r.Post("/reload", s.reload)
			r.Get("/evolution", s.evolution)
			r.Get("/market-share", s.marketShare)
		})

		r.Get("/charts/evolution.png", s.evolutionChart)
		r.Get("/charts/market-share/{season}", s.shareChart)
		r.Get("/export.xlsx", s.exportWorkbook)
	})

	return r
}

// =============================================================================
// RESPONSES
// =============================================================================

type windowResponse struct {
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Months     []int    `json:"months"`
	MonthNames []string `json:"month_names"`
}

func newWindowResponse(w season.Window) windowResponse {
	names := make([]string, len(w.Months))
	for i, m := range w.Months {
		names[i] = season.MonthName(m)
	}
	return windowResponse{Start: w.Start, End: w.End, Months: w.Months, MonthNames: names}
}

type evolutionResponse struct {
	Window   windowResponse           `json:"window"`
	Selected int                      `json:"selected_rows"`
	Rows     []aggregate.EvolutionRow `json:"rows"`
}

type marketShareResponse struct {
	Window   windowResponse          `json:"window"`
	Selected int                     `json:"selected_rows"`
	Seasons  []aggregate.SeasonShare `json:"seasons"`
}

type loadedPartition struct {
	Partition string `json:"partition"`
	File      string `json:"file"`
	Format    string `json:"format"`
	Bytes     int    `json:"bytes"`
	Rows      int    `json:"rows"`
	FetchMS   int64  `json:"fetch_ms"`
}

type failedPartition struct {
	Partition string `json:"partition"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

type loadReportResponse struct {
	RunID      string            `json:"run_id"`
	Requested  []string          `json:"requested"`
	Loaded     []loadedPartition `json:"loaded"`
	Failures   []failedPartition `json:"failures"`
	Rows       int               `json:"rows"`
	Columns    int               `json:"columns"`
	DurationMS int64             `json:"duration_ms"`
}

func newLoadReportResponse(rep *loader.Report) loadReportResponse {
	resp := loadReportResponse{
		RunID:      rep.RunID,
		Requested:  rep.Requested,
		Loaded:     make([]loadedPartition, 0, len(rep.Loaded)),
		Failures:   make([]failedPartition, 0, len(rep.Failures)),
		Rows:       rep.Rows,
		Columns:    rep.Columns,
		DurationMS: rep.Duration.Milliseconds(),
	}
	for _, p := range rep.Loaded {
		resp.Loaded = append(resp.Loaded, loadedPartition{
			Partition: p.Partition,
			File:      p.File,
			Format:    string(p.Format),
			Bytes:     p.Bytes,
			Rows:      p.Rows,
			FetchMS:   p.FetchTime.Milliseconds(),
		})
	}
	for _, f := range rep.Failures {
		resp.Failures = append(resp.Failures, failedPartition{
			Partition: f.Partition,
			Stage:     string(f.Stage),
			Error:     f.Err.Error(),
		})
	}
	return resp
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status": "ok",
		"loaded": s.memo.Loaded(),
	})
}

func (s *Server) seasons(w http.ResponseWriter, r *http.Request) {
	t, _ := s.table(r)
	render.JSON(w, r, map[string][]string{"seasons": nonNil(filter.Seasons(t))})
}

func (s *Server) institutions(w http.ResponseWriter, r *http.Request) {
	t, _ := s.table(r)
	render.JSON(w, r, map[string][]string{"institutions": nonNil(filter.Institutions(t))})
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) {
	_, rep := s.table(r)
	render.JSON(w, r, newLoadReportResponse(rep))
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	_, rep := s.memo.Reload(context.WithoutCancel(r.Context()))
	log := logger.FromContext(r.Context())
	log.Info().
		Str("run_id", rep.RunID).
		Int("rows", rep.Rows).
		Int("failed", len(rep.Failures)).
		Msg("table reloaded")
	render.JSON(w, r, newLoadReportResponse(rep))
}

func (s *Server) evolution(w http.ResponseWriter, r *http.Request) {
	window, view, err := s.selection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := aggregate.MonthlyEvolution(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, evolutionResponse{
		Window:   newWindowResponse(window),
		Selected: view.Len(),
		Rows:     nonNil(rows),
	})
}

func (s *Server) marketShare(w http.ResponseWriter, r *http.Request) {
	window, view, err := s.selection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shares, err := aggregate.MarketShare(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, marketShareResponse{
		Window:   newWindowResponse(window),
		Selected: view.Len(),
		Seasons:  nonNil(shares),
	})
}

func (s *Server) evolutionChart(w http.ResponseWriter, r *http.Request) {
	_, view, err := s.selection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := aggregate.MonthlyEvolution(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := charts.EvolutionPlot(rows, s.order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := charts.WritePNG(p, w); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("write chart")
	}
}

func (s *Server) shareChart(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSuffix(chi.URLParam(r, "season"), ".png")
	_, view, err := s.selection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shares, err := aggregate.MarketShare(view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// An unknown or filtered-out season renders the "no data" chart.
	share := aggregate.SeasonShare{Season: label}
	for _, sh := range shares {
		if sh.Season == label {
			share = sh
			break
		}
	}

	p, err := charts.SharePlot(share)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := charts.WritePNG(p, w); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("write chart")
	}
}

func (s *Server) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	t, rep := s.table(r)
	window, view, err := s.selection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := aggregate.MonthlyEvolution(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	shares, err := aggregate.MarketShare(view)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	f, err := export.Build(&export.Report{
		Summary: export.Summary{
			RunID:        rep.RunID,
			GeneratedAt:  time.Now(),
			Window:       window,
			Seasons:      cleanValues(q["season"]),
			Institutions: cleanValues(q["institution"]),
			TableRows:    t.Len(),
			ViewRows:     view.Len(),
			Loaded:       t.Partitions(),
			Failed:       failedIDs(rep),
		},
		Evolution: rows,
		Shares:    shares,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="acompanhamento_safra.xlsx"`)
	if err := f.Write(w); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("write workbook")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// table returns the shared table. The first load is detached from the
// request so that a client disconnect does not poison the cache.
func (s *Server) table(r *http.Request) (*table.Table, *loader.Report) {
	return s.memo.Get(context.WithoutCancel(r.Context()))
}

// selection resolves the window and filters the shared table.
func (s *Server) selection(r *http.Request) (season.Window, *filter.View, error) {
	q := r.URL.Query()

	start, end := s.order[0], s.order[len(s.order)-1]
	if v := q.Get("start"); v != "" {
		m, err := season.ParseMonth("start", v)
		if err != nil {
			return season.Window{}, nil, err
		}
		start = m
	}
	if v := q.Get("end"); v != "" {
		m, err := season.ParseMonth("end", v)
		if err != nil {
			return season.Window{}, nil, err
		}
		end = m
	}

	window, err := season.Resolve(s.order, start, end)
	if err != nil {
		return season.Window{}, nil, err
	}

	t, _ := s.table(r)
	sel := filter.ForWindow(window, cleanValues(q["season"]), cleanValues(q["institution"]))
	return window, filter.Apply(t, sel), nil
}

// cleanValues trims repeated query values and drops empty ones, so that
// "?institution=" means no restriction.
func cleanValues(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func failedIDs(rep *loader.Report) []string {
	ids := make([]string, len(rep.Failures))
	for i, f := range rep.Failures {
		ids[i] = f.Partition
	}
	return ids
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
