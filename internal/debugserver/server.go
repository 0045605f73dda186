// Package debugserver exposes a read-only HTTP view of an opened dataset:
// JSON endpoints for stats, index resolution, frames and templates, chart
// pages, and the tsweb debug surface with tailsql over the SQLite cache.
package debugserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tracklets/internal/httputil"
	"github.com/banshee-data/tracklets/internal/kitti"
	"github.com/banshee-data/tracklets/internal/kitti/index"
	"github.com/banshee-data/tracklets/internal/kitti/storage/sqlite"
	"github.com/banshee-data/tracklets/internal/monitoring"
	"github.com/banshee-data/tracklets/internal/report"
)

var logf = monitoring.Component("debugserver")

// Config configures a Server.
type Config struct {
	Address string
	Dataset *kitti.Dataset
	// SQLite, when set, is browsable under /debug/tailsql/.
	SQLite *sqlite.CacheStore
}

// Server serves the debug endpoints.
type Server struct {
	ds     *kitti.Dataset
	sqlite *sqlite.CacheStore
	server *http.Server
}

// New creates a server; call Start to listen.
func New(cfg Config) *Server {
	s := &Server{ds: cfg.Dataset, sqlite: cfg.SQLite}
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	if err := s.AttachAdminRoutes(mux); err != nil {
		logf("admin routes disabled: %v", err)
	}
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// RegisterRoutes installs the API and chart routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/template", s.handleTemplate)
	mux.HandleFunc("/charts/lengths", s.handleLengthChart)
	mux.HandleFunc("/charts/lengths.png", s.handleLengthPlot)
}

// AttachAdminRoutes mounts tsweb's /debug/ pages and, with a SQLite cache,
// tailsql.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	if s.sqlite == nil {
		return nil
	}
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.sqlite.Path(), s.sqlite.DB(), &tailsql.DBOptions{
		Label: "Tracklet cache",
	})
	debug.Handle("tailsql/", "SQL live debugging of the tracklet cache", tsql.NewMux())
	return nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logf("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.server.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logf("shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			logf("force close error: %v", err)
		}
	}
	logf("stopped")
	return nil
}

// Stats summarizes the dataset for /api/stats.
func Stats(ds *kitti.Dataset) report.Summary {
	sum := report.Summarize(ds.Tracklets())
	sum.Split = string(ds.Split())
	sum.Fingerprint = ds.Fingerprint().Key()
	sum.Cached = ds.Cached()
	return sum
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, Stats(s.ds))
}

type resolveResponse struct {
	Index    int `json:"index"`
	Tracklet int `json:"tracklet"`
	Frame    int `json:"frame"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g, err := httputil.IntQuery(r, "index")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	t, f, err := s.ds.Resolve(g)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, resolveResponse{Index: g, Tracklet: t, Frame: f})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	t, err := httputil.IntQuery(r, "tracklet")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	f, err := httputil.IntQuery(r, "frame")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	frame, err := s.ds.Frame(t, f)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, newFrameResponse(t, f, frame, httputil.BoolQuery(r, "points")))
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	t, err := httputil.IntQuery(r, "tracklet")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	pc, err := s.ds.TemplatePointCloud(t)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, templateResponse{
		Tracklet: t,
		Cloud:    newCloudResponse(pc, httputil.BoolQuery(r, "points")),
	})
}

func (s *Server) handleLengthChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, Stats(s.ds), report.LengthHistogram(s.ds.Tracklets())); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleLengthPlot(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := report.WriteLengthPlot(&buf, s.ds.Tracklets(), s.ds.Fingerprint().Key())
	if errors.Is(err, report.ErrNoTracklets) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, index.ErrIndexOutOfRange):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, kitti.ErrTemplateUnavailable):
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
