package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/rs/cors"

	"lora-locator/internal/logging"
	"lora-locator/internal/metadata"
	"lora-locator/internal/registry"
)

// SnapshotSource publishes the latest registry snapshot.
type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

// Options configures the admin server.
type Options struct {
	AllowedOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// OnStatus is told when the listener comes up and goes down.
	OnStatus func(active bool)
}

type Server struct {
	src  SnapshotSource
	opts Options
	tpl  *template.Template
}

//go:embed templates/index.html
var content embed.FS

func NewServer(src SnapshotSource, opts Options) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{src: src, opts: opts, tpl: tpl}
}

// Handler returns the CORS-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /sensors/{id}", s.handleSensor)
	mux.HandleFunc("GET /calibration", s.handleCalibration)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("admin UI listening", "addr", addr)
	s.status(true)
	defer s.status(false)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) status(active bool) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(active)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	data := struct {
		Exponent float64
		Gateways int
		Sensors  int
	}{
		Exponent: snap.Exponent,
		Gateways: len(snap.Gateways),
		Sensors:  len(snap.Sensors),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	id := metadata.NormalizeEUI(r.PathValue("id"))
	v, ok := s.src.Snapshot().Sensor(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown sensor " + id})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"path_loss_exponent": snap.Exponent,
		"samples":            snap.CalibrationSamples,
		"mean_error_m":       snap.MeanErrorM,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
