package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/yourneighborhoodchef/skuwatch/internal/monitor"
)

// SnapshotSource yields the latest scheduler snapshot.
type SnapshotSource interface {
	Load() monitor.Snapshot
}

type healthResponse struct {
	Status string        `json:"status"`
	Phase  monitor.Phase `json:"phase"`
}

// NewRouter serves /healthz, /status and, when metrics is non-nil, /metrics.
func NewRouter(snapshots SnapshotSource, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		snap := snapshots.Load()
		resp := healthResponse{Status: "ok", Phase: snap.Phase}
		if snap.Phase == monitor.PhaseDraining || snap.Phase == monitor.PhaseStopped {
			resp.Status = "stopping"
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, resp)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, snapshots.Load())
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}

type Server struct {
	srv *http.Server
	log *slog.Logger
}

func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With("component", "status_server"),
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("status server listening", "address", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server exited", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down status server")
	return s.srv.Shutdown(ctx)
}
