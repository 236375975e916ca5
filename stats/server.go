package stats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"hdvalidator/logbook"
)

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// StartMetricsServer listens on addr and serves the registry in the
// background. An empty addr returns a nil Server and no error.
func StartMetricsServer(addr string) (*Server, error) {
	if addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gather, promhttp.HandlerOpts{}))
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logbook.LogError(logbook.ComponentMetrics, "metrics server stopped", "error", err)
		}
	}()
	logbook.LogInfo(logbook.ComponentMetrics, "serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server. It is a no-op on a nil Server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Push sends the registry to a Prometheus push gateway once, grouped by run.
func Push(addr, runID string) error {
	if addr == "" {
		return nil
	}
	err := push.New(addr, Namespace).Gatherer(Gather).Grouping("run_id", runID).Push()
	if err != nil {
		logbook.LogWarn(logbook.ComponentMetrics, "could not push metrics", "addr", addr, "error", err)
	}
	return err
}
