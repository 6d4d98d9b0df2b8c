// Package prometheus serves the node's metrics and operator probes on a
// dedicated listener, separate from the public JSON API.
package prometheus

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"runtime/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	noderuntime "github.com/Hushnetwork-social/hush-server-node-sub008/runtime"
)

var log = logrus.WithField("prefix", "prometheus")

// Service exposes /metrics from the default registerer together with the
// /healthz and /goroutinez operator probes.
type Service struct {
	server      *http.Server
	svcRegistry *noderuntime.ServiceRegistry
	failStatus  error
}

// NewService builds the metrics listener for the host:port given. An
// empty host binds every interface, so ":2121" is acceptable.
func NewService(addr string, svcRegistry *noderuntime.ServiceRegistry) *Service {
	s := &Service{svcRegistry: svcRegistry}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/goroutinez", s.handleGoroutinez)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// handleHealthz polls every registered service and reports 500 as soon
// as any of them is unhealthy, listing the status of each one.
func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	statuses := s.svcRegistry.Statuses()
	unhealthy := false
	var buf bytes.Buffer
	for kind, status := range statuses {
		line := "OK"
		if status != nil {
			unhealthy = true
			line = "ERROR " + status.Error()
		}
		fmt.Fprintf(&buf, "%s: %s\n", kind, line)
	}

	if unhealthy {
		w.WriteHeader(http.StatusInternalServerError)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Error("Could not write healthz body")
	}
}

func (s *Service) handleGoroutinez(w http.ResponseWriter, _ *http.Request) {
	// #nosec G104
	w.Write(debug.Stack())
	// #nosec G104
	pprof.Lookup("goroutine").WriteTo(w, 2)
}

// Start serves until Stop.
func (s *Service) Start() {
	log.WithField("addr", s.server.Addr).Info("Metrics listening")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithField("addr", s.server.Addr).Error("Metrics server failed")
			s.failStatus = err
		}
	}()
}

// Stop shuts the listener down gracefully.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports a failed listener.
func (s *Service) Status() error {
	return s.failStatus
}
