// Package web serves the quoter status text, a live stream of quote decisions
// and Prometheus metrics.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/storage/quotes"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	backfillSize      = 100
	heartbeatInterval = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type statusFormatter interface {
	Format(ctx context.Context) string
}

type quoteJournal interface {
	Last(n int) ([]quotes.Record, error)
}

type decisionSource interface {
	Subscribe() chan domain.QuoteDecision
	Unsubscribe(ch chan domain.QuoteDecision)
}

// Server exposes the status endpoints of one quoter.
type Server struct {
	Addr      string
	Status    statusFormatter
	Journal   quoteJournal
	Decisions decisionSource
	logger    *zap.Logger
}

// NewServer creates a new web server instance. journal and decisions may be nil.
func NewServer(addr string, status statusFormatter, journal quoteJournal, decisions decisionSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Status: status, Journal: journal, Decisions: decisions, logger: logger}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/quotes/stream", s.handleQuoteStream)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("status server listening with TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Status == nil {
		http.Error(w, "status not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, s.Status.Format(r.Context()))
}

func (s *Server) handleQuoteStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil && s.Decisions == nil {
		http.Error(w, "quote stream not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// subscribe before the backfill so no decision falls between the two
	var live chan domain.QuoteDecision
	if s.Decisions != nil {
		live = s.Decisions.Subscribe()
		defer s.Decisions.Unsubscribe(live)
	}

	var backfill []quotes.Record
	if s.Journal != nil {
		records, err := s.Journal.Last(backfillSize)
		if err != nil {
			s.logger.Error("quote stream backfill failed", zap.Error(err))
			http.Error(w, "failed to load quotes", http.StatusInternalServerError)
			return
		}
		backfill = records
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// decisions journaled after Subscribe arrive both ways, lastSent drops the live copy
	var lastSent time.Time
	for _, record := range backfill {
		if err := writeEvent(w, record.Entry); err != nil {
			return
		}
		lastSent = record.Entry.Timestamp
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case d, ok := <-live:
			if !ok {
				return
			}
			if !d.Timestamp.After(lastSent) {
				continue
			}
			if err := writeEvent(w, quotes.NewEntry(d)); err != nil {
				s.logger.Debug("quote stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, entry quotes.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: quote\ndata: %s\n\n", payload)
	return err
}
