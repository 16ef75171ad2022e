// Command quotetail follows the quote stream of a running quoter. With
// --conns above 1 it also acts as a load generator for the stream endpoint.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/quoter/internal/storage/quotes"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	events      atomic.Int64
}

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
	)
	flag.StringVar(&targetURL, "url", "http://localhost:8080/quotes/stream", "quote stream URL")
	flag.IntVar(&connections, "conns", 1, "number of concurrent connections, only the first one prints")
	flag.DurationVar(&duration, "dur", 0, "run duration (0 for until interrupted)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{Transport: &http.Transport{
		MaxConnsPerHost:     connections + 10,
		MaxIdleConnsPerHost: connections + 10,
		DisableCompression:  true,
	}}

	var c counters
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < connections; i++ {
		verbose := i == 0
		g.Go(func() error {
			if err := follow(ctx, client, targetURL, verbose, &c, logger); err != nil && ctx.Err() == nil {
				c.connectErrs.Add(1)
				logger.Warn("stream ended", zap.Error(err))
			}
			return nil
		})
	}

	if connections > 1 {
		go report(ctx, &c, start, logger)
	}

	_ = g.Wait()
	logger.Info("done",
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("events", c.events.Load()),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
}

func follow(ctx context.Context, client *http.Client, url string, verbose bool, c *counters, logger *zap.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	c.connected.Add(1)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		c.events.Add(1)
		if !verbose {
			continue
		}

		var e quotes.Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			logger.Warn("undecodable quote", zap.String("payload", payload), zap.Error(err))
			continue
		}
		logger.Info("quote",
			zap.Time("at", e.Timestamp),
			zap.String("pair", e.Pair),
			zap.String("mid", e.MidPrice.String()),
			zap.String("bid", e.BidPrice.String()),
			zap.String("ask", e.AskPrice.String()),
			zap.Float64("natr", e.NATR),
			zap.Float64("rsi", e.RSI))
	}
	return scanner.Err()
}

func report(ctx context.Context, c *counters, start time.Time, logger *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("events", c.events.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
