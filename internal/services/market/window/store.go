// Package window holds the latest published candle window shared between the
// market data feed and the quoting loop.
package window

import (
	"sync/atomic"

	"github.com/vadiminshakov/quoter/internal/domain"
)

// Store single-writer, multi-reader snapshot of the most recent candle window.
// Publish swaps the whole window; readers never block and never see a partial update.
type Store struct {
	current atomic.Pointer[domain.CandleWindow]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the current snapshot with a private copy of w.
func (s *Store) Publish(w domain.CandleWindow) {
	snapshot := domain.NewCandleWindow(w.Bars, w.FetchedAt)
	s.current.Store(&snapshot)
}

// Read returns the latest snapshot, false before the first publish.
func (s *Store) Read() (domain.CandleWindow, bool) {
	w := s.current.Load()
	if w == nil {
		return domain.CandleWindow{}, false
	}
	return *w, true
}
