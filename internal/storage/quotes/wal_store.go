// Package quotes journals quote decisions in a write-ahead log so the web
// stream can backfill history after a restart.
package quotes

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

const (
	DefaultDir   = "./wal/quotes"
	segmentLimit = 100
	maxSegments  = 10

	quoteDecisionKeyPrefix = "quote_decision_"
)

// Entry JSON form of a quote decision.
type Entry struct {
	Timestamp      time.Time       `json:"timestamp"`
	Pair           string          `json:"pair"`
	MidPrice       decimal.Decimal `json:"mid_price"`
	RefPrice       decimal.Decimal `json:"ref_price"`
	BidSpread      decimal.Decimal `json:"bid_spread"`
	AskSpread      decimal.Decimal `json:"ask_spread"`
	BidPrice       decimal.Decimal `json:"bid_price"`
	AskPrice       decimal.Decimal `json:"ask_price"`
	PriceShiftRSI  decimal.Decimal `json:"price_shift_rsi"`
	PriceShiftInv  decimal.Decimal `json:"price_shift_inv"`
	InventoryRatio decimal.Decimal `json:"inventory_ratio"`
	NATR           float64         `json:"natr"`
	RSI            float64         `json:"rsi"`
	PriceMode      string          `json:"price_mode"`
}

// NewEntry converts a decision into its JSON form.
func NewEntry(d domain.QuoteDecision) Entry {
	return Entry{
		Timestamp:      d.Timestamp.UTC(),
		Pair:           d.Pair.String(),
		MidPrice:       d.MidPrice,
		RefPrice:       d.RefPrice,
		BidSpread:      d.BidSpread,
		AskSpread:      d.AskSpread,
		BidPrice:       d.BidPrice,
		AskPrice:       d.AskPrice,
		PriceShiftRSI:  d.PriceShiftRSI,
		PriceShiftInv:  d.PriceShiftInv,
		InventoryRatio: d.InventoryRatio,
		NATR:           d.Indicators.NATR,
		RSI:            d.Indicators.RSI,
		PriceMode:      string(d.PriceMode),
	}
}

// Decision converts the entry back into a domain decision.
func (e Entry) Decision() (domain.QuoteDecision, error) {
	pair, err := domain.ParsePair(e.Pair)
	if err != nil {
		return domain.QuoteDecision{}, err
	}
	return domain.QuoteDecision{
		Timestamp:      e.Timestamp,
		Pair:           pair,
		MidPrice:       e.MidPrice,
		RefPrice:       e.RefPrice,
		BidSpread:      e.BidSpread,
		AskSpread:      e.AskSpread,
		BidPrice:       e.BidPrice,
		AskPrice:       e.AskPrice,
		PriceShiftRSI:  e.PriceShiftRSI,
		PriceShiftInv:  e.PriceShiftInv,
		InventoryRatio: e.InventoryRatio,
		Indicators:     domain.IndicatorSnapshot{NATR: e.NATR, RSI: e.RSI},
		PriceMode:      domain.PriceMode(e.PriceMode),
	}, nil
}

// Record journaled decision with its WAL index.
type Record struct {
	Index uint64 `json:"index"`
	Entry Entry  `json:"decision"`
}

// WALStore persists quote decisions in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// DirFor returns the journal directory of a pair under root.
func DirFor(root string, pair domain.Pair) string {
	if root == "" {
		root = DefaultDir
	}
	return filepath.Join(root, strings.ToLower(pair.String()))
}

// NewWALStore initializes a WAL-backed quote journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "quote_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init quote WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the decision to the WAL.
func (s *WALStore) Append(d domain.QuoteDecision) error {
	if s == nil || s.wal == nil {
		return errors.New("quote store is not initialized")
	}
	if d.Pair.From == "" || d.Pair.To == "" {
		return fmt.Errorf("quote decision pair is required")
	}

	payload, err := json.Marshal(NewEntry(d))
	if err != nil {
		return errors.Wrap(err, "marshal quote decision")
	}

	key := quoteDecisionKeyPrefix + d.Pair.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// EventsAfter returns all decisions written after the provided WAL index.
// Indexes rotated out of the log are skipped.
func (s *WALStore) EventsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("quote store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, quoteDecisionKeyPrefix) {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode quote decision %d", idx)
		}
		records = append(records, Record{Index: idx, Entry: entry})
	}

	return records, nil
}

// Last returns up to n most recent decisions, oldest first.
func (s *WALStore) Last(n int) ([]Record, error) {
	current := s.CurrentIndex()
	from := uint64(0)
	if n > 0 && current > uint64(n) {
		from = current - uint64(n)
	}
	return s.EventsAfter(from)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("quote store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
