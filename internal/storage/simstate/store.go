// Package simstate persists the paper trading venue between restarts.
package simstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
)

const defaultStateDir = "./wal/simulate"

// Store persists simulator state per trading pair so restarts keep balances and resting orders.
type Store struct {
	path string
}

func getStateDir() string {
	if stateDir := os.Getenv("QUOTER_SIMULATE_STATE_DIR"); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// NewStore creates a simulator state store for the given pair under the default directory.
func NewStore(pair domain.Pair, scope string) (*Store, error) {
	return NewStoreInDir(getStateDir(), pair, scope)
}

// NewStoreInDir creates a simulator state store under dir.
func NewStoreInDir(dir string, pair domain.Pair, scope string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulate state dir")
	}

	storeFileName := sanitizeScope(scope)
	if storeFileName == "" {
		storeFileName = strings.ToLower(pair.String())
	}

	fullName := fmt.Sprintf("%s.json", storeFileName)

	return &Store{path: filepath.Join(dir, fullName)}, nil
}

// State represents all persisted simulator data.
type State struct {
	Wallet map[string]string `json:"wallet"`
	Orders []StoredOrder     `json:"orders,omitempty"`
	Pair   string            `json:"pair"`
}

// StoredOrder resting limit order with its reserved funds implied by side, amount and price.
type StoredOrder struct {
	CreatedAt time.Time   `json:"created_at"`
	ID        string      `json:"id"`
	Side      domain.Side `json:"side"`
	Amount    string      `json:"amount"`
	Price     string      `json:"price"`
}

// Decode parses the decimal fields of the order.
func (o StoredOrder) Decode() (amount, price decimal.Decimal, err error) {
	amount, err = decimal.NewFromString(o.Amount)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "decode order %s amount", o.ID)
	}
	price, err = decimal.NewFromString(o.Price)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "decode order %s price", o.ID)
	}
	return amount, price, nil
}

// Load reads simulator state from disk. A missing file yields nil state.
func (s *Store) Load() (*State, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read simulate state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode simulate state")
	}

	return &state, nil
}

// Save writes simulator state to disk atomically via temp file.
func (s *Store) Save(state State) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode simulate state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write simulate state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist simulate state")
	}

	return nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

func sanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
