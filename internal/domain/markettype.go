package domain

// MarketType type of market for trading.
type MarketType string

const (
	// MarketTypeSpot spot trading.
	MarketTypeSpot MarketType = "spot"
	// MarketTypePerpetual perpetual futures trading.
	MarketTypePerpetual MarketType = "perpetual"
)

// String returns the string representation.
func (m MarketType) String() string {
	return string(m)
}

// IsValid checks if the MarketType value is valid.
func (m MarketType) IsValid() bool {
	return m == MarketTypeSpot || m == MarketTypePerpetual
}
