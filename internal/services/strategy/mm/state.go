package mm

// State phase of the quoting cycle.
type State int32

const (
	StateIdle State = iota
	StateGated
	StateComputing
	StateDeciding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGated:
		return "gated"
	case StateComputing:
		return "computing"
	case StateDeciding:
		return "deciding"
	default:
		return "unknown"
	}
}
