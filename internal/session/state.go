package session

type ConnectionPhase int

const (
	AwaitingInput ConnectionPhase = iota
	Connecting
	Established
	Failed
)

func (p ConnectionPhase) String() string {
	switch p {
	case AwaitingInput:
		return "awaiting_input"
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionState carries Reason only in the Failed phase.
type ConnectionState struct {
	Phase  ConnectionPhase
	Reason string
}

type ExchangeStatus int

const (
	Idle ExchangeStatus = iota
	InFlight
	Succeeded
	ExchangeFailed
)

func (s ExchangeStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case ExchangeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// QueryExchange is the latest natural-language exchange. SQL keeps the last
// successful result even after a later failure.
type QueryExchange struct {
	Question string
	Status   ExchangeStatus
	SQL      string
	Reason   string
}

// Stale reports whether SQL is left over from an earlier exchange that a
// later failure superseded.
func (e QueryExchange) Stale() bool {
	return e.Status == ExchangeFailed && e.SQL != ""
}
