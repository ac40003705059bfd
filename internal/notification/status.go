package notification

// Status is the canonical outcome consumed by order processing.
type Status int

const (
	StatusFailed Status = iota
	StatusPending
	StatusCompleted
)

// Gateway status values with a non-failure meaning. Matching is exact and
// case-sensitive.
const (
	gatewayApproved = "APPROVED"
	gatewayWaiting  = "WAITING"
)

// MapStatus translates the gateway's free-text status. Anything that is not
// explicitly approved or waiting, including an empty value, is a failure.
func MapStatus(raw string) Status {
	switch raw {
	case gatewayApproved:
		return StatusCompleted
	case gatewayWaiting:
		return StatusPending
	default:
		return StatusFailed
	}
}

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusPending:
		return "pending"
	default:
		return "failed"
	}
}
