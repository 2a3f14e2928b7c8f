package domain

const (
	EventNameSessionStarted   = "session.started"
	EventNameSessionFinalized = "session.finalized"
)

type EventSessionStarted struct {
	Session Session
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

// EventSessionFinalized is published once per session leaving the active
// state, whether the user submitted, the deadline passed, or the attempt was
// cancelled. Result is nil for cancellations.
type EventSessionFinalized struct {
	Principal string
	Status    SessionStatus
	Result    *Result
}

func (EventSessionFinalized) Name() string { return EventNameSessionFinalized }
