package domain

const (
	EventNamePhaseChanged       = "session.phase_changed"
	EventNameTimerTicked        = "session.timer_ticked"
	EventNameRoundResolved      = "session.round_resolved"
	EventNameSessionCompleted   = "session.completed"
	EventNameSessionAbandoned   = "session.abandoned"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventPhaseChanged and EventTimerTicked share a per-session Seq that starts at 1 and grows with every event.
// Delivery is unordered, so an observer keeps the phase change and the tick with the highest Seq it has seen.
type EventPhaseChanged struct {
	SessionID  string
	Seq        uint64
	RoundIndex int
	From       Phase
	To         Phase
}

func (EventPhaseChanged) Name() string { return EventNamePhaseChanged }

type EventTimerTicked struct {
	SessionID string
	Seq       uint64
	Remaining int
}

func (EventTimerTicked) Name() string { return EventNameTimerTicked }

type EventRoundResolved struct {
	SessionID string
	Round     Round
}

func (EventRoundResolved) Name() string { return EventNameRoundResolved }

type EventSessionCompleted struct {
	Result GameResult
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

type EventSessionAbandoned struct {
	SessionID string
	Phase     Phase
}

func (EventSessionAbandoned) Name() string { return EventNameSessionAbandoned }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
