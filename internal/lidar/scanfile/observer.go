package scanfile

import "time"

// Action is how a read reconciled the requested window with the stream
// position.
type Action string

const (
	// ActionContinue: the window started at the stream position.
	ActionContinue Action = "continue"
	// ActionReplay: the window started behind the stream position, so the
	// stream was rewound and replayed from the beginning.
	ActionReplay Action = "replay"
	// ActionSkip: the window started ahead of the stream position, so
	// intervening pulses were discarded.
	ActionSkip Action = "skip"
)

// ReadEvent describes one completed ReadData call.
type ReadEvent struct {
	HandleID  string
	Start     int
	End       int
	Action    Action
	Pulses    int // pulses returned
	Points    int // points returned
	Units     int // units pulled from the source
	Observed  int // shots observed on the stream so far
	Finished  bool
	StartedAt time.Time
	Duration  time.Duration
}

// ReadObserver receives an event after every successful read.
type ReadObserver interface {
	ObserveRead(ev ReadEvent)
}

// ReadObserverFunc adapts a function to ReadObserver.
type ReadObserverFunc func(ev ReadEvent)

// ObserveRead calls f(ev).
func (f ReadObserverFunc) ObserveRead(ev ReadEvent) { f(ev) }

// ReadStats accumulates counters over the life of a ScanFile.
type ReadStats struct {
	Reads          int
	Replays        int
	Skips          int
	UnitsRead      int
	PulsesReturned int
	PointsReturned int
}
