package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	InputStarted Type = iota + 1
	InputCompleted
	InputFailed
	InputSkipped
)

var typeNames = [...]string{
	InputStarted:   "InputStarted",
	InputCompleted: "InputCompleted",
	InputFailed:    "InputFailed",
	InputSkipped:   "InputSkipped",
}

func (t Type) String() string {
	if int(t) > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event reports progress on one input, in input order.
type Event struct {
	Type      Type
	Timestamp time.Time
	Name      string // display name ("-" for standard input)
	Index     int    // position in the input list
	Size      int64  // bytes written to the output
	Method    string // copy method that moved the last bytes
	Error     error
}
