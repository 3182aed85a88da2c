package model

import "fmt"

// EventKind enumerates the gaze events the detector can report.
type EventKind int

// Event kinds.
const (
	SaccadeStart EventKind = iota + 1
	SaccadeEnd
	FixationStart
	FixationEnd
	BlinkStart
	BlinkEnd
)

var eventNames = map[EventKind]string{ //nolint:gochecknoglobals // lookup table
	SaccadeStart:  "saccade_start",
	SaccadeEnd:    "saccade_end",
	FixationStart: "fixation_start",
	FixationEnd:   "fixation_end",
	BlinkStart:    "blink_start",
	BlinkEnd:      "blink_end",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind maps a name such as "fixation_start" to its kind.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// EventRecord is a detected gaze event. EndPos is set for *_end events that
// have a meaningful end position.
type EventRecord struct {
	Kind     EventKind
	Time     int64
	StartPos Position
	EndPos   *Position
}
