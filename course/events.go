package course

import (
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// EventType classifies run events.
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventSkipped   EventType = "skipped" // destination already exists
	EventFailed    EventType = "failed"
)

// Event is one step of a course download, consumable by any presentation
// layer. Written/Total are set on progress events; Total is -1 when the
// server advertises no length. Err is set on failed events.
type Event struct {
	Type    EventType
	Item    string // human-readable item identity
	Path    string // destination path, when known
	Written int64
	Total   int64
	Err     error
}

// Listener consumes run events. Listeners are invoked synchronously from
// worker goroutines and must be safe for concurrent use.
type Listener func(Event)

// LogListener returns a Listener that reports events through the standard
// logger. It is the default sink when a Runner has none configured.
func LogListener() Listener {
	return func(ev Event) {
		switch ev.Type {
		case EventStarted:
			log.Infof("starting %s", ev.Item)
		case EventProgress:
			if ev.Total >= 0 {
				log.Debugf("%s: %s / %s", ev.Item, humanize.Bytes(uint64(ev.Written)), humanize.Bytes(uint64(ev.Total)))
			} else {
				log.Debugf("%s: %s", ev.Item, humanize.Bytes(uint64(ev.Written)))
			}
		case EventCompleted:
			log.Infof("completed %s: %s", ev.Item, ev.Path)
		case EventSkipped:
			log.Infof("skipping %s: already exists: %s", ev.Item, ev.Path)
		case EventFailed:
			log.WithError(ev.Err).Errorf("failed %s", ev.Item)
		}
	}
}
