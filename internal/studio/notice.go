package studio

import (
	"fmt"
	"sync"
	"time"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-facing message. Blocking notices must be acknowledged
// before the user carries on, as generation failures are.
type Notice struct {
	Level    Level
	Message  string
	Blocking bool
	Time     time.Time
}

func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

const maxNotices = 50

type noticeLog struct {
	mu      sync.Mutex
	entries []Notice
	sink    func(Notice)
}

func (l *noticeLog) add(n Notice) {
	n.Time = time.Now()
	l.mu.Lock()
	l.entries = append(l.entries, n)
	if len(l.entries) > maxNotices {
		l.entries = l.entries[len(l.entries)-maxNotices:]
	}
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink(n)
	}
}

// drain returns and forgets the queued notices.
func (l *noticeLog) drain() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}
