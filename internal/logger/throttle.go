package logger

import (
	"sync/atomic"
	"time"
)

// Throttled emits at most one message per interval. Suppressed messages are
// counted and reported with the next one that gets through. Safe for
// concurrent use.
type Throttled struct {
	l          *Logger
	every      time.Duration
	next       atomic.Int64
	suppressed atomic.Uint64
	now        func() time.Time
}

// Throttled wraps l for call sites on the frame path, where a fault repeats
// at bus rate.
func (l *Logger) Throttled(every time.Duration) *Throttled {
	return &Throttled{l: l, every: every, now: time.Now}
}

func (t *Throttled) allow() (uint64, bool) {
	now := t.now().UnixNano()
	next := t.next.Load()
	if now < next || !t.next.CompareAndSwap(next, now+int64(t.every)) {
		t.suppressed.Add(1)
		return 0, false
	}
	return t.suppressed.Swap(0), true
}

func (t *Throttled) Warnf(format string, v ...interface{}) {
	if t.l.level < LogLevelWarning {
		return
	}
	if n, ok := t.allow(); ok {
		if n > 0 {
			format += " (%d similar suppressed)"
			v = append(v, n)
		}
		t.l.Warnf(format, v...)
	}
}

func (t *Throttled) Errorf(format string, v ...interface{}) {
	if t.l.level < LogLevelError {
		return
	}
	if n, ok := t.allow(); ok {
		if n > 0 {
			format += " (%d similar suppressed)"
			v = append(v, n)
		}
		t.l.Errorf(format, v...)
	}
}
