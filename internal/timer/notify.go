package timer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type NoticeKind string

const (
	NoticeRestComplete     NoticeKind = "rest_complete"
	NoticeCheckpointFailed NoticeKind = "checkpoint_failed"
	NoticeSessionLogFailed NoticeKind = "session_log_failed"
	NoticeCompleteFailed   NoticeKind = "complete_failed"
	NoticeReconcileFailed  NoticeKind = "reconcile_failed"
)

// Notice is a non-blocking, user-facing notification (a toast in the UI).
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Scope   string     `json:"scope"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Notifier receives notices. Implementations must not call back into the timers.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notifiers fans a notice out to every non-nil notifier.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notice) {
	for _, x := range ns {
		if x != nil {
			x.Notify(n)
		}
	}
}

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	event := l.Logger.Warn()
	if n.Kind == NoticeRestComplete {
		event = l.Logger.Info()
	}
	event.Str("kind", string(n.Kind)).Str("scope", n.Scope).Msg(n.Message)
}

const defaultNoticeCapacity = 32

// NoticeBuffer keeps the most recent notices until they are drained.
type NoticeBuffer struct {
	mu    sync.Mutex
	items []Notice
	max   int
}

func NewNoticeBuffer(capacity int) *NoticeBuffer {
	if capacity <= 0 {
		capacity = defaultNoticeCapacity
	}
	return &NoticeBuffer{max: capacity}
}

func (b *NoticeBuffer) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if len(b.items) > b.max {
		b.items = b.items[len(b.items)-b.max:]
	}
}

// Drain returns the buffered notices oldest first and empties the buffer.
func (b *NoticeBuffer) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}
