package task

import (
	"sync"
	"time"
)

// State is the lifecycle state of a task as seen by its monitor.
type State string

// Monitor states. NOT_STARTED -> RUNNING -> {COMPLETED, CANCELLED, FAILED}.
const (
	StateNotStarted State = "NOT_STARTED"
	StateRunning    State = "RUNNING"
	StateCompleted  State = "COMPLETED"
	StateCancelled  State = "CANCELLED"
	StateFailed     State = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// LogLevel classifies a monitor message.
type LogLevel string

// Message levels.
const (
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// LogMessage is a message a task reports to its client. Messages are
// compared by value.
type LogMessage struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// Info builds an informational message.
func Info(msg string) LogMessage { return LogMessage{Level: LevelInfo, Message: msg} }

// Warn builds a warning message.
func Warn(msg string) LogMessage { return LogMessage{Level: LevelWarn, Message: msg} }

// Error builds an error message.
func Error(msg string) LogMessage { return LogMessage{Level: LevelError, Message: msg} }

// Snapshot is an immutable copy of a monitor. Absent timestamps are nil.
type Snapshot struct {
	Handle      Handle       `json:"handle"`
	User        string       `json:"user,omitempty"`
	Project     Project      `json:"project"`
	Title       string       `json:"title"`
	Kind        string       `json:"kind,omitempty"`
	State       State        `json:"state"`
	Progress    int          `json:"progress"`
	MaxProgress int          `json:"max_progress"`
	CreateTime  time.Time    `json:"create_time"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	Messages    []LogMessage `json:"messages,omitempty"`
	Destroyed   bool         `json:"destroyed"`
}

// Duration returns the run time of a finished task, or zero.
func (s Snapshot) Duration() time.Duration {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Notifier receives monitor changes. Notify is called after every state or
// progress change; Ended is called exactly once when the monitor is
// destroyed.
type Notifier interface {
	Notify(s Snapshot)
	Ended(s Snapshot)
}

// BlindNotifier discards all notifications.
type BlindNotifier struct{}

// Notify implements Notifier.
func (BlindNotifier) Notify(Snapshot) {}

// Ended implements Notifier.
func (BlindNotifier) Ended(Snapshot) {}

// Monitor tracks the progress and state of exactly one task. All methods
// are safe for concurrent use and never fail.
type Monitor struct {
	// emit serializes notifications so they reach the notifier in the
	// order the snapshots were taken, and none follows Ended.
	emit sync.Mutex
	mu   sync.RWMutex

	handle  Handle
	user    string
	project Project
	title   string
	kind    string

	createTime time.Time
	startTime  time.Time
	endTime    time.Time

	progress    int
	maxProgress int
	state       State

	messages []LogMessage
	seen     map[LogMessage]struct{}

	destroyed bool
	notifier  Notifier
	now       func() time.Time
}

func newMonitor(handle Handle, user string, project Project, title string, created time.Time) *Monitor {
	return &Monitor{
		handle:     handle,
		user:       user,
		project:    project,
		title:      title,
		createTime: created,
		state:      StateNotStarted,
		seen:       make(map[LogMessage]struct{}),
		notifier:   BlindNotifier{},
		now:        time.Now,
	}
}

// attach binds a notifier and the task kind. Called once before the task
// is admitted.
func (m *Monitor) attach(n Notifier, kind string) {
	if n == nil {
		n = BlindNotifier{}
	}
	m.mu.Lock()
	m.notifier = n
	m.kind = kind
	m.mu.Unlock()
}

// Handle returns the handle of the monitored task.
func (m *Monitor) Handle() Handle { return m.handle }

// Title returns the monitor title.
func (m *Monitor) Title() string { return m.title }

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Progress returns the current progress and max progress.
func (m *Monitor) Progress() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress, m.maxProgress
}

// Messages returns a copy of the reported messages in insertion order.
func (m *Monitor) Messages() []LogMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LogMessage(nil), m.messages...)
}

// IsDestroyed reports whether Destroy has been called.
func (m *Monitor) IsDestroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.destroyed
}

// SetState moves the monitor to state. Transitions out of a terminal
// state are ignored.
func (m *Monitor) SetState(state State) {
	m.update(func() bool {
		return m.setStateLocked(state)
	})
}

// SetProgress updates progress and max progress.
func (m *Monitor) SetProgress(progress, maxProgress int) {
	m.update(func() bool {
		m.progress = progress
		m.maxProgress = maxProgress
		return true
	})
}

// SetProgressWithMessage updates progress and appends msg unless an
// identical message was already reported.
func (m *Monitor) SetProgressWithMessage(progress, maxProgress int, msg LogMessage) {
	m.update(func() bool {
		m.progress = progress
		m.maxProgress = maxProgress
		m.addMessageLocked(msg)
		return true
	})
}

// SetStateAndProgress updates state and progress in one step.
func (m *Monitor) SetStateAndProgress(state State, progress, maxProgress int) {
	m.update(func() bool {
		m.setStateLocked(state)
		m.progress = progress
		m.maxProgress = maxProgress
		return true
	})
}

// AddMessage appends msg unless an identical message was already reported.
func (m *Monitor) AddMessage(msg LogMessage) {
	m.update(func() bool {
		return m.addMessageLocked(msg)
	})
}

// Snapshot returns a copy of the monitor.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Destroy marks the monitor destroyed and emits the final notification.
// Calling it again has no effect, and later updates are ignored.
func (m *Monitor) Destroy() {
	m.emit.Lock()
	defer m.emit.Unlock()

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	snap := m.snapshotLocked()
	n := m.notifier
	m.mu.Unlock()

	n.Ended(snap)
}

func (m *Monitor) update(mutate func() bool) {
	m.emit.Lock()
	defer m.emit.Unlock()

	m.mu.Lock()
	if m.destroyed || !mutate() {
		m.mu.Unlock()
		return
	}
	snap := m.snapshotLocked()
	n := m.notifier
	m.mu.Unlock()

	n.Notify(snap)
}

func (m *Monitor) setStateLocked(state State) bool {
	if m.state.IsTerminal() || state == m.state {
		return false
	}

	now := m.now()
	if now.Before(m.createTime) {
		now = m.createTime
	}
	if m.state == StateNotStarted && state != StateNotStarted {
		m.startTime = now
	}
	if state.IsTerminal() {
		if m.startTime.IsZero() {
			m.startTime = now
		}
		m.endTime = now
	}
	m.state = state
	return true
}

func (m *Monitor) addMessageLocked(msg LogMessage) bool {
	if _, ok := m.seen[msg]; ok {
		return false
	}
	m.seen[msg] = struct{}{}
	m.messages = append(m.messages, msg)
	return true
}

func (m *Monitor) snapshotLocked() Snapshot {
	s := Snapshot{
		Handle:      m.handle,
		User:        m.user,
		Project:     m.project,
		Title:       m.title,
		Kind:        m.kind,
		State:       m.state,
		Progress:    m.progress,
		MaxProgress: m.maxProgress,
		CreateTime:  m.createTime,
		Messages:    append([]LogMessage(nil), m.messages...),
		Destroyed:   m.destroyed,
	}
	if !m.startTime.IsZero() {
		t := m.startTime
		s.StartTime = &t
	}
	if !m.endTime.IsZero() {
		t := m.endTime
		s.EndTime = &t
	}
	return s
}
