package task

import "reflect"

// MatchResult is the outcome of comparing an incoming task with one that
// is already known to the scheduler.
type MatchResult int

const (
	// NoMatch means the tasks are unrelated.
	NoMatch MatchResult = iota
	// UnqueueExistingAndQueueThis means the incoming task supersedes the
	// enqueued one.
	UnqueueExistingAndQueueThis
	// DiscardOrQueueThis means the incoming task is dropped when an
	// equivalent task is still enqueued.
	DiscardOrQueueThis
	// QueueThis means the incoming task is always queued but must not run
	// in parallel with the matching task.
	QueueThis
)

// String implements fmt.Stringer.
func (r MatchResult) String() string {
	switch r {
	case NoMatch:
		return "NO_MATCH"
	case UnqueueExistingAndQueueThis:
		return "UNQUEUE_EXISTING_AND_QUEUE_THIS"
	case DiscardOrQueueThis:
		return "DISCARD_OR_QUEUE_THIS"
	case QueueThis:
		return "QUEUE_THIS"
	default:
		return "UNKNOWN"
	}
}

// Matcher is implemented by tasks that need richer deduplication than
// the default equality of kind, user and project.
type Matcher interface {
	Matches(other Task) MatchResult
}

// Match compares incoming with candidate. The incoming task's own Matcher
// is preferred; otherwise tasks are equivalent when they share concrete
// type, user and project, and the result is UnqueueExistingAndQueueThis.
// Sub-tasks never match.
func Match(incoming, candidate Task) MatchResult {
	if incoming.Parent() != nil || candidate.Parent() != nil {
		return NoMatch
	}
	if m, ok := incoming.(Matcher); ok {
		return m.Matches(candidate)
	}
	if Equivalent(incoming, candidate) {
		return UnqueueExistingAndQueueThis
	}
	return NoMatch
}

// Equivalent reports whether a and b have the same concrete type, owning
// user and owning project.
func Equivalent(a, b Task) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b) &&
		a.User() == b.User() &&
		a.Project().ID == b.Project().ID
}
