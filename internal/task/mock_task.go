package task

import (
	"context"
)

// MockTask is a configurable Task used in tests across packages.
type MockTask struct {
	*Base

	// ExecuteFn is called by Execute; nil means succeed immediately
	ExecuteFn func(ctx context.Context, t *MockTask) error
}

// NewMockTask creates a MockTask for project with the given trigger.
func NewMockTask(project Project, trigger string, opts ...Option) *MockTask {
	return &MockTask{Base: NewBase(project, trigger, opts...)}
}

// Execute implements Task.
func (m *MockTask) Execute(ctx context.Context) error {
	if m.ExecuteFn == nil {
		return nil
	}
	return m.ExecuteFn(ctx, m)
}

// MatchingMockTask is a MockTask with its own deduplication policy.
type MatchingMockTask struct {
	*MockTask

	MatchFn func(other Task) MatchResult
}

// NewMatchingMockTask creates a MatchingMockTask that decides matches with fn.
func NewMatchingMockTask(project Project, trigger string, fn func(other Task) MatchResult, opts ...Option) *MatchingMockTask {
	return &MatchingMockTask{
		MockTask: NewMockTask(project, trigger, opts...),
		MatchFn:  fn,
	}
}

// Matches implements Matcher.
func (m *MatchingMockTask) Matches(other Task) MatchResult {
	return m.MatchFn(other)
}
