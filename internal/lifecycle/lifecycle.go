// Package lifecycle reacts to events owned by other subsystems, such as a
// user's session ending or a project being deleted, by stopping the
// affected background tasks.
package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/inception-project/taskd/internal/task"
)

// TaskStopper is the part of the scheduler lifecycle triggers need.
type TaskStopper interface {
	StopAllTasksForUser(username string) int
	StopAllTasksForProject(project task.Project) int
}

// Manager tracks projects pending deletion and stops tasks in response to
// lifecycle events. It implements task.ProjectGuard.
type Manager struct {
	mu      sync.RWMutex
	pending map[int64]int

	stopper TaskStopper
	logger  *slog.Logger
}

// NewManager creates a Manager. SetStopper must be called before any
// lifecycle event is delivered.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		pending: make(map[int64]int),
		logger:  logger.With("component", "lifecycle_manager"),
	}
}

// SetStopper wires the scheduler. The scheduler itself consults the
// Manager as its ProjectGuard, so the two are connected after construction.
func (m *Manager) SetStopper(s TaskStopper) {
	m.stopper = s
}

// IsPendingDeletion implements task.ProjectGuard.
func (m *Manager) IsPendingDeletion(p task.Project) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[p.ID] > 0
}

// SessionEnded stops all pending tasks of username. Running tasks finish.
func (m *Manager) SessionEnded(username string) int {
	stopped := m.stopper.StopAllTasksForUser(username)
	m.logger.Info("user session ended",
		"user", username,
		"stopped_count", stopped)
	return stopped
}

// BeforeProjectDelete marks project pending deletion so no new task is
// admitted for it, then stops its pending tasks. Calls nest; each must be
// paired with AfterProjectDelete.
func (m *Manager) BeforeProjectDelete(project task.Project) int {
	m.mu.Lock()
	m.pending[project.ID]++
	m.mu.Unlock()

	stopped := m.stopper.StopAllTasksForProject(project)
	m.logger.Info("project deletion started",
		"project_id", project.ID,
		"project_name", project.Name,
		"stopped_count", stopped)
	return stopped
}

// AfterProjectDelete stops anything that slipped in while the deletion ran
// and clears the pending mark.
func (m *Manager) AfterProjectDelete(project task.Project) int {
	stopped := m.stopper.StopAllTasksForProject(project)

	m.mu.Lock()
	if m.pending[project.ID] <= 1 {
		delete(m.pending, project.ID)
	} else {
		m.pending[project.ID]--
	}
	m.mu.Unlock()

	m.logger.Info("project deletion finished",
		"project_id", project.ID,
		"stopped_count", stopped)
	return stopped
}

// PendingDeletions returns the ids of projects pending deletion.
func (m *Manager) PendingDeletions() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	return ids
}

var _ task.ProjectGuard = (*Manager)(nil)
