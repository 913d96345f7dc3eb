// Package store provides the TaskStore implementations: an in-memory map
// for the default deployment and a pgx-backed Postgres store for
// installations that need task history to survive restarts.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// Memory is a mutex-guarded in-memory TaskStore.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]schemas.Task
}

var _ schemas.TaskStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]schemas.Task)}
}

// Create implements schemas.TaskStore.
func (m *Memory) Create(ctx context.Context, task schemas.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

// Get implements schemas.TaskStore.
func (m *Memory) Get(ctx context.Context, id string) (schemas.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return schemas.Task{}, schemas.ErrTaskNotFound
	}
	return task, nil
}

// Update implements schemas.TaskStore.
func (m *Memory) Update(ctx context.Context, task schemas.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return schemas.ErrTaskNotFound
	}
	m.tasks[task.ID] = task
	return nil
}

// Delete implements schemas.TaskStore.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return schemas.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

// List implements schemas.TaskStore. Tasks come back newest first; Total
// counts every task matching the filter, before paging.
func (m *Memory) List(ctx context.Context, filter schemas.TaskFilter) (schemas.TaskList, error) {
	m.mu.RLock()
	matched := make([]schemas.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		matched = append(matched, task)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter), nil
}

// Close implements schemas.TaskStore.
func (m *Memory) Close(ctx context.Context) error { return nil }

// paginate applies offset/limit to an already filtered, sorted slice.
func paginate(tasks []schemas.Task, filter schemas.TaskFilter) schemas.TaskList {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(tasks)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return schemas.TaskList{
		Total:  total,
		Offset: offset,
		Limit:  limit,
		Tasks:  tasks[offset:end],
	}
}
