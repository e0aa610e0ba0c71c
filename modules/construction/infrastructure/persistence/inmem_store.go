package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
)

var ErrNoSession = errors.New("no memory store session in context")

type memSessionKey struct{}

type memData struct {
	projects  map[uint]project.Project
	tasks     map[uint]task.Task
	resources map[uint]resource.Resource
	budgets   map[uint]budget.Budget

	nextProject, nextTask, nextResource, nextBudget uint
}

func newMemData() *memData {
	return &memData{
		projects:  map[uint]project.Project{},
		tasks:     map[uint]task.Task{},
		resources: map[uint]resource.Resource{},
		budgets:   map[uint]budget.Budget{},
	}
}

func (d *memData) clone() *memData {
	out := &memData{
		projects:     make(map[uint]project.Project, len(d.projects)),
		tasks:        make(map[uint]task.Task, len(d.tasks)),
		resources:    make(map[uint]resource.Resource, len(d.resources)),
		budgets:      make(map[uint]budget.Budget, len(d.budgets)),
		nextProject:  d.nextProject,
		nextTask:     d.nextTask,
		nextResource: d.nextResource,
		nextBudget:   d.nextBudget,
	}
	for k, v := range d.projects {
		out.projects[k] = v
	}
	for k, v := range d.tasks {
		out.tasks[k] = v
	}
	for k, v := range d.resources {
		out.resources[k] = v
	}
	for k, v := range d.budgets {
		out.budgets[k] = v
	}
	return out
}

// memSession stages writes on a private copy. The undo log lets a
// savepoint discard its own writes without copying the data again.
type memSession struct {
	data *memData
	undo []func()
	done bool
}

func (s *memSession) push(fn func()) {
	s.undo = append(s.undo, fn)
}

func (s *memSession) rollbackTo(mark int) {
	for i := len(s.undo) - 1; i >= mark; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:mark]
}

// MemoryStore is an in-process store with the same repository and
// unit-of-work contracts as the Postgres implementation. Commit replaces
// the committed snapshot, so it assumes a single writer at a time.
type MemoryStore struct {
	mu        sync.RWMutex
	committed *memData
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{committed: newMemData(), now: time.Now}
}

func (s *MemoryStore) Projects() project.Repository   { return &memProjectRepository{s} }
func (s *MemoryStore) Tasks() task.Repository         { return &memTaskRepository{s} }
func (s *MemoryStore) Resources() resource.Repository { return &memResourceRepository{s} }
func (s *MemoryStore) Budgets() budget.Repository     { return &memBudgetRepository{s} }

func sessionFrom(ctx context.Context) *memSession {
	sess, _ := ctx.Value(memSessionKey{}).(*memSession)
	if sess == nil || sess.done {
		return nil
	}
	return sess
}

func (s *MemoryStore) Begin(ctx context.Context) (context.Context, error) {
	s.mu.RLock()
	data := s.committed.clone()
	s.mu.RUnlock()
	return context.WithValue(ctx, memSessionKey{}, &memSession{data: data}), nil
}

func (s *MemoryStore) Commit(ctx context.Context) error {
	sess := sessionFrom(ctx)
	if sess == nil {
		return ErrNoSession
	}
	s.mu.Lock()
	s.committed = sess.data
	s.mu.Unlock()
	sess.done = true
	return nil
}

func (s *MemoryStore) Rollback(ctx context.Context) error {
	if sess := sessionFrom(ctx); sess != nil {
		sess.done = true
	}
	return nil
}

func (s *MemoryStore) Savepoint(ctx context.Context, fn func(context.Context) error) error {
	sess := sessionFrom(ctx)
	if sess == nil {
		return ErrNoSession
	}
	mark := len(sess.undo)
	if err := fn(ctx); err != nil {
		sess.rollbackTo(mark)
		return err
	}
	return nil
}

// read runs fn against the session copy, or the committed data under lock.
func (s *MemoryStore) read(ctx context.Context, fn func(d *memData)) {
	if sess := sessionFrom(ctx); sess != nil {
		fn(sess.data)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.committed)
}

// write runs fn with an undo recorder. Outside a session writes apply
// directly and are not undoable.
func (s *MemoryStore) write(ctx context.Context, fn func(d *memData, undo func(func())) error) error {
	if sess := sessionFrom(ctx); sess != nil {
		return fn(sess.data, sess.push)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed, func(func()) {})
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func idSet(ids []uint) map[uint]struct{} {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func inSet(set map[uint]struct{}, id uint) bool {
	if set == nil {
		return true
	}
	_, ok := set[id]
	return ok
}

// ---- projects ----

type memProjectRepository struct{ s *MemoryStore }

func matchProject(p *project.Project, params *project.FindParams, ids map[uint]struct{}) bool {
	if params == nil {
		return true
	}
	if !inSet(ids, p.ID) {
		return false
	}
	if name := strings.TrimSpace(params.Name); name != "" && !strings.EqualFold(strings.TrimSpace(p.Name), name) {
		return false
	}
	return params.Status == "" || p.Status == params.Status
}

func (r *memProjectRepository) find(ctx context.Context, params *project.FindParams) []*project.Project {
	var out []*project.Project
	var ids map[uint]struct{}
	if params != nil {
		ids = idSet(params.IDs)
	}
	r.s.read(ctx, func(d *memData) {
		for _, p := range d.projects {
			p := p
			if matchProject(&p, params, ids) {
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memProjectRepository) Count(ctx context.Context, params *project.FindParams) (int64, error) {
	return int64(len(r.find(ctx, params))), nil
}

func (r *memProjectRepository) GetAll(ctx context.Context) ([]*project.Project, error) {
	return r.find(ctx, nil), nil
}

func (r *memProjectRepository) GetPaginated(ctx context.Context, params *project.FindParams) ([]*project.Project, error) {
	out := r.find(ctx, params)
	if params != nil {
		out = page(out, params.Limit, params.Offset)
	}
	return out, nil
}

func (r *memProjectRepository) GetByID(ctx context.Context, id uint) (*project.Project, error) {
	var found *project.Project
	r.s.read(ctx, func(d *memData) {
		if p, ok := d.projects[id]; ok {
			found = &p
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: id %d", project.ErrNotFound, id)
	}
	return found, nil
}

func (r *memProjectRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var ok bool
	r.s.read(ctx, func(d *memData) { _, ok = d.projects[id] })
	return ok, nil
}

func (r *memProjectRepository) Create(ctx context.Context, data *project.Project) error {
	if data.TotalBudget < 0 || data.SpentAmount < 0 {
		return fmt.Errorf("project %q: negative budget amounts", data.Name)
	}
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		d.nextProject++
		data.ID = d.nextProject
		data.CreatedAt, data.UpdatedAt = now, now
		d.projects[data.ID] = *data
		id := data.ID
		undo(func() {
			delete(d.projects, id)
			d.nextProject--
		})
		return nil
	})
}

func (r *memProjectRepository) Update(ctx context.Context, data *project.Project) error {
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.projects[data.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", project.ErrNotFound, data.ID)
		}
		data.UpdatedAt = now
		d.projects[data.ID] = *data
		undo(func() { d.projects[prev.ID] = prev })
		return nil
	})
}

// Delete removes the project with its tasks, resources and budgets.
func (r *memProjectRepository) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.projects[id]
		if !ok {
			return fmt.Errorf("%w: id %d", project.ErrNotFound, id)
		}
		delete(d.projects, id)
		var tasks []task.Task
		var resources []resource.Resource
		var budgets []budget.Budget
		for k, t := range d.tasks {
			if t.ProjectID == id {
				tasks = append(tasks, t)
				delete(d.tasks, k)
			}
		}
		for k, res := range d.resources {
			if res.ProjectID == id {
				resources = append(resources, res)
				delete(d.resources, k)
			}
		}
		for k, b := range d.budgets {
			if b.ProjectID == id {
				budgets = append(budgets, b)
				delete(d.budgets, k)
			}
		}
		undo(func() {
			d.projects[prev.ID] = prev
			for _, t := range tasks {
				d.tasks[t.ID] = t
			}
			for _, res := range resources {
				d.resources[res.ID] = res
			}
			for _, b := range budgets {
				d.budgets[b.ID] = b
			}
		})
		return nil
	})
}

// ---- tasks ----

type memTaskRepository struct{ s *MemoryStore }

func matchTask(t *task.Task, params *task.FindParams, ids map[uint]struct{}) bool {
	if params == nil {
		return true
	}
	if !inSet(ids, t.ID) {
		return false
	}
	if params.ProjectID != 0 && t.ProjectID != params.ProjectID {
		return false
	}
	if a := strings.TrimSpace(params.AssignedTo); a != "" && !strings.EqualFold(t.AssignedTo, a) {
		return false
	}
	return params.Status == "" || t.Status == params.Status
}

func (r *memTaskRepository) find(ctx context.Context, params *task.FindParams) []*task.Task {
	var out []*task.Task
	var ids map[uint]struct{}
	if params != nil {
		ids = idSet(params.IDs)
	}
	r.s.read(ctx, func(d *memData) {
		for _, t := range d.tasks {
			t := t
			if matchTask(&t, params, ids) {
				out = append(out, &t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.StartDate != nil && b.StartDate != nil && !a.StartDate.Equal(*b.StartDate):
			return a.StartDate.Before(*b.StartDate)
		case a.StartDate != nil && b.StartDate == nil:
			return true
		case a.StartDate == nil && b.StartDate != nil:
			return false
		}
		return a.ID < b.ID
	})
	return out
}

func (r *memTaskRepository) Count(ctx context.Context, params *task.FindParams) (int64, error) {
	return int64(len(r.find(ctx, params))), nil
}

func (r *memTaskRepository) GetPaginated(ctx context.Context, params *task.FindParams) ([]*task.Task, error) {
	out := r.find(ctx, params)
	if params != nil {
		out = page(out, params.Limit, params.Offset)
	}
	return out, nil
}

func (r *memTaskRepository) GetByID(ctx context.Context, id uint) (*task.Task, error) {
	var found *task.Task
	r.s.read(ctx, func(d *memData) {
		if t, ok := d.tasks[id]; ok {
			found = &t
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: id %d", task.ErrNotFound, id)
	}
	return found, nil
}

func (r *memTaskRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var ok bool
	r.s.read(ctx, func(d *memData) { _, ok = d.tasks[id] })
	return ok, nil
}

func (r *memTaskRepository) Create(ctx context.Context, data *task.Task) error {
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		if _, ok := d.projects[data.ProjectID]; !ok {
			return fmt.Errorf("%w: id %d", project.ErrNotFound, data.ProjectID)
		}
		d.nextTask++
		data.ID = d.nextTask
		data.CreatedAt, data.UpdatedAt = now, now
		d.tasks[data.ID] = *data
		id := data.ID
		undo(func() {
			delete(d.tasks, id)
			d.nextTask--
		})
		return nil
	})
}

func (r *memTaskRepository) Update(ctx context.Context, data *task.Task) error {
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.tasks[data.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", task.ErrNotFound, data.ID)
		}
		data.UpdatedAt = now
		d.tasks[data.ID] = *data
		undo(func() { d.tasks[prev.ID] = prev })
		return nil
	})
}

// Delete removes the task and clears dependency links pointing at it.
func (r *memTaskRepository) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.tasks[id]
		if !ok {
			return fmt.Errorf("%w: id %d", task.ErrNotFound, id)
		}
		delete(d.tasks, id)
		var dependents []uint
		for k, t := range d.tasks {
			if t.DependsOnTaskID != nil && *t.DependsOnTaskID == id {
				t.DependsOnTaskID = nil
				d.tasks[k] = t
				dependents = append(dependents, k)
			}
		}
		undo(func() {
			d.tasks[prev.ID] = prev
			for _, k := range dependents {
				t := d.tasks[k]
				dep := id
				t.DependsOnTaskID = &dep
				d.tasks[k] = t
			}
		})
		return nil
	})
}

// ---- resources ----

type memResourceRepository struct{ s *MemoryStore }

func (r *memResourceRepository) find(ctx context.Context, params *resource.FindParams) []*resource.Resource {
	var out []*resource.Resource
	var ids map[uint]struct{}
	if params != nil {
		ids = idSet(params.IDs)
	}
	r.s.read(ctx, func(d *memData) {
		for _, res := range d.resources {
			res := res
			if params != nil {
				if !inSet(ids, res.ID) ||
					(params.ProjectID != 0 && res.ProjectID != params.ProjectID) ||
					(params.ResourceType != "" && res.ResourceType != params.ResourceType) {
					continue
				}
			}
			out = append(out, &res)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memResourceRepository) Count(ctx context.Context, params *resource.FindParams) (int64, error) {
	return int64(len(r.find(ctx, params))), nil
}

func (r *memResourceRepository) GetPaginated(ctx context.Context, params *resource.FindParams) ([]*resource.Resource, error) {
	out := r.find(ctx, params)
	if params != nil {
		out = page(out, params.Limit, params.Offset)
	}
	return out, nil
}

func (r *memResourceRepository) GetByID(ctx context.Context, id uint) (*resource.Resource, error) {
	var found *resource.Resource
	r.s.read(ctx, func(d *memData) {
		if res, ok := d.resources[id]; ok {
			found = &res
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: id %d", resource.ErrNotFound, id)
	}
	return found, nil
}

func (r *memResourceRepository) Create(ctx context.Context, data *resource.Resource) error {
	data.RecalculateTotalCost()
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		if _, ok := d.projects[data.ProjectID]; !ok {
			return fmt.Errorf("%w: id %d", project.ErrNotFound, data.ProjectID)
		}
		d.nextResource++
		data.ID = d.nextResource
		data.CreatedAt, data.UpdatedAt = now, now
		d.resources[data.ID] = *data
		id := data.ID
		undo(func() {
			delete(d.resources, id)
			d.nextResource--
		})
		return nil
	})
}

func (r *memResourceRepository) Update(ctx context.Context, data *resource.Resource) error {
	data.RecalculateTotalCost()
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.resources[data.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", resource.ErrNotFound, data.ID)
		}
		data.UpdatedAt = now
		d.resources[data.ID] = *data
		undo(func() { d.resources[prev.ID] = prev })
		return nil
	})
}

func (r *memResourceRepository) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.resources[id]
		if !ok {
			return fmt.Errorf("%w: id %d", resource.ErrNotFound, id)
		}
		delete(d.resources, id)
		undo(func() { d.resources[prev.ID] = prev })
		return nil
	})
}

// ---- budgets ----

type memBudgetRepository struct{ s *MemoryStore }

func (r *memBudgetRepository) find(ctx context.Context, params *budget.FindParams) []*budget.Budget {
	var out []*budget.Budget
	var ids map[uint]struct{}
	if params != nil {
		ids = idSet(params.IDs)
	}
	r.s.read(ctx, func(d *memData) {
		for _, b := range d.budgets {
			b := b
			if params != nil {
				if !inSet(ids, b.ID) ||
					(params.ProjectID != 0 && b.ProjectID != params.ProjectID) ||
					(strings.TrimSpace(params.Category) != "" && !strings.EqualFold(b.Category, strings.TrimSpace(params.Category))) {
					continue
				}
			}
			out = append(out, &b)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memBudgetRepository) Count(ctx context.Context, params *budget.FindParams) (int64, error) {
	return int64(len(r.find(ctx, params))), nil
}

func (r *memBudgetRepository) GetPaginated(ctx context.Context, params *budget.FindParams) ([]*budget.Budget, error) {
	out := r.find(ctx, params)
	if params != nil {
		out = page(out, params.Limit, params.Offset)
	}
	return out, nil
}

func (r *memBudgetRepository) GetByID(ctx context.Context, id uint) (*budget.Budget, error) {
	var found *budget.Budget
	r.s.read(ctx, func(d *memData) {
		if b, ok := d.budgets[id]; ok {
			found = &b
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: id %d", budget.ErrNotFound, id)
	}
	return found, nil
}

func (r *memBudgetRepository) Create(ctx context.Context, data *budget.Budget) error {
	if strings.TrimSpace(data.Category) == "" {
		return errors.New("budget category must not be empty")
	}
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		if _, ok := d.projects[data.ProjectID]; !ok {
			return fmt.Errorf("%w: id %d", project.ErrNotFound, data.ProjectID)
		}
		d.nextBudget++
		data.ID = d.nextBudget
		data.CreatedAt, data.UpdatedAt = now, now
		if data.BudgetDate.IsZero() {
			data.BudgetDate = now
		}
		d.budgets[data.ID] = *data
		id := data.ID
		undo(func() {
			delete(d.budgets, id)
			d.nextBudget--
		})
		return nil
	})
}

func (r *memBudgetRepository) Update(ctx context.Context, data *budget.Budget) error {
	now := r.s.now().UTC()
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.budgets[data.ID]
		if !ok {
			return fmt.Errorf("%w: id %d", budget.ErrNotFound, data.ID)
		}
		data.UpdatedAt = now
		d.budgets[data.ID] = *data
		undo(func() { d.budgets[prev.ID] = prev })
		return nil
	})
}

func (r *memBudgetRepository) Delete(ctx context.Context, id uint) error {
	return r.s.write(ctx, func(d *memData, undo func(func())) error {
		prev, ok := d.budgets[id]
		if !ok {
			return fmt.Errorf("%w: id %d", budget.ErrNotFound, id)
		}
		delete(d.budgets, id)
		undo(func() { d.budgets[prev.ID] = prev })
		return nil
	})
}
