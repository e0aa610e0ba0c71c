// Package enums holds the canonical construction vocabularies and the one
// synonym table per enum used by imports, request validation and storage.
package enums

import (
	"slices"
	"strings"
)

// Version is bumped whenever a synonym table changes.
const Version = 3

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
	TaskBlocked    TaskStatus = "blocked"
)

type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

type ResourceType string

const (
	ResourceMaterial  ResourceType = "material"
	ResourceEquipment ResourceType = "equipment"
	ResourceLabor     ResourceType = "labor"
)

type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceInUse       ResourceStatus = "in_use"
	ResourceDepleted    ResourceStatus = "depleted"
	ResourceMaintenance ResourceStatus = "maintenance"
)

// table maps normalized spellings to a canonical value. Canonical values
// map to themselves.
type table[T ~string] struct {
	def      T
	values   []T
	synonyms map[string]T
}

func newTable[T ~string](def T, values []T, synonyms map[T][]string) table[T] {
	t := table[T]{def: def, values: values, synonyms: make(map[string]T)}
	for _, v := range values {
		t.synonyms[string(v)] = v
	}
	for canonical, words := range synonyms {
		for _, w := range words {
			t.synonyms[Normalize(w)] = canonical
		}
	}
	return t
}

func (t table[T]) parse(raw string) (T, bool) {
	v, ok := t.synonyms[Normalize(raw)]
	return v, ok
}

func (t table[T]) coerce(raw string) T {
	if v, ok := t.parse(raw); ok {
		return v
	}
	return t.def
}

func (t table[T]) valid(v T) bool {
	return slices.Contains(t.values, v)
}

// Normalize trims, lowercases and folds spaces and hyphens to underscores.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	}), "_")
	return s
}

var projectStatuses = newTable(ProjectPlanning,
	[]ProjectStatus{ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted, ProjectCancelled},
	map[ProjectStatus][]string{
		ProjectPlanning:   {"planned", "not started", "new", "draft", "pending"},
		ProjectInProgress: {"active", "ongoing", "started", "underway", "inprogress", "in progress"},
		ProjectOnHold:     {"hold", "paused", "suspended", "on hold"},
		ProjectCompleted:  {"complete", "done", "finished", "closed"},
		ProjectCancelled:  {"canceled", "abandoned"},
	},
)

var taskStatuses = newTable(TaskNotStarted,
	[]TaskStatus{TaskNotStarted, TaskInProgress, TaskCompleted, TaskDelayed, TaskBlocked},
	map[TaskStatus][]string{
		TaskNotStarted: {"todo", "to do", "pending", "new", "open", "planned"},
		TaskInProgress: {"active", "ongoing", "started", "wip", "doing", "inprogress"},
		TaskCompleted:  {"complete", "done", "finished", "closed"},
		TaskDelayed:    {"late", "overdue", "behind"},
		TaskBlocked:    {"on hold", "stuck", "waiting"},
	},
)

var taskPriorities = newTable(PriorityMedium,
	[]TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical},
	map[TaskPriority][]string{
		PriorityLow:      {"minor"},
		PriorityMedium:   {"normal", "med", "moderate"},
		PriorityHigh:     {"important", "major"},
		PriorityCritical: {"urgent", "blocker", "highest"},
	},
)

var resourceTypes = newTable(ResourceMaterial,
	[]ResourceType{ResourceMaterial, ResourceEquipment, ResourceLabor},
	map[ResourceType][]string{
		ResourceMaterial:  {"materials", "supply", "supplies", "consumable"},
		ResourceEquipment: {"machinery", "machine", "tool", "tools", "plant", "vehicle"},
		ResourceLabor:     {"labour", "human", "worker", "workers", "crew", "manpower", "personnel"},
	},
)

var resourceStatuses = newTable(ResourceAvailable,
	[]ResourceStatus{ResourceAvailable, ResourceInUse, ResourceDepleted, ResourceMaintenance},
	map[ResourceStatus][]string{
		ResourceAvailable:   {"in stock", "ordered", "ready"},
		ResourceInUse:       {"active", "allocated", "deployed", "assigned", "in use"},
		ResourceDepleted:    {"used up", "consumed", "exhausted", "retired", "out of stock"},
		ResourceMaintenance: {"repair", "under maintenance", "servicing", "broken"},
	},
)

// ParseProjectStatus reports whether raw is a known spelling.
func ParseProjectStatus(raw string) (ProjectStatus, bool) { return projectStatuses.parse(raw) }

// CoerceProjectStatus maps unknown or blank input to planning.
func CoerceProjectStatus(raw string) ProjectStatus { return projectStatuses.coerce(raw) }

func (s ProjectStatus) Valid() bool { return projectStatuses.valid(s) }

func ParseTaskStatus(raw string) (TaskStatus, bool) { return taskStatuses.parse(raw) }

// CoerceTaskStatus maps unknown or blank input to not_started.
func CoerceTaskStatus(raw string) TaskStatus { return taskStatuses.coerce(raw) }

func (s TaskStatus) Valid() bool { return taskStatuses.valid(s) }

func ParseTaskPriority(raw string) (TaskPriority, bool) { return taskPriorities.parse(raw) }

// CoerceTaskPriority maps unknown or blank input to medium.
func CoerceTaskPriority(raw string) TaskPriority { return taskPriorities.coerce(raw) }

func (p TaskPriority) Valid() bool { return taskPriorities.valid(p) }

func ParseResourceType(raw string) (ResourceType, bool) { return resourceTypes.parse(raw) }

// CoerceResourceType maps unknown or blank input to material.
func CoerceResourceType(raw string) ResourceType { return resourceTypes.coerce(raw) }

func (t ResourceType) Valid() bool { return resourceTypes.valid(t) }

func ParseResourceStatus(raw string) (ResourceStatus, bool) { return resourceStatuses.parse(raw) }

// CoerceResourceStatus maps unknown or blank input to available.
func CoerceResourceStatus(raw string) ResourceStatus { return resourceStatuses.coerce(raw) }

func (s ResourceStatus) Valid() bool { return resourceStatuses.valid(s) }

// ProjectStatuses etc. return the canonical values in declaration order.
func ProjectStatuses() []ProjectStatus   { return slices.Clone(projectStatuses.values) }
func TaskStatuses() []TaskStatus         { return slices.Clone(taskStatuses.values) }
func TaskPriorities() []TaskPriority     { return slices.Clone(taskPriorities.values) }
func ResourceTypes() []ResourceType      { return slices.Clone(resourceTypes.values) }
func ResourceStatuses() []ResourceStatus { return slices.Clone(resourceStatuses.values) }

// Synonyms returns every recognized spelling for each enum, keyed by enum name.
func Synonyms() map[string]map[string]string {
	out := map[string]map[string]string{
		"project_status":  {},
		"task_status":     {},
		"task_priority":   {},
		"resource_type":   {},
		"resource_status": {},
	}
	for k, v := range projectStatuses.synonyms {
		out["project_status"][k] = string(v)
	}
	for k, v := range taskStatuses.synonyms {
		out["task_status"][k] = string(v)
	}
	for k, v := range taskPriorities.synonyms {
		out["task_priority"][k] = string(v)
	}
	for k, v := range resourceTypes.synonyms {
		out["resource_type"][k] = string(v)
	}
	for k, v := range resourceStatuses.synonyms {
		out["resource_status"][k] = string(v)
	}
	return out
}
