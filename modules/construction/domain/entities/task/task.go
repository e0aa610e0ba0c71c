package task

import (
	"context"
	"errors"
	"time"

	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID                 uint
	ProjectID          uint
	Name               string
	Description        string
	Status             enums.TaskStatus
	Priority           enums.TaskPriority
	StartDate          *time.Time
	PlannedEndDate     *time.Time
	ActualEndDate      *time.Time
	ProgressPercentage float64
	AssignedTo         string
	DependsOnTaskID    *uint
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOverdue reports whether an unfinished task is past its planned end.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == enums.TaskCompleted || t.PlannedEndDate == nil {
		return false
	}
	return t.PlannedEndDate.Before(now)
}

// ClampProgress keeps ProgressPercentage within [0, 100].
func ClampProgress(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

type FindParams struct {
	IDs        []uint
	ProjectID  uint
	AssignedTo string
	Status     enums.TaskStatus
	Limit      int
	Offset     int
}

type Repository interface {
	Count(ctx context.Context, params *FindParams) (int64, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*Task, error)
	GetByID(ctx context.Context, id uint) (*Task, error)
	Exists(ctx context.Context, id uint) (bool, error)
	Create(ctx context.Context, data *Task) error
	Update(ctx context.Context, data *Task) error
	Delete(ctx context.Context, id uint) error
}
