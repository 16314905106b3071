package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todo-planner/internal/model"
)

// taskRow is the relational shape of a task. The three recurring columns
// are either all set or all empty.
type taskRow struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"index"`
	Name              string
	Description       string
	Deadline          time.Time `gorm:"index"`
	Priority          string
	Tag               string
	Completed         bool `gorm:"default:false"`
	Recurrence        *string
	RecurringGroupID  *string `gorm:"index"`
	IsRecurringParent bool
	RecurringIndex    int
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

func (taskRow) TableName() string {
	return "tasks"
}

// rowFromTask stores times in UTC. SQLite keeps them as text, so the
// deadline ordering in Query is only chronological with a single offset.
func rowFromTask(t model.Task) taskRow {
	row := taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Name:        t.Name,
		Description: t.Description,
		Deadline:    t.Deadline.UTC(),
		Priority:    string(t.Priority),
		Tag:         string(t.Tag),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		ModifiedAt:  t.ModifiedAt.UTC(),
	}
	if t.Recurrence != nil {
		r := string(*t.Recurrence)
		row.Recurrence = &r
	}
	if t.Recurring != nil {
		group := t.Recurring.GroupID
		row.RecurringGroupID = &group
		row.IsRecurringParent = t.Recurring.IsParent
		row.RecurringIndex = t.Recurring.Index
	}
	return row
}

func (r taskRow) toTask() model.Task {
	t := model.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		Deadline:    r.Deadline,
		Priority:    model.Priority(r.Priority),
		Tag:         model.Tag(r.Tag),
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
		ModifiedAt:  r.ModifiedAt,
	}
	if r.Recurrence != nil {
		rec := model.Recurrence(*r.Recurrence)
		t.Recurrence = &rec
	}
	if r.RecurringGroupID != nil && *r.RecurringGroupID != "" {
		t.Recurring = &model.RecurringInfo{
			GroupID:  *r.RecurringGroupID,
			IsParent: r.IsRecurringParent,
			Index:    r.RecurringIndex,
		}
	}
	return t
}

// TaskRepository stores tasks in SQLite through gorm.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Add inserts a task, assigning an id when it has none.
func (r *TaskRepository) Add(ctx context.Context, task model.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	row := rowFromTask(task)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return row.ID, nil
}

// Set writes the full task under id, inserting it if missing.
func (r *TaskRepository) Set(ctx context.Context, id string, task model.Task) error {
	task.ID = id
	row := rowFromTask(task)
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	var row taskRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	switch {
	case err == nil:
		return row.toTask(), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Task{}, ErrNotFound
	default:
		return model.Task{}, fmt.Errorf("find task: %w", err)
	}
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRow{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchCommit applies every op in one database transaction, so a failure
// leaves nothing applied.
func (r *TaskRepository) BatchCommit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				task := op.Task
				task.ID = op.ID
				row := rowFromTask(task)
				if err := tx.Save(&row).Error; err != nil {
					return fmt.Errorf("save task %s: %w", op.ID, err)
				}
			case OpDelete:
				if err := tx.Where("id = ?", op.ID).Delete(&taskRow{}).Error; err != nil {
					return fmt.Errorf("delete task %s: %w", op.ID, err)
				}
			default:
				return fmt.Errorf("unknown batch op %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		// The transaction rolled back, so Applied stays empty and there is
		// nothing to compensate.
		return &PartialBatchFailure{Attempted: opIDs(ops), Err: err}
	}
	return nil
}

func (r *TaskRepository) Query(ctx context.Context, q Query) ([]model.Task, error) {
	db := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.GroupID != "" {
		db = db.Where("recurring_group_id = ?", q.GroupID)
	}
	var rows []taskRow
	if err := db.Order("deadline ASC, recurring_index ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks := make([]model.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toTask()
	}
	return tasks, nil
}
