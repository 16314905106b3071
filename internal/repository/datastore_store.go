package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"todo-planner/internal/model"
)

const (
	KindTask = "Task"

	// maxMutationsPerCommit is the Datastore limit for one commit.
	maxMutationsPerCommit = 500
)

// taskEntity is the document shape of a task. Standalone tasks keep the
// recurring properties empty.
type taskEntity struct {
	UserID            string    `datastore:"user_id"`
	Name              string    `datastore:"name,noindex"`
	Description       string    `datastore:"description,noindex"`
	Deadline          time.Time `datastore:"deadline"`
	Priority          string    `datastore:"priority"`
	Tag               string    `datastore:"tag"`
	Completed         bool      `datastore:"completed"`
	Recurrence        string    `datastore:"recurrence"`
	RecurringGroupID  string    `datastore:"recurring_group_id"`
	IsRecurringParent bool      `datastore:"is_recurring_parent"`
	RecurringIndex    int       `datastore:"recurring_index"`
	CreatedAt         time.Time `datastore:"created_at"`
	ModifiedAt        time.Time `datastore:"modified_at"`
}

func entityFromTask(t model.Task) *taskEntity {
	e := &taskEntity{
		UserID:      t.UserID,
		Name:        t.Name,
		Description: t.Description,
		Deadline:    t.Deadline,
		Priority:    string(t.Priority),
		Tag:         string(t.Tag),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		ModifiedAt:  t.ModifiedAt,
	}
	if t.Recurrence != nil {
		e.Recurrence = string(*t.Recurrence)
	}
	if t.Recurring != nil {
		e.RecurringGroupID = t.Recurring.GroupID
		e.IsRecurringParent = t.Recurring.IsParent
		e.RecurringIndex = t.Recurring.Index
	}
	return e
}

func (e *taskEntity) toTask(id string) model.Task {
	t := model.Task{
		ID:          id,
		UserID:      e.UserID,
		Name:        e.Name,
		Description: e.Description,
		Deadline:    e.Deadline,
		Priority:    model.Priority(e.Priority),
		Tag:         model.Tag(e.Tag),
		Completed:   e.Completed,
		CreatedAt:   e.CreatedAt,
		ModifiedAt:  e.ModifiedAt,
	}
	if e.Recurrence != "" {
		r := model.Recurrence(e.Recurrence)
		t.Recurrence = &r
	}
	if e.RecurringGroupID != "" {
		t.Recurring = &model.RecurringInfo{
			GroupID:  e.RecurringGroupID,
			IsParent: e.IsRecurringParent,
			Index:    e.RecurringIndex,
		}
	}
	return t
}

// DatastoreTaskStore keeps tasks in Google Cloud Datastore, keyed by task id.
type DatastoreTaskStore struct {
	ds *datastore.Client
}

// NewDatastoreTaskStore connects to Datastore. DATASTORE_EMULATOR_HOST is
// honoured by the client library.
func NewDatastoreTaskStore(ctx context.Context, projectID string) (*DatastoreTaskStore, error) {
	if emulatorHost := os.Getenv("DATASTORE_EMULATOR_HOST"); emulatorHost != "" {
		log.Info().Str("host", emulatorHost).Msg("using datastore emulator")
	}

	ds, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create datastore client: %w", err)
	}
	return &DatastoreTaskStore{ds: ds}, nil
}

func (s *DatastoreTaskStore) Close() error {
	return s.ds.Close()
}

func taskKey(id string) *datastore.Key {
	return datastore.NameKey(KindTask, id, nil)
}

func (s *DatastoreTaskStore) Add(ctx context.Context, task model.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, err := s.ds.Put(ctx, taskKey(task.ID), entityFromTask(task)); err != nil {
		return "", fmt.Errorf("put task: %w", err)
	}
	return task.ID, nil
}

func (s *DatastoreTaskStore) Set(ctx context.Context, id string, task model.Task) error {
	if _, err := s.ds.Put(ctx, taskKey(id), entityFromTask(task)); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

func (s *DatastoreTaskStore) Get(ctx context.Context, id string) (model.Task, error) {
	var e taskEntity
	if err := s.ds.Get(ctx, taskKey(id), &e); err != nil {
		return model.Task{}, wrapDatastoreError(err)
	}
	return e.toTask(id), nil
}

func (s *DatastoreTaskStore) Delete(ctx context.Context, id string) error {
	if err := s.ds.Delete(ctx, taskKey(id)); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// BatchCommit runs the ops in transactions of at most 500 mutations. A
// failure in a later transaction leaves the earlier ones applied, which is
// reported as a PartialBatchFailure.
func (s *DatastoreTaskStore) BatchCommit(ctx context.Context, ops []Op) error {
	var applied []string
	for start := 0; start < len(ops); start += maxMutationsPerCommit {
		end := start + maxMutationsPerCommit
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		_, err := s.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
			for _, op := range chunk {
				switch op.Kind {
				case OpSet:
					if _, err := tx.Put(taskKey(op.ID), entityFromTask(op.Task)); err != nil {
						return err
					}
				case OpDelete:
					if err := tx.Delete(taskKey(op.ID)); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown batch op %d", op.Kind)
				}
			}
			return nil
		})
		if err != nil {
			return &PartialBatchFailure{Attempted: opIDs(ops), Applied: applied, Err: err}
		}
		applied = append(applied, opIDs(chunk)...)
	}
	return nil
}

// Query filters by owner and group in Datastore and orders in memory, which
// avoids needing a composite index.
func (s *DatastoreTaskStore) Query(ctx context.Context, q Query) ([]model.Task, error) {
	query := datastore.NewQuery(KindTask).Filter("user_id =", q.UserID)
	if q.GroupID != "" {
		query = query.Filter("recurring_group_id =", q.GroupID)
	}

	var entities []taskEntity
	keys, err := s.ds.GetAll(ctx, query, &entities)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	tasks := make([]model.Task, len(keys))
	for i, key := range keys {
		tasks[i] = entities[i].toTask(key.Name)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Deadline.Equal(tasks[j].Deadline) {
			return tasks[i].Deadline.Before(tasks[j].Deadline)
		}
		return tasks[i].RecurringIndex() < tasks[j].RecurringIndex()
	})
	return tasks, nil
}

func wrapDatastoreError(err error) error {
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrNotFound
	}
	return err
}
