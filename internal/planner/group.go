package planner

import (
	"fmt"
	"sort"
	"time"

	"todo-planner/internal/model"
)

// Operation is the kind of mutation requested against a task.
type Operation int

const (
	OpUpdate Operation = iota
	OpDelete
)

func (o Operation) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "update"
}

// Scope decides which members of a recurring group a mutation touches.
type Scope int

const (
	ScopeSingle Scope = iota
	ScopeFuture
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeFuture:
		return "future"
	case ScopeAll:
		return "all"
	default:
		return "single"
	}
}

// ParseScope is the inverse of Scope.String.
func ParseScope(raw string) (Scope, bool) {
	switch raw {
	case "single":
		return ScopeSingle, true
	case "future":
		return ScopeFuture, true
	case "all":
		return ScopeAll, true
	}
	return 0, false
}

// State tracks a mutation request from submission to application.
type State int

const (
	StateIdle State = iota
	StatePendingScopeChoice
	StateAppliedToOne
	StateAppliedToFutureOnly
	StateAppliedToAll
)

// Outcome discriminates a Resolution.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeOwnershipViolation
	OutcomeInvalidInput
)

// Request is a mutation against Target. For updates Edit holds the desired
// field values; zero Deadline, Priority and Tag keep the current value.
type Request struct {
	Op     Operation
	Target model.Task
	Edit   model.Task
}

// Pending is the decision the caller has to make before a request can be
// resolved. Standalone tasks never need one.
type Pending struct {
	State   State
	Choices []Scope
	Default Scope
}

// NeedsChoice reports whether the caller must pick a scope.
func (p Pending) NeedsChoice() bool {
	return p.State == StatePendingScopeChoice
}

// Resolution is the complete set of writes a mutation implies. It is
// computed before anything is persisted.
type Resolution struct {
	Outcome Outcome
	State   State
	// Affected lists every touched id ordered by recurring index.
	Affected     []string
	Writes       []model.Task
	Deletes      []string
	GroupEmptied bool
	Reason       string
}

// Err converts a rejected resolution into an error.
func (r Resolution) Err() error {
	switch r.Outcome {
	case OutcomeOwnershipViolation:
		return fmt.Errorf("%w: %s", ErrOwnershipViolation, r.Reason)
	case OutcomeInvalidInput:
		return fmt.Errorf("%w: %s", ErrInvalidScope, r.Reason)
	}
	return nil
}

var (
	updateChoices = []Scope{ScopeFuture, ScopeAll, ScopeSingle}
	deleteChoices = []Scope{ScopeSingle, ScopeAll}
)

// Coordinator resolves update and delete requests against recurring groups.
type Coordinator struct {
	now func() time.Time
}

func NewCoordinator(now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{now: now}
}

// Begin moves a request out of Idle. Grouped tasks wait for a scope choice,
// standalone tasks go straight to AppliedToOne. The first task of a series
// only goes away together with the series.
func (c *Coordinator) Begin(req Request) Pending {
	if !req.Target.InGroup() {
		return Pending{State: StateAppliedToOne, Choices: []Scope{ScopeSingle}, Default: ScopeSingle}
	}
	if req.Op == OpDelete {
		if req.Target.IsRecurringParent() {
			return Pending{State: StatePendingScopeChoice, Choices: []Scope{ScopeAll}, Default: ScopeAll}
		}
		return Pending{State: StatePendingScopeChoice, Choices: deleteChoices, Default: ScopeSingle}
	}
	return Pending{State: StatePendingScopeChoice, Choices: updateChoices, Default: ScopeFuture}
}

// Resolve computes the writes for req under scope. group is a snapshot of
// the tasks sharing the target's group id; members of other groups are ignored.
func (c *Coordinator) Resolve(req Request, scope Scope, group []model.Task, userID string) Resolution {
	if userID == "" || req.Target.UserID != userID {
		return reject(OutcomeOwnershipViolation, "task %s is not owned by the current user", req.Target.ID)
	}
	if !req.Target.InGroup() {
		return c.resolveStandalone(req)
	}

	members := groupMembers(req.Target.GroupID(), group)
	target, ok := findByID(members, req.Target.ID)
	if !ok {
		return reject(OutcomeInvalidInput, "task %s is missing from its group snapshot", req.Target.ID)
	}
	for _, m := range members {
		if m.UserID != userID {
			return reject(OutcomeOwnershipViolation, "group %s contains task %s of another user", target.GroupID(), m.ID)
		}
	}

	switch req.Op {
	case OpDelete:
		return c.resolveGroupDelete(target, scope, members)
	case OpUpdate:
		return c.resolveGroupUpdate(target, req.Edit, scope, members)
	}
	return reject(OutcomeInvalidInput, "unknown operation %d", req.Op)
}

func (c *Coordinator) resolveStandalone(req Request) Resolution {
	res := Resolution{Outcome: OutcomeApplied, State: StateAppliedToOne, Affected: []string{req.Target.ID}}
	if req.Op == OpDelete {
		res.Deletes = []string{req.Target.ID}
		return res
	}
	updated := applyEdit(req.Target, req.Edit, true)
	updated.ModifiedAt = c.now()
	res.Writes = []model.Task{updated}
	return res
}

func (c *Coordinator) resolveGroupDelete(target model.Task, scope Scope, members []model.Task) Resolution {
	switch scope {
	case ScopeSingle:
		if target.IsRecurringParent() && len(members) > 1 {
			return reject(OutcomeInvalidInput, "the first task of a series can only be deleted with the whole series")
		}
		return Resolution{
			Outcome:      OutcomeApplied,
			State:        StateAppliedToOne,
			Affected:     []string{target.ID},
			Deletes:      []string{target.ID},
			GroupEmptied: len(members) == 1,
		}
	case ScopeAll:
		ids := idsOf(members)
		return Resolution{
			Outcome:      OutcomeApplied,
			State:        StateAppliedToAll,
			Affected:     ids,
			Deletes:      ids,
			GroupEmptied: true,
		}
	}
	return reject(OutcomeInvalidInput, "scope %s is not available for delete", scope)
}

func (c *Coordinator) resolveGroupUpdate(target, edit model.Task, scope Scope, members []model.Task) Resolution {
	now := c.now()

	if scope == ScopeSingle {
		updated := applyEdit(target, edit, true)
		if !updated.Deadline.Equal(target.Deadline) && !fitsBetweenNeighbours(updated, members) {
			return reject(OutcomeInvalidInput, "new deadline breaks the order of the series")
		}
		updated.ModifiedAt = now
		return Resolution{
			Outcome:  OutcomeApplied,
			State:    StateAppliedToOne,
			Affected: []string{target.ID},
			Writes:   []model.Task{updated},
		}
	}

	var state State
	switch scope {
	case ScopeFuture:
		state = StateAppliedToFutureOnly
	case ScopeAll:
		state = StateAppliedToAll
	default:
		return reject(OutcomeInvalidInput, "scope %s is not available for update", scope)
	}

	res := Resolution{Outcome: OutcomeApplied, State: state}
	for _, m := range members {
		if scope == ScopeFuture && m.RecurringIndex() < target.RecurringIndex() {
			continue
		}
		updated := applyEdit(m, edit, false)
		updated.ModifiedAt = now
		res.Writes = append(res.Writes, updated)
		res.Affected = append(res.Affected, m.ID)
	}
	return res
}

// applyEdit copies the shared descriptive fields of edit onto task. With
// perInstance set the deadline and completion flag are taken as well.
// Identity, ownership, creation time and group linkage are never touched.
func applyEdit(task, edit model.Task, perInstance bool) model.Task {
	out := task
	out.Name = edit.Name
	out.Description = edit.Description
	if edit.Priority != "" {
		out.Priority = edit.Priority
	}
	if edit.Tag != "" {
		out.Tag = edit.Tag
	}
	if perInstance {
		out.Completed = edit.Completed
		if !edit.Deadline.IsZero() {
			out.Deadline = edit.Deadline
		}
	}
	return out
}

func fitsBetweenNeighbours(updated model.Task, members []model.Task) bool {
	idx := updated.RecurringIndex()
	for _, m := range members {
		switch {
		case m.RecurringIndex() < idx && !m.Deadline.Before(updated.Deadline):
			return false
		case m.RecurringIndex() > idx && !updated.Deadline.Before(m.Deadline):
			return false
		}
	}
	return true
}

// groupMembers returns the tasks of groupID ordered by recurring index.
func groupMembers(groupID string, tasks []model.Task) []model.Task {
	members := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.GroupID() == groupID {
			members = append(members, t)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].RecurringIndex() < members[j].RecurringIndex()
	})
	return members
}

func findByID(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func idsOf(tasks []model.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func reject(outcome Outcome, format string, args ...any) Resolution {
	return Resolution{Outcome: outcome, State: StateIdle, Reason: fmt.Sprintf(format, args...)}
}
