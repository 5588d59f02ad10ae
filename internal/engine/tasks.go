package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"payline/internal/audit"
	"payline/internal/domain"
	"payline/internal/validate"
)

// Task review roles.
const (
	roleOwner    = "owner"
	roleReviewer = "reviewer"
)

// taskTransitions maps current status to the statuses each role may move
// the task into. Owners drive the work forward; reviewers accept, return
// or complete it.
var taskTransitions = map[string]map[string][]string{
	domain.TaskNotStarted: {
		roleOwner: {domain.TaskInProgress},
	},
	domain.TaskInProgress: {
		roleOwner: {domain.TaskSubmitted},
	},
	domain.TaskSubmitted: {
		roleReviewer: {domain.TaskUnderReview, domain.TaskCompleted, domain.TaskReturned},
	},
	domain.TaskUnderReview: {
		roleReviewer: {domain.TaskCompleted, domain.TaskReturned},
	},
	domain.TaskReturned: {
		roleOwner: {domain.TaskInProgress},
	},
	domain.TaskCompleted: {},
}

func validTaskStatus(status string) bool {
	_, ok := taskTransitions[status]
	return ok
}

func validPriority(p string) bool {
	return p == domain.PriorityLow || p == domain.PriorityMedium || p == domain.PriorityHigh
}

// TaskCreateOptions are parameters for opening a review task.
type TaskCreateOptions struct {
	Description string
	Owner       string
	Deadline    string
	Priority    string
	Actor       string
}

// CreateTask opens a task in NOT_STARTED with a fresh id.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	description := strings.TrimSpace(opts.Description)
	owner := strings.TrimSpace(opts.Owner)
	if description == "" {
		return domain.Task{}, ValidationError{Msg: "task description is required"}
	}
	if owner == "" {
		return domain.Task{}, ValidationError{Msg: "task owner is required"}
	}
	if _, err := time.Parse(validate.DateLayout, opts.Deadline); err != nil {
		return domain.Task{}, ValidationError{Msg: "deadline must be in format YYYY-MM-DD"}
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !validPriority(priority) {
		return domain.Task{}, validationErrorf("invalid priority: %s", priority)
	}
	actor := opts.Actor
	if actor == "" {
		actor = owner
	}
	ts := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:          uuid.NewString(),
		Description: description,
		Owner:       owner,
		Deadline:    opts.Deadline,
		Priority:    priority,
		Status:      domain.TaskNotStarted,
		CreatedBy:   actor,
		CreatedAt:   ts,
		LastEdited:  ts,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionTaskCreated, t.ID, description, actor); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// taskRole reports which role user holds on the task, or "" for none.
func taskRole(t domain.Task, user string) string {
	if user == t.Owner {
		return roleOwner
	}
	if t.Reviewer != nil && user == *t.Reviewer {
		return roleReviewer
	}
	return ""
}

// UpdateTaskStatus moves a task through the review lifecycle. The acting
// user must hold the role the transition requires; feedback, when given,
// is appended to the task's trail in the same transaction.
func (e Engine) UpdateTaskStatus(ctx context.Context, id, status, user, feedback string) (domain.Task, error) {
	if !validTaskStatus(status) {
		return domain.Task{}, validationErrorf("invalid task status: %s", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Archived {
		return domain.Task{}, ValidationError{Msg: "task is archived"}
	}
	role := taskRole(t, user)
	allowed := false
	for _, next := range taskTransitions[t.Status][role] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.Task{}, TransitionError{From: t.Status, To: status, Actor: user}
	}
	ts := e.now().UTC().Format(time.RFC3339)
	previous := t.Status
	t.Status = status
	t.LastEdited = ts
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if feedback = strings.TrimSpace(feedback); feedback != "" {
		fb := domain.Feedback{User: user, Timestamp: ts, Message: feedback}
		if err := e.Repo.InsertFeedbackTx(ctx, tx, t.ID, fb); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionTaskUpdated, t.ID, previous+" -> "+status, user); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Feedback, err = e.Repo.ListTaskFeedback(ctx, t.ID)
	return t, err
}

// AssignReviewer sets the reviewer for a task. The set is unconditional;
// keeping owner and reviewer distinct is the caller's concern.
func (e Engine) AssignReviewer(ctx context.Context, id, reviewer, actor string) (domain.Task, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return domain.Task{}, ValidationError{Msg: "reviewer is required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.Reviewer = &reviewer
	t.LastEdited = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionTaskUpdated, t.ID, "reviewer assigned: "+reviewer, actor); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Feedback, err = e.Repo.ListTaskFeedback(ctx, t.ID)
	return t, err
}

// AddFeedback appends a comment to the task's trail without changing
// status.
func (e Engine) AddFeedback(ctx context.Context, id, user, message string) (domain.Task, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Task{}, ValidationError{Msg: "feedback message is required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	ts := e.now().UTC().Format(time.RFC3339)
	fb := domain.Feedback{User: user, Timestamp: ts, Message: message}
	if err := e.Repo.InsertFeedbackTx(ctx, tx, t.ID, fb); err != nil {
		return domain.Task{}, err
	}
	t.LastEdited = ts
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Feedback, err = e.Repo.ListTaskFeedback(ctx, t.ID)
	return t, err
}

// ArchiveTask hides a task from default listings. Only the owner, the
// reviewer, or an admin may archive; archiving twice is a no-op.
func (e Engine) ArchiveTask(ctx context.Context, id, user string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if taskRole(t, user) == "" && !e.Config.IsAdmin(user) {
		return domain.Task{}, ForbiddenError{User: user, Action: "archive this task"}
	}
	if t.Archived {
		return t, tx.Commit()
	}
	ts := e.now().UTC().Format(time.RFC3339)
	t.Archived = true
	t.ArchivedAt = &ts
	t.LastEdited = ts
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.auditor().Append(ctx, tx, audit.ActionTaskArchived, t.ID, "", user); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Feedback, err = e.Repo.ListTaskFeedback(ctx, t.ID)
	return t, err
}
