package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/caseflow/caseflow/internal/graph"
	"github.com/caseflow/caseflow/internal/graph/cypher"
	"github.com/caseflow/caseflow/internal/graph/txn"
	"github.com/caseflow/caseflow/internal/types"
)

// CreateSpec is the input for creating a process instance.
type CreateSpec struct {
	BusinessKey string          `validate:"required"`
	Definition  string          `validate:"required"`
	Variables   types.Variables `validate:"-"`
}

// TaskSpec is the input for attaching a task to a process instance.
type TaskSpec struct {
	Name     string `validate:"required"`
	Priority int64  `validate:"gte=0"`
}

// UserSpec is the input for registering a user.
type UserSpec struct {
	Login       string `validate:"required"`
	DisplayName string `validate:"required"`
}

// Patch describes a partial update of a process instance. Nil fields are
// left untouched; patch variables are merged over the existing bag.
type Patch struct {
	State     *State
	Variables types.Variables
}

// Repository provides typed CRUD over the process-instance aggregate.
// All methods are safe for concurrent use; atomicity guarantees come from
// the transaction manager, not from locking in this layer.
type Repository struct {
	manager  *txn.Manager
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock overrides the time source, used by tests for stable timestamps.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository creates a repository over the given transaction manager.
func NewRepository(manager *txn.Manager, opts ...RepositoryOption) *Repository {
	r := &Repository{
		manager:  manager,
		validate: validator.New(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates the spec and persists a new process instance, returning
// the entity as mapped back from the stored node.
func (r *Repository) Create(ctx context.Context, spec CreateSpec) (*ProcessInstance, error) {
	if err := r.validate.Struct(spec); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid create spec", err)
	}

	now := r.now().UTC()
	instance := &ProcessInstance{
		ID:          types.NewID(),
		BusinessKey: spec.BusinessKey,
		Definition:  spec.Definition,
		State:       StateActive,
		Variables:   spec.Variables.Clone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	props, err := instanceProps(instance)
	if err != nil {
		return nil, err
	}

	compiled, err := cypher.New().
		Create("p", LabelProcessInstance, props).
		ReturnProperties("p").
		One()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.GRAPH_QUERY_FAILED,
				"create returned no record")
		}
		return recordProps(res.Records[0], "p")
	})
	if err != nil {
		return nil, err
	}

	created, err := instanceFromProps(result.(map[string]any))
	if err != nil {
		return nil, err
	}

	r.logger.Info("process instance created",
		"id", created.ID,
		"business_key", created.BusinessKey,
		"definition", created.Definition)
	return created, nil
}

// FindByBusinessKey retrieves the single instance carrying the given
// business key. Zero matches surface as PROCESS_NOT_FOUND, a distinct
// outcome from transport failures; more than one match is a cardinality
// violation, never a silent truncation.
func (r *Repository) FindByBusinessKey(ctx context.Context, key string) (*ProcessInstance, error) {
	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"businessKey": key}).
		ReturnProperties("p").
		One()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, compiled, fmt.Sprintf("process instance with business key %q", key))
}

// FindByID retrieves an instance by its identity.
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*ProcessInstance, error) {
	if err := id.Validate(); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid id", err)
	}

	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"id": id.String()}).
		ReturnProperties("p").
		One()
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, compiled, fmt.Sprintf("process instance %s", id))
}

// findOne runs a .one read and maps the row, translating zero rows into
// PROCESS_NOT_FOUND.
func (r *Repository) findOne(ctx context.Context, compiled cypher.CompiledQuery, what string) (*ProcessInstance, error) {
	result, err := r.manager.ExecuteRead(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.PROCESS_NOT_FOUND, what+" not found")
		}
		return recordProps(res.Records[0], "p")
	})
	if err != nil {
		return nil, err
	}

	return instanceFromProps(result.(map[string]any))
}

// Update applies a patch to an instance as a read-modify-write inside a
// single transaction, so the check-then-act is atomic under concurrent
// updaters.
func (r *Repository) Update(ctx context.Context, id types.ID, patch Patch) (*ProcessInstance, error) {
	if err := id.Validate(); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid id", err)
	}
	if patch.State != nil && !patch.State.IsValid() {
		return nil, types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown process state %q", *patch.State))
	}

	findQ, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"id": id.String()}).
		ReturnProperties("p").
		One()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, findQ)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.PROCESS_NOT_FOUND,
				fmt.Sprintf("process instance %s not found", id))
		}

		props, err := recordProps(res.Records[0], "p")
		if err != nil {
			return nil, err
		}
		current, err := instanceFromProps(props)
		if err != nil {
			return nil, err
		}

		if patch.State != nil {
			current.State = *patch.State
		}
		if patch.Variables != nil {
			merged := current.Variables.Clone()
			if merged == nil {
				merged = types.Variables{}
			}
			for key, val := range patch.Variables {
				merged[key] = val
			}
			current.Variables = merged
		}
		current.UpdatedAt = r.now().UTC()

		newProps, err := instanceProps(current)
		if err != nil {
			return nil, err
		}
		delete(newProps, "id") // identity is immutable

		updateQ, err := cypher.New().
			Match("p", LabelProcessInstance, map[string]any{"id": id.String()}).
			Set("p", newProps).
			ReturnProperties("p").
			One()
		if err != nil {
			return nil, err
		}

		updated, err := runCompiled(ctx, tx, updateQ)
		if err != nil {
			return nil, err
		}
		if len(updated.Records) == 0 {
			return nil, types.NewError(types.PROCESS_NOT_FOUND,
				fmt.Sprintf("process instance %s vanished during update", id))
		}
		return recordProps(updated.Records[0], "p")
	})
	if err != nil {
		return nil, err
	}

	updated, err := instanceFromProps(result.(map[string]any))
	if err != nil {
		return nil, err
	}

	r.logger.Info("process instance updated", "id", updated.ID, "state", updated.State)
	return updated, nil
}

// Delete removes an instance and its relationships.
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	if err := id.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "invalid id", err)
	}

	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"id": id.String()}).
		Delete("p").
		All()
	if err != nil {
		return err
	}

	_, err = r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if res.Summary.NodesDeleted == 0 {
			return nil, types.NewError(types.PROCESS_NOT_FOUND,
				fmt.Sprintf("process instance %s not found", id))
		}
		return nil, nil
	})
	return err
}

// ListByState returns all instances in the given state, newest first.
func (r *Repository) ListByState(ctx context.Context, state State) ([]*ProcessInstance, error) {
	if !state.IsValid() {
		return nil, types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown process state %q", state))
	}

	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"state": state.String()}).
		ReturnProperties("p").
		OrderBy("p", "createdAt", true).
		All()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteRead(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}

		instances := make([]*ProcessInstance, 0, len(res.Records))
		for _, record := range res.Records {
			props, err := recordProps(record, "p")
			if err != nil {
				return nil, err
			}
			instance, err := instanceFromProps(props)
			if err != nil {
				return nil, err
			}
			instances = append(instances, instance)
		}
		return instances, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]*ProcessInstance), nil
}

// AddTask validates the spec and attaches a new task to an instance.
func (r *Repository) AddTask(ctx context.Context, processID types.ID, spec TaskSpec) (*Task, error) {
	if err := r.validate.Struct(spec); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid task spec", err)
	}
	if err := processID.Validate(); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid process id", err)
	}

	task := &Task{
		ID:        types.NewID(),
		Name:      spec.Name,
		State:     TaskStateOpen,
		Priority:  spec.Priority,
		CreatedAt: r.now().UTC(),
	}

	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"id": processID.String()}).
		Create("t", LabelTask, taskProps(task)).
		CreateRel("p", RelHasTask, "t").
		ReturnProperties("t").
		One()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.PROCESS_NOT_FOUND,
				fmt.Sprintf("process instance %s not found", processID))
		}
		return recordProps(res.Records[0], "t")
	})
	if err != nil {
		return nil, err
	}

	return taskFromProps(result.(map[string]any))
}

// TasksFor lists the tasks attached to an instance, highest priority first.
func (r *Repository) TasksFor(ctx context.Context, processID types.ID) ([]*Task, error) {
	if err := processID.Validate(); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid process id", err)
	}

	compiled, err := cypher.New().
		Match("p", LabelProcessInstance, map[string]any{"id": processID.String()}).
		Match("t", LabelTask, nil).
		Relate("p", RelHasTask, "t", cypher.DirectionOut).
		ReturnProperties("t").
		OrderBy("t", "priority", true).
		All()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteRead(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}

		tasks := make([]*Task, 0, len(res.Records))
		for _, record := range res.Records {
			props, err := recordProps(record, "t")
			if err != nil {
				return nil, err
			}
			task, err := taskFromProps(props)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]*Task), nil
}

// AssignTask links a task to a user and moves it to the assigned state, all
// inside one transaction.
func (r *Repository) AssignTask(ctx context.Context, taskID types.ID, login string) (*Task, error) {
	if err := taskID.Validate(); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid task id", err)
	}
	if login == "" {
		return nil, types.NewError(types.VALIDATION_FAILED, "login is required")
	}

	compiled, err := cypher.New().
		Match("t", LabelTask, map[string]any{"id": taskID.String()}).
		Match("u", LabelUser, map[string]any{"login": login}).
		CreateRel("t", RelAssignedTo, "u").
		Set("t", map[string]any{"state": string(TaskStateAssigned)}).
		ReturnProperties("t").
		One()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.TASK_NOT_FOUND,
				fmt.Sprintf("task %s or user %q not found", taskID, login))
		}
		return recordProps(res.Records[0], "t")
	})
	if err != nil {
		return nil, err
	}

	return taskFromProps(result.(map[string]any))
}

// EnsureUser registers a user if the login is not yet taken and returns the
// stored record either way. The upsert is a single MERGE keyed on the login,
// so concurrent callers racing on the same login converge on one node
// instead of creating duplicates a find-then-create would allow.
func (r *Repository) EnsureUser(ctx context.Context, spec UserSpec) (*User, error) {
	if err := r.validate.Struct(spec); err != nil {
		return nil, types.WrapError(types.VALIDATION_FAILED, "invalid user spec", err)
	}

	compiled, err := cypher.New().
		Merge("u", LabelUser, map[string]any{"login": spec.Login}).
		OnCreateSet("u", map[string]any{
			"id":          types.NewID().String(),
			"displayName": spec.DisplayName,
		}).
		ReturnProperties("u").
		One()
	if err != nil {
		return nil, err
	}

	result, err := r.manager.ExecuteWrite(ctx, func(tx graph.Tx) (any, error) {
		res, err := runCompiled(ctx, tx, compiled)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, types.NewError(types.GRAPH_QUERY_FAILED, "user upsert returned no record")
		}
		return recordProps(res.Records[0], "u")
	})
	if err != nil {
		return nil, err
	}

	return userFromProps(result.(map[string]any))
}

// runCompiled executes a compiled query on the transaction and enforces its
// cardinality marker: a .one query observing more than one row fails rather
// than truncating.
func runCompiled(ctx context.Context, tx graph.Tx, compiled cypher.CompiledQuery) (graph.Result, error) {
	result, err := tx.Run(ctx, compiled.Text, compiled.Params)
	if err != nil {
		return graph.Result{}, err
	}

	if compiled.Cardinality == cypher.CardinalityOne && len(result.Records) > 1 {
		return graph.Result{}, types.NewError(types.QUERY_CARDINALITY_VIOLATION,
			fmt.Sprintf("expected at most one row, got %d", len(result.Records)))
	}
	return result, nil
}

// recordProps extracts the property map projected under the given variable.
func recordProps(record map[string]any, variable string) (map[string]any, error) {
	props, ok := record[variable].(map[string]any)
	if !ok {
		return nil, types.NewError(types.GRAPH_RESULT_PARSING,
			fmt.Sprintf("record does not carry properties for %q", variable))
	}
	return props, nil
}
