// Package process implements the process-instance aggregate persisted in the
// graph: instances, their tasks, and the users tasks are assigned to.
//
// Entities are plain records constructed from mapped query results or the
// repository's factory paths; all mutation goes through repository write
// operations inside managed transactions.
package process

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/internal/types"
)

// Node labels and relationship types used in the graph.
const (
	LabelProcessInstance = "ProcessInstance"
	LabelTask            = "Task"
	LabelUser            = "User"

	RelHasTask    = "HAS_TASK"
	RelAssignedTo = "ASSIGNED_TO"
)

// State is the lifecycle state of a process instance.
type State string

const (
	StateActive     State = "active"
	StateSuspended  State = "suspended"
	StateCompleted  State = "completed"
	StateTerminated State = "terminated"
)

// IsValid checks if the State is a known value.
func (s State) IsValid() bool {
	switch s {
	case StateActive, StateSuspended, StateCompleted, StateTerminated:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateOpen      TaskState = "open"
	TaskStateAssigned  TaskState = "assigned"
	TaskStateCompleted TaskState = "completed"
)

// ProcessInstance is one running occurrence of a process definition.
type ProcessInstance struct {
	ID          types.ID        `json:"id"`
	BusinessKey string          `json:"business_key"`
	Definition  string          `json:"definition"`
	State       State           `json:"state"`
	Variables   types.Variables `json:"variables,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Task is a unit of human or system work attached to a process instance.
type Task struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	State     TaskState `json:"state"`
	Priority  int64     `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an actor tasks can be assigned to.
type User struct {
	ID          types.ID `json:"id"`
	Login       string   `json:"login"`
	DisplayName string   `json:"display_name"`
}

// instanceProps flattens an instance into node properties. The variables bag
// is stored as a single JSON property in its tagged encoding so value kinds
// survive the round trip.
func instanceProps(p *ProcessInstance) (map[string]any, error) {
	varsJSON, err := json.Marshal(p.Variables)
	if err != nil {
		return nil, types.WrapError(types.GRAPH_RESULT_PARSING,
			"failed to encode variables", err)
	}

	return map[string]any{
		"id":          p.ID.String(),
		"businessKey": p.BusinessKey,
		"definition":  p.Definition,
		"state":       p.State.String(),
		"variables":   string(varsJSON),
		"createdAt":   p.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt":   p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// instanceFromProps maps node properties back into a typed entity.
func instanceFromProps(props map[string]any) (*ProcessInstance, error) {
	p := &ProcessInstance{}

	id, err := stringProp(props, "id")
	if err != nil {
		return nil, err
	}
	p.ID, err = types.ParseID(id)
	if err != nil {
		return nil, types.WrapError(types.GRAPH_RESULT_PARSING, "invalid id property", err)
	}

	if p.BusinessKey, err = stringProp(props, "businessKey"); err != nil {
		return nil, err
	}
	if p.Definition, err = stringProp(props, "definition"); err != nil {
		return nil, err
	}

	state, err := stringProp(props, "state")
	if err != nil {
		return nil, err
	}
	p.State = State(state)
	if !p.State.IsValid() {
		return nil, types.NewError(types.GRAPH_RESULT_PARSING,
			fmt.Sprintf("unknown process state %q", state))
	}

	if varsJSON, ok := props["variables"].(string); ok && varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &p.Variables); err != nil {
			return nil, types.WrapError(types.GRAPH_RESULT_PARSING,
				"failed to decode variables", err)
		}
	}

	if p.CreatedAt, err = timeProp(props, "createdAt"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = timeProp(props, "updatedAt"); err != nil {
		return nil, err
	}

	return p, nil
}

// taskProps flattens a task into node properties.
func taskProps(t *Task) map[string]any {
	return map[string]any{
		"id":        t.ID.String(),
		"name":      t.Name,
		"state":     string(t.State),
		"priority":  t.Priority,
		"createdAt": t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// taskFromProps maps node properties back into a typed task.
func taskFromProps(props map[string]any) (*Task, error) {
	t := &Task{}

	id, err := stringProp(props, "id")
	if err != nil {
		return nil, err
	}
	t.ID, err = types.ParseID(id)
	if err != nil {
		return nil, types.WrapError(types.GRAPH_RESULT_PARSING, "invalid id property", err)
	}

	if t.Name, err = stringProp(props, "name"); err != nil {
		return nil, err
	}

	state, err := stringProp(props, "state")
	if err != nil {
		return nil, err
	}
	t.State = TaskState(state)

	priority, ok := props["priority"].(int64)
	if !ok {
		return nil, types.NewError(types.GRAPH_RESULT_PARSING, "missing or invalid priority property")
	}
	t.Priority = priority

	if t.CreatedAt, err = timeProp(props, "createdAt"); err != nil {
		return nil, err
	}

	return t, nil
}

// userProps flattens a user into node properties.
func userProps(u *User) map[string]any {
	return map[string]any{
		"id":          u.ID.String(),
		"login":       u.Login,
		"displayName": u.DisplayName,
	}
}

// userFromProps maps node properties back into a typed user.
func userFromProps(props map[string]any) (*User, error) {
	u := &User{}

	id, err := stringProp(props, "id")
	if err != nil {
		return nil, err
	}
	u.ID, err = types.ParseID(id)
	if err != nil {
		return nil, types.WrapError(types.GRAPH_RESULT_PARSING, "invalid id property", err)
	}

	if u.Login, err = stringProp(props, "login"); err != nil {
		return nil, err
	}
	if u.DisplayName, err = stringProp(props, "displayName"); err != nil {
		return nil, err
	}

	return u, nil
}

func stringProp(props map[string]any, key string) (string, error) {
	s, ok := props[key].(string)
	if !ok || s == "" {
		return "", types.NewError(types.GRAPH_RESULT_PARSING,
			fmt.Sprintf("missing or invalid %s property", key))
	}
	return s, nil
}

func timeProp(props map[string]any, key string) (time.Time, error) {
	switch val := props[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, types.WrapError(types.GRAPH_RESULT_PARSING,
				fmt.Sprintf("invalid %s property", key), err)
		}
		return t, nil
	case time.Time:
		return val.UTC(), nil
	default:
		return time.Time{}, types.NewError(types.GRAPH_RESULT_PARSING,
			fmt.Sprintf("missing or invalid %s property", key))
	}
}
