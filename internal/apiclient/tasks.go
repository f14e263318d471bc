package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Task is an implementation tracker work item.
type Task struct {
	ID       int64  `json:"id,omitempty"`
	Title    string `json:"title"`
	Site     string `json:"site,omitempty"`
	Status   string `json:"status,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

// TaskDetail is a task plus its history.
type TaskDetail struct {
	Task
	Notes   string           `json:"notes,omitempty"`
	History []map[string]any `json:"history,omitempty"`
}

// TaskFilter narrows FetchTasks.
type TaskFilter struct {
	Status string
	Site   string
}

// TasksAPI groups implementation tracker calls.
type TasksAPI struct {
	c *Client
}

// Tasks returns the implementation tracker call group.
func (c *Client) Tasks() TasksAPI {
	return TasksAPI{c: c}
}

// FetchTasks lists tasks.
func (t TasksAPI) FetchTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	path := "/implementation-tracker/tasks/"
	values := url.Values{}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	if filter.Site != "" {
		values.Set("site", filter.Site)
	}
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var out list[Task]
	if err := t.c.Request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDetails returns one task with its history.
func (t TasksAPI) FetchDetails(ctx context.Context, id int64) (TaskDetail, error) {
	var out TaskDetail
	err := t.c.Request(ctx, http.MethodGet, taskPath(id), nil, &out)
	return out, err
}

// CreateTask adds a task.
func (t TasksAPI) CreateTask(ctx context.Context, task Task) (Task, error) {
	var out Task
	err := t.c.Request(ctx, http.MethodPost, "/implementation-tracker/tasks/", task, &out)
	return out, err
}

// UpdateTask replaces a task.
func (t TasksAPI) UpdateTask(ctx context.Context, id int64, task Task) (Task, error) {
	var out Task
	err := t.c.Request(ctx, http.MethodPut, taskPath(id), task, &out)
	return out, err
}

// DeleteTask removes a task.
func (t TasksAPI) DeleteTask(ctx context.Context, id int64) error {
	return t.c.Request(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return fmt.Sprintf("/implementation-tracker/tasks/%d/", id)
}
