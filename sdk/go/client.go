package worksitesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Worksite HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Ref is an id plus display label, as returned by listing endpoints.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Employee mirrors the API employee model.
type Employee struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	HourlyRate float64 `json:"hourly_rate,omitempty"`
	DailyRate  float64 `json:"daily_rate,omitempty"`
	Category   string  `json:"category,omitempty"`
	Available  bool    `json:"available"`
	DelayCount int     `json:"delay_count"`
}

// Task mirrors the API task model.
type Task struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EstimatedDays float64 `json:"estimated_days"`
	DelayDays     float64 `json:"delay_days"`
	AssigneeID    *int    `json:"assignee_id,omitempty"`
	Status        string  `json:"status"`
}

// Project mirrors the full project report.
type Project struct {
	ID                  int       `json:"id"`
	Address             string    `json:"address"`
	Client              RefClient `json:"client"`
	Status              string    `json:"status"`
	StartDate           string    `json:"start_date"`
	PlannedEndDate      string    `json:"planned_end_date"`
	ActualEndDate       string    `json:"actual_end_date"`
	OriginalPlannedDate string    `json:"original_planned_end_date"`
	Tasks               []Task    `json:"tasks"`
	Employees           []Ref     `json:"employees"`
	Cost                float64   `json:"cost"`
	Finalized           bool      `json:"finalized"`
	Summary             string    `json:"summary"`
}

// RefClient mirrors the client record on a project.
type RefClient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Assignment reports the employee bound by an assign or reassign call.
type Assignment struct {
	EmployeeID int    `json:"employee_id"`
	TaskTitle  string `json:"task_title"`
}

// Delays reports an employee's delay incidents.
type Delays struct {
	DelayCount int  `json:"delay_count"`
	HasDelays  bool `json:"has_delays"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type idResponse struct {
	ID int `json:"id"`
}

// Stats mirrors the registry status report.
type Stats struct {
	Projects           int    `json:"projects"`
	Employees          int    `json:"employees"`
	AvailableEmployees int    `json:"available_employees"`
	Report             string `json:"report"`
}

// Status returns registry totals and the rendered status report.
func (c *Client) Status(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "v1/status", nil, &resp)
	return resp, err
}

// RegisterHourlyEmployee registers an hourly worker and returns its id.
func (c *Client) RegisterHourlyEmployee(ctx context.Context, name string, hourlyRate float64) (int, error) {
	body := map[string]any{"name": name, "hourly_rate": hourlyRate}
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "v1/employees/hourly", body, &resp)
	return resp.ID, err
}

// RegisterSalariedEmployee registers a salaried worker and returns its id.
func (c *Client) RegisterSalariedEmployee(ctx context.Context, name string, dailyRate float64, category string) (int, error) {
	body := map[string]any{"name": name, "daily_rate": dailyRate, "category": category}
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "v1/employees/salaried", body, &resp)
	return resp.ID, err
}

// Employees lists every registered employee.
func (c *Client) Employees(ctx context.Context) ([]Ref, error) {
	var resp struct {
		Items []Ref `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v1/employees", nil, &resp)
	return resp.Items, err
}

// AvailableEmployees lists employees free for assignment.
func (c *Client) AvailableEmployees(ctx context.Context) ([]Employee, error) {
	var resp struct {
		Items []Employee `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v1/employees/available", nil, &resp)
	return resp.Items, err
}

// EmployeeDelays reports an employee's delay incidents.
func (c *Client) EmployeeDelays(ctx context.Context, employeeID int) (Delays, error) {
	var resp Delays
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/employees/%d/delays", employeeID), nil, &resp)
	return resp, err
}

// ProjectSpec describes a new project and its initial tasks.
type ProjectSpec struct {
	TaskTitles       []string  `json:"task_titles"`
	TaskDescriptions []string  `json:"task_descriptions"`
	TaskDays         []float64 `json:"task_days"`
	Address          string    `json:"address"`
	Client           RefClient `json:"client"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
}

// CreateProject registers a project and returns its id.
func (c *Client) CreateProject(ctx context.Context, spec ProjectSpec) (int, error) {
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "v1/projects", spec, &resp)
	return resp.ID, err
}

// ProjectsByStatus lists projects in the given status.
func (c *Client) ProjectsByStatus(ctx context.Context, status string) ([]Ref, error) {
	var resp struct {
		Items []Ref `json:"items"`
	}
	endpoint := "v1/projects?status=" + url.QueryEscape(status)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Project fetches the full project report.
func (c *Client) Project(ctx context.Context, projectID int) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d", projectID), nil, &resp)
	return resp, err
}

// ProjectCost returns the project's cost to date.
func (c *Client) ProjectCost(ctx context.Context, projectID int) (float64, error) {
	var resp struct {
		Cost float64 `json:"cost"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d/cost", projectID), nil, &resp)
	return resp.Cost, err
}

// ProjectEmployees lists everyone who ever worked on the project.
func (c *Client) ProjectEmployees(ctx context.Context, projectID int) ([]Ref, error) {
	var resp struct {
		Items []Ref `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d/employees", projectID), nil, &resp)
	return resp.Items, err
}

// UnassignedTasks lists the project's tasks without an assignee.
func (c *Client) UnassignedTasks(ctx context.Context, projectID int) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/projects/%d/tasks/unassigned", projectID), nil, &resp)
	return resp.Items, err
}

// AddTask appends a pending task to the project.
func (c *Client) AddTask(ctx context.Context, projectID int, title, description string, days float64) (Task, error) {
	body := map[string]any{"title": title, "description": description, "days": days}
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/projects/%d/tasks", projectID), body, &resp)
	return resp, err
}

// AssignTask binds an employee to the task using the given policy
// ("first-available" or "least-delayed"; empty means first-available).
func (c *Client) AssignTask(ctx context.Context, projectID int, title, policy string) (Assignment, error) {
	body := map[string]any{}
	if policy != "" {
		body["policy"] = policy
	}
	var resp Assignment
	err := c.do(ctx, http.MethodPost, c.taskPath(projectID, title, "assign"), body, &resp)
	return resp, err
}

// ReassignTask replaces the task's assignee with the given employee.
func (c *Client) ReassignTask(ctx context.Context, projectID, employeeID int, title string) (Assignment, error) {
	body := map[string]any{"employee_id": employeeID}
	var resp Assignment
	err := c.do(ctx, http.MethodPost, c.taskPath(projectID, title, "reassign"), body, &resp)
	return resp, err
}

// ReassignLeastDelayed replaces the task's assignee with the least-delayed
// available employee.
func (c *Client) ReassignLeastDelayed(ctx context.Context, projectID int, title string) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodPost, c.taskPath(projectID, title, "reassign"), map[string]any{}, &resp)
	return resp, err
}

// CompleteTask marks the task done and releases its employee.
func (c *Client) CompleteTask(ctx context.Context, projectID int, title string) error {
	return c.do(ctx, http.MethodPost, c.taskPath(projectID, title, "complete"), nil, nil)
}

// RecordDelay records a delay of the given days on the task.
func (c *Client) RecordDelay(ctx context.Context, projectID int, title string, days float64) error {
	body := map[string]any{"days": days}
	return c.do(ctx, http.MethodPost, c.taskPath(projectID, title, "delays"), body, nil)
}

// FinalizeProject closes the project at the given end date and returns the
// final cost.
func (c *Client) FinalizeProject(ctx context.Context, projectID int, endDate string) (float64, error) {
	body := map[string]any{"end_date": endDate}
	var resp struct {
		Cost float64 `json:"cost"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/projects/%d/finalize", projectID), body, &resp)
	return resp.Cost, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) taskPath(projectID int, title, action string) string {
	return fmt.Sprintf("v1/projects/%d/tasks/%s/%s", projectID, url.PathEscape(title), action)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
