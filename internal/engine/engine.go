package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"worksite/internal/domain"
	"worksite/internal/repo"
)

// Engine orchestrates the whole aggregate: it owns the registry, validates
// cross-entity input, and is the only writer. Every operation takes the one
// mutex, so a multi-client deployment sees each logical operation applied
// atomically or not at all.
type Engine struct {
	mu       sync.Mutex
	Registry *repo.Registry
}

func New(reg *repo.Registry) *Engine {
	return &Engine{Registry: reg}
}

// RegisterHourlyEmployee adds a contracted employee paid by the hour and
// returns the new id.
func (e *Engine) RegisterHourlyEmployee(name string, hourlyRate float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateEmployee(name, hourlyRate); err != nil {
		return 0, err
	}
	emp := &domain.Employee{
		Name:       strings.TrimSpace(name),
		Kind:       domain.EmployeeHourly,
		HourlyRate: hourlyRate,
		Available:  true,
	}
	return e.Registry.InsertEmployee(emp), nil
}

// RegisterSalariedEmployee adds a staff employee paid a daily rate and returns
// the new id.
func (e *Engine) RegisterSalariedEmployee(name string, dailyRate float64, category domain.Category) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateEmployee(name, dailyRate); err != nil {
		return 0, err
	}
	if !domain.ValidCategory(category) {
		return 0, ValidationError{Msg: fmt.Sprintf("invalid employee category %q", category)}
	}
	emp := &domain.Employee{
		Name:      strings.TrimSpace(name),
		Kind:      domain.EmployeeSalaried,
		DailyRate: dailyRate,
		Category:  category,
		Available: true,
	}
	return e.Registry.InsertEmployee(emp), nil
}

func validateEmployee(name string, rate float64) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Msg: "employee name is required"}
	}
	if rate <= 0 {
		return ValidationError{Msg: "employee rate must be positive"}
	}
	return nil
}

// ProjectCreateOptions are the parameters for registering a project with its
// initial tasks. The three task slices are parallel.
type ProjectCreateOptions struct {
	Titles       []string
	Descriptions []string
	Days         []float64
	Address      string
	Client       domain.Client
	StartDate    string
	EndDate      string
}

// RegisterProject validates everything up front and only then creates the
// project and attaches its tasks, so a failed registration leaves no trace.
// Returns the new project id.
func (e *Engine) RegisterProject(opts ProjectCreateOptions) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(opts.Titles) == 0 {
		return 0, ValidationError{Msg: "a project needs at least one task"}
	}
	if len(opts.Descriptions) != len(opts.Titles) || len(opts.Days) != len(opts.Titles) {
		return 0, ValidationError{Msg: "task titles, descriptions and days must have matching lengths"}
	}
	if strings.TrimSpace(opts.Address) == "" {
		return 0, ValidationError{Msg: "project address is required"}
	}
	if strings.TrimSpace(opts.Client.Name) == "" {
		return 0, ValidationError{Msg: "client name is required"}
	}
	start, err := parseDate(opts.StartDate)
	if err != nil {
		return 0, err
	}
	end, err := parseDate(opts.EndDate)
	if err != nil {
		return 0, err
	}
	if end.Before(start) {
		return 0, ValidationError{Msg: "project end date cannot precede its start date"}
	}
	seen := map[string]struct{}{}
	for i, title := range opts.Titles {
		if strings.TrimSpace(title) == "" {
			return 0, ValidationError{Msg: "task title is required"}
		}
		if opts.Days[i] <= 0 {
			return 0, ValidationError{Msg: fmt.Sprintf("task %q needs a positive day estimate", title)}
		}
		if _, dup := seen[title]; dup {
			return 0, StateConflictError{Msg: fmt.Sprintf("duplicate task title %q", title)}
		}
		seen[title] = struct{}{}
	}

	p := domain.NewProject(e.Registry.NextProjectID(), opts.Address, opts.Client, start, end)
	for i, title := range opts.Titles {
		p.AttachTask(domain.NewTask(title, opts.Descriptions[i], opts.Days[i]))
	}
	e.Registry.InsertProject(p)
	return p.ID, nil
}

// AddTask attaches one more task to an open project, advancing both end dates
// by the rounded-up estimate.
func (e *Engine) AddTask(projectID int, title, description string, days float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		return ValidationError{Msg: "task title is required"}
	}
	if days <= 0 {
		return ValidationError{Msg: "task duration must be positive"}
	}
	p, err := e.project(projectID)
	if err != nil {
		return err
	}
	if p.Done() {
		return StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	if p.Task(title) != nil {
		return StateConflictError{Msg: fmt.Sprintf("project %d already has a task titled %q", projectID, title)}
	}
	p.AttachTask(domain.NewTask(title, description, days))
	return nil
}

// CompleteTask moves an active task to done and releases its employee back to
// the available pool. The task keeps its assignee for costing.
func (e *Engine) CompleteTask(projectID int, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, t, err := e.projectTask(projectID, title)
	if err != nil {
		return err
	}
	if p.Done() {
		return StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	if !t.Assigned() {
		return StateConflictError{Msg: fmt.Sprintf("task %q has no assignee to complete", title)}
	}
	if t.Status == domain.StatusDone {
		return StateConflictError{Msg: fmt.Sprintf("task %q is already done", title)}
	}
	t.Complete()
	if emp := e.Registry.LookupEmployee(*t.AssigneeID); emp != nil {
		emp.MarkAvailable()
	}
	return nil
}

// RecordDelay adds delay days to a task. The task accumulates the days, the
// assignee (if any) is charged exactly one delay incident, and the project's
// actual end date slips by the rounded-up amount.
func (e *Engine) RecordDelay(projectID int, title string, days float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if days <= 0 {
		return StateConflictError{Msg: "delay days must be positive"}
	}
	p, t, err := e.projectTask(projectID, title)
	if err != nil {
		return err
	}
	if p.Done() {
		return StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	p.RecordDelay(t, days)
	if t.Assigned() {
		if emp := e.Registry.LookupEmployee(*t.AssigneeID); emp != nil {
			emp.RecordDelay()
		}
	}
	return nil
}

// FinalizeProject closes the project at the given end date, freezing its cost.
// Legal only when every task is done; irreversible.
func (e *Engine) FinalizeProject(projectID int, endDate string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return err
	}
	end, err := parseDate(endDate)
	if err != nil {
		return err
	}
	if end.Before(p.StartDate) {
		return ValidationError{Msg: "final end date cannot precede the project start date"}
	}
	if p.Done() {
		return StateConflictError{Msg: fmt.Sprintf("project %d is already finalized", projectID)}
	}
	if !p.Finalizable() {
		return StateConflictError{Msg: fmt.Sprintf("project %d still has unfinished tasks", projectID)}
	}
	p.Finalize(end, e.Registry.LookupEmployee)
	return nil
}

// --- lookups ---

func (e *Engine) project(id int) (*domain.Project, error) {
	p, err := e.Registry.Project(id)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", id, err)
	}
	return p, nil
}

func (e *Engine) employee(id int) (*domain.Employee, error) {
	emp, err := e.Registry.Employee(id)
	if err != nil {
		return nil, fmt.Errorf("employee %d: %w", id, err)
	}
	return emp, nil
}

func (e *Engine) projectTask(projectID int, title string) (*domain.Project, *domain.Task, error) {
	p, err := e.project(projectID)
	if err != nil {
		return nil, nil, err
	}
	t := p.Task(title)
	if t == nil {
		return nil, nil, fmt.Errorf("task %q in project %d: %w", title, projectID, repo.ErrNotFound)
	}
	return p, t, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ValidationError{Msg: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return d, nil
}
