package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"worksite/internal/domain"
)

// Query and report operations. Reads take the same mutex as writes so a
// multi-client caller never observes a half-applied operation.

// ProjectCost returns the cost to date: the frozen final cost for a finalized
// project, a live recomputation otherwise.
func (e *Engine) ProjectCost(projectID int) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return 0, err
	}
	return p.CurrentCost(e.Registry.LookupEmployee), nil
}

func (e *Engine) ProjectAddress(projectID int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}
	return p.Address, nil
}

func (e *Engine) ProjectFinalized(projectID int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return false, err
	}
	return p.Done(), nil
}

func (e *Engine) EmployeeDelayCount(employeeID int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emp, err := e.employee(employeeID)
	if err != nil {
		return 0, err
	}
	return emp.DelayCount, nil
}

func (e *Engine) EmployeeHasDelays(employeeID int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	emp, err := e.employee(employeeID)
	if err != nil {
		return false, err
	}
	return emp.HasDelays(), nil
}

// UnassignedTasks returns copies of the project's assignee-less tasks in
// insertion order.
func (e *Engine) UnassignedTasks(projectID int) ([]domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	return copyTasks(p.UnassignedTasks()), nil
}

// ProjectTasks returns copies of every task in insertion order.
func (e *Engine) ProjectTasks(projectID int) ([]domain.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	return copyTasks(p.TasksInOrder()), nil
}

// AvailableEmployees returns copies of the employees currently free for
// assignment, ascending by id.
func (e *Engine) AvailableEmployees() []domain.Employee {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Employee
	for _, emp := range e.Registry.Employees() {
		if emp.Available {
			out = append(out, *emp)
		}
	}
	return out
}

// Employees lists every registered employee as (id, name) pairs.
func (e *Engine) Employees() []domain.Ref {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Ref
	for _, emp := range e.Registry.Employees() {
		out = append(out, domain.Ref{ID: emp.ID, Name: emp.Name})
	}
	return out
}

// ProjectEmployees lists everyone who ever worked on the project as
// (id, name) pairs, ascending by id.
func (e *Engine) ProjectEmployees(projectID int) ([]domain.Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(p.EmployeeHistory))
	for id := range p.EmployeeHistory {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.Ref, 0, len(ids))
	for _, id := range ids {
		name := ""
		if emp := e.Registry.LookupEmployee(id); emp != nil {
			name = emp.Name
		}
		out = append(out, domain.Ref{ID: id, Name: name})
	}
	return out, nil
}

// ProjectsByStatus lists projects in the given status as (id, client name)
// pairs, ascending by id. The client's name is the display string for all
// status filters.
func (e *Engine) ProjectsByStatus(status domain.Status) []domain.Ref {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Ref
	for _, p := range e.Registry.Projects() {
		if p.Status == status {
			out = append(out, domain.Ref{ID: p.ID, Name: p.Client.Name})
		}
	}
	return out
}

// ProjectInfo is the structured view handed to external surfaces.
type ProjectInfo struct {
	ID                     int           `json:"id"`
	Address                string        `json:"address"`
	Client                 domain.Client `json:"client"`
	Status                 domain.Status `json:"status"`
	StartDate              string        `json:"start_date"`
	PlannedEndDate         string        `json:"planned_end_date"`
	ActualEndDate          string        `json:"actual_end_date"`
	OriginalPlannedEndDate string        `json:"original_planned_end_date"`
	Tasks                  []domain.Task `json:"tasks"`
	Employees              []domain.Ref  `json:"employees"`
	Cost                   float64       `json:"cost"`
	Finalized              bool          `json:"finalized"`
	Summary                string        `json:"summary"`
}

// ProjectReport assembles the structured view plus the rendered multi-line
// summary for one project.
func (e *Engine) ProjectReport(projectID int) (ProjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return ProjectInfo{}, err
	}
	info := ProjectInfo{
		ID:                     p.ID,
		Address:                p.Address,
		Client:                 p.Client,
		Status:                 p.Status,
		StartDate:              formatDate(p.StartDate),
		PlannedEndDate:         formatDate(p.PlannedEndDate),
		ActualEndDate:          formatDate(p.ActualEndDate),
		OriginalPlannedEndDate: formatDate(p.OriginalPlannedEndDate),
		Tasks:                  copyTasks(p.TasksInOrder()),
		Cost:                   p.CurrentCost(e.Registry.LookupEmployee),
		Finalized:              p.Done(),
		Summary:                e.renderProject(p),
	}
	ids := make([]int, 0, len(p.EmployeeHistory))
	for id := range p.EmployeeHistory {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		name := ""
		if emp := e.Registry.LookupEmployee(id); emp != nil {
			name = emp.Name
		}
		info.Employees = append(info.Employees, domain.Ref{ID: id, Name: name})
	}
	return info, nil
}

// ProjectSummary renders the human-readable multi-line project dump.
func (e *Engine) ProjectSummary(projectID int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.project(projectID)
	if err != nil {
		return "", err
	}
	return e.renderProject(p), nil
}

func (e *Engine) renderProject(p *domain.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PROJECT #%d\n", p.ID)
	fmt.Fprintf(&sb, "ADDRESS: %s\n", p.Address)
	fmt.Fprintf(&sb, "STATUS: %s\n", p.Status)
	fmt.Fprintf(&sb, "CLIENT: %s\n\n", p.Client)

	sb.WriteString("--- DATES ---\n")
	fmt.Fprintf(&sb, "Start: %s\n", formatDate(p.StartDate))
	fmt.Fprintf(&sb, "Planned end: %s\n", formatDate(p.PlannedEndDate))
	fmt.Fprintf(&sb, "Actual end: %s\n\n", formatDate(p.ActualEndDate))

	sb.WriteString("--- TASKS ---\n")
	if len(p.TaskOrder) == 0 {
		sb.WriteString(" (no tasks)\n")
	}
	for _, t := range p.TasksInOrder() {
		fmt.Fprintf(&sb, "- %s (%s)\n", t.Title, t.Status)
		sb.WriteString("  Assignee: ")
		if t.AssigneeID != nil {
			if emp := e.Registry.LookupEmployee(*t.AssigneeID); emp != nil {
				fmt.Fprintf(&sb, "%s (id %d)\n", emp.Name, emp.ID)
			} else {
				fmt.Fprintf(&sb, "id %d\n", *t.AssigneeID)
			}
		} else {
			sb.WriteString("--- UNASSIGNED ---\n")
		}
	}

	sb.WriteString("\n--- TOTAL COST (to date) ---\n")
	fmt.Fprintf(&sb, "$ %.2f", p.CurrentCost(e.Registry.LookupEmployee))
	return sb.String()
}

// Stats reports registry totals plus the rendered one-shot status report.
type Stats struct {
	Projects           int    `json:"projects"`
	Employees          int    `json:"employees"`
	AvailableEmployees int    `json:"available_employees"`
	Report             string `json:"report"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	available := 0
	for _, emp := range e.Registry.Employees() {
		if emp.Available {
			available++
		}
	}
	st := Stats{
		Projects:           e.Registry.ProjectCount(),
		Employees:          e.Registry.EmployeeCount(),
		AvailableEmployees: available,
	}
	var sb strings.Builder
	sb.WriteString("===== WORKSITE STATUS =====\n")
	fmt.Fprintf(&sb, "Projects: %d\n", st.Projects)
	fmt.Fprintf(&sb, "Employees: %d\n", st.Employees)
	fmt.Fprintf(&sb, "Available employees: %d\n", st.AvailableEmployees)
	sb.WriteString("===========================\n")
	st.Report = sb.String()
	return st
}

// Summary is the one-shot registry report.
func (e *Engine) Summary() string {
	return e.Stats().Report
}

func copyTasks(in []*domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(in))
	for _, t := range in {
		out = append(out, *t)
	}
	return out
}

func formatDate(d time.Time) string { return d.Format(time.DateOnly) }
