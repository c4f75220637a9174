package domain

import (
	"fmt"
	"math"
	"time"
)

// Status is shared by projects and tasks.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusDone    Status = "done"
)

type EmployeeKind string

const (
	EmployeeHourly   EmployeeKind = "hourly"
	EmployeeSalaried EmployeeKind = "salaried"
)

// Category grades a salaried employee.
type Category string

const (
	CategoryInitial    Category = "INITIAL"
	CategoryTechnician Category = "TECHNICIAN"
	CategoryExpert     Category = "EXPERT"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryInitial, CategoryTechnician, CategoryExpert:
		return true
	}
	return false
}

// Employee is a closed tagged variant: which rate field is meaningful depends
// on Kind. Identity is the numeric id; two employees are the same employee iff
// their ids match.
type Employee struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	Kind       EmployeeKind `json:"kind"`
	HourlyRate float64      `json:"hourly_rate,omitempty"`
	DailyRate  float64      `json:"daily_rate,omitempty"`
	Category   Category     `json:"category,omitempty"`
	Available  bool         `json:"available"`
	DelayCount int          `json:"delay_count"`
}

// Cost prices daysWorked under the variant's rule: hourly pays per 8-hour
// day-equivalent with no rounding, salaried pays a flat daily rate with
// fractional days rounded up.
func (e *Employee) Cost(daysWorked float64) float64 {
	switch e.Kind {
	case EmployeeHourly:
		return daysWorked * 8 * e.HourlyRate
	case EmployeeSalaried:
		return math.Ceil(daysWorked) * e.DailyRate
	}
	return 0
}

// RecordDelay counts a delay incident. One incident per delay event, no
// matter how many days the delay spans.
func (e *Employee) RecordDelay() { e.DelayCount++ }

func (e *Employee) HasDelays() bool { return e.DelayCount > 0 }

func (e *Employee) MarkAvailable() { e.Available = true }

func (e *Employee) MarkUnavailable() { e.Available = false }

// Client is a plain value record; it has no lifecycle of its own.
type Client struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c Client) String() string {
	return fmt.Sprintf("%s (email: %s, tel: %s)", c.Name, c.Email, c.Phone)
}

// Task belongs to one project and is keyed by title within it. The assignee is
// a non-owning reference into the employee registry.
type Task struct {
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	EstimatedDays float64 `json:"estimated_days"`
	DelayDays     float64 `json:"delay_days"`
	AssigneeID    *int    `json:"assignee_id,omitempty"`
	Status        Status  `json:"status"`
}

func NewTask(title, description string, estimatedDays float64) *Task {
	return &Task{
		Title:         title,
		Description:   description,
		EstimatedDays: estimatedDays,
		Status:        StatusPending,
	}
}

// TotalDays is the estimate plus every delay day recorded so far.
func (t *Task) TotalDays() float64 { return t.EstimatedDays + t.DelayDays }

func (t *Task) Assigned() bool { return t.AssigneeID != nil }

func (t *Task) Assign(employeeID int) {
	id := employeeID
	t.AssigneeID = &id
	t.Status = StatusActive
}

// Unassign reverts the task to pending and returns the previous assignee id.
func (t *Task) Unassign() *int {
	prev := t.AssigneeID
	t.AssigneeID = nil
	t.Status = StatusPending
	return prev
}

func (t *Task) Complete() { t.Status = StatusDone }

func (t *Task) AddDelay(days float64) { t.DelayDays += days }

// Cost charges the task's total days to its assignee; an unassigned task
// costs nothing. lookup resolves an employee id against the registry and may
// return nil.
func (t *Task) Cost(lookup func(int) *Employee) float64 {
	if t.AssigneeID == nil {
		return 0
	}
	e := lookup(*t.AssigneeID)
	if e == nil {
		return 0
	}
	return e.Cost(t.TotalDays())
}

// Project owns its tasks (insertion-ordered, keyed by title) and remembers
// every employee ever assigned to one of them.
type Project struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
	Client  Client `json:"client"`
	Status  Status `json:"status"`

	StartDate              time.Time `json:"start_date"`
	PlannedEndDate         time.Time `json:"planned_end_date"`
	ActualEndDate          time.Time `json:"actual_end_date"`
	OriginalPlannedEndDate time.Time `json:"original_planned_end_date"`

	Tasks     map[string]*Task `json:"-"`
	TaskOrder []string         `json:"-"`

	EmployeeHistory map[int]struct{} `json:"-"`

	// FinalCost is meaningful only once Status is done.
	FinalCost float64 `json:"final_cost,omitempty"`
}

func NewProject(id int, address string, client Client, start, end time.Time) *Project {
	return &Project{
		ID:                     id,
		Address:                address,
		Client:                 client,
		Status:                 StatusPending,
		StartDate:              start,
		PlannedEndDate:         end,
		ActualEndDate:          end,
		OriginalPlannedEndDate: end,
		Tasks:                  map[string]*Task{},
		EmployeeHistory:        map[int]struct{}{},
	}
}

func (p *Project) Done() bool { return p.Status == StatusDone }

func (p *Project) Task(title string) *Task { return p.Tasks[title] }

// AttachTask inserts the task and pushes both end dates out by the task's
// estimate, rounded up to whole days. The original planned end never moves.
func (p *Project) AttachTask(t *Task) {
	p.Tasks[t.Title] = t
	p.TaskOrder = append(p.TaskOrder, t.Title)
	days := int(math.Ceil(t.EstimatedDays))
	p.PlannedEndDate = p.PlannedEndDate.AddDate(0, 0, days)
	p.ActualEndDate = p.ActualEndDate.AddDate(0, 0, days)
}

// Assign binds the employee to the task and records them in the history set.
func (p *Project) Assign(t *Task, employeeID int) {
	t.Assign(employeeID)
	p.EmployeeHistory[employeeID] = struct{}{}
}

// RecordDelay adds the delay days to the task and pushes the actual end date
// out by the rounded-up amount. The planned end date is never retro-adjusted.
func (p *Project) RecordDelay(t *Task, days float64) {
	t.AddDelay(days)
	p.ActualEndDate = p.ActualEndDate.AddDate(0, 0, int(math.Ceil(days)))
}

// TasksInOrder returns the tasks in insertion order.
func (p *Project) TasksInOrder() []*Task {
	out := make([]*Task, 0, len(p.TaskOrder))
	for _, title := range p.TaskOrder {
		out = append(out, p.Tasks[title])
	}
	return out
}

// UnassignedTasks returns, in insertion order, the tasks with no assignee.
func (p *Project) UnassignedTasks() []*Task {
	var out []*Task
	for _, title := range p.TaskOrder {
		if t := p.Tasks[title]; !t.Assigned() {
			out = append(out, t)
		}
	}
	return out
}

// Finalizable reports whether the project can be closed: it has at least one
// task and every task is done.
func (p *Project) Finalizable() bool {
	if len(p.Tasks) == 0 {
		return false
	}
	for _, t := range p.Tasks {
		if t.Status != StatusDone {
			return false
		}
	}
	return true
}

// TotalCost runs the full cost algorithm:
//
//	base  = sum of task costs (unassigned tasks contribute 0)
//	bonus = 2% of each delay-free salaried employee's own task costs here
//	rate  = 25% if any lateness occurred anywhere, otherwise 35%
//	total = (base + bonus) * (1 + rate)
//
// Lateness means a task with delay days, or a finalized project whose actual
// end ran past the original planned end.
func (p *Project) TotalCost(lookup func(int) *Employee) float64 {
	base := 0.0
	delayed := false
	for _, title := range p.TaskOrder {
		t := p.Tasks[title]
		base += t.Cost(lookup)
		if t.DelayDays > 0 {
			delayed = true
		}
	}
	if p.Done() && p.ActualEndDate.After(p.OriginalPlannedEndDate) {
		delayed = true
	}

	staffBonus := 0.0
	for id := range p.EmployeeHistory {
		e := lookup(id)
		if e == nil || e.Kind != EmployeeSalaried || e.HasDelays() {
			continue
		}
		own := 0.0
		for _, title := range p.TaskOrder {
			t := p.Tasks[title]
			if t.AssigneeID != nil && *t.AssigneeID == id {
				own += t.Cost(lookup)
			}
		}
		staffBonus += own * 0.02
	}

	intermediate := base + staffBonus
	rate := 0.35
	if delayed {
		rate = 0.25
	}
	return intermediate * (1 + rate)
}

// CurrentCost returns the frozen final cost once done, otherwise a live
// recomputation.
func (p *Project) CurrentCost(lookup func(int) *Employee) float64 {
	if p.Done() {
		return p.FinalCost
	}
	return p.TotalCost(lookup)
}

// Finalize is the one-way transition to done: it fixes the actual end date
// and freezes the total cost. Callers validate the date and the all-tasks-done
// gate first.
func (p *Project) Finalize(end time.Time, lookup func(int) *Employee) {
	p.Status = StatusDone
	p.ActualEndDate = end
	p.FinalCost = p.TotalCost(lookup)
}

// Ref is an (id, label) pair used by listing queries.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
