package engine

import (
	"fmt"

	"worksite/internal/domain"
)

// Selection policies. Both scan the employee table in ascending id order, so
// ties and "any available" picks are deterministic: the lowest eligible id
// wins.

// pickFirstAvailable returns the available employee with the lowest id, or
// nil when nobody is free.
func (e *Engine) pickFirstAvailable() *domain.Employee {
	for _, emp := range e.Registry.Employees() {
		if emp.Available {
			return emp
		}
	}
	return nil
}

// pickLeastDelayed prefers the first available employee with no delay
// incidents; failing that, the one with the strictly smallest incident count
// (first minimum wins).
func (e *Engine) pickLeastDelayed() *domain.Employee {
	var best *domain.Employee
	for _, emp := range e.Registry.Employees() {
		if !emp.Available {
			continue
		}
		if emp.DelayCount == 0 {
			return emp
		}
		if best == nil || emp.DelayCount < best.DelayCount {
			best = emp
		}
	}
	return best
}

// AssignFirstAvailable binds the lowest-id available employee to the task and
// returns that employee's id.
func (e *Engine) AssignFirstAvailable(projectID int, title string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assign(projectID, title, e.pickFirstAvailable)
}

// AssignLeastDelayed binds the least-delayed available employee to the task
// and returns that employee's id.
func (e *Engine) AssignLeastDelayed(projectID int, title string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assign(projectID, title, e.pickLeastDelayed)
}

// assign is the shared policy body: validate, pick, bind, and promote the
// project to active on its first assignment. When the pool is empty the
// project is forced to pending and the operation fails without touching the
// task; that status flip is the one deliberate side effect of the failure.
func (e *Engine) assign(projectID int, title string, pick func() *domain.Employee) (int, error) {
	p, t, err := e.projectTask(projectID, title)
	if err != nil {
		return 0, err
	}
	if t.Assigned() {
		return 0, StateConflictError{Msg: fmt.Sprintf("task %q already has an assignee", title)}
	}
	if p.Done() {
		return 0, StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	emp := pick()
	if emp == nil {
		p.Status = domain.StatusPending
		return 0, ResourceExhaustedError{Msg: "no employees available to assign"}
	}
	emp.MarkUnavailable()
	p.Assign(t, emp.ID)
	if p.Status == domain.StatusPending {
		p.Status = domain.StatusActive
	}
	return emp.ID, nil
}

// ReassignEmployee swaps the task's current assignee for a caller-chosen
// employee, who must be available. The released employee returns to the pool
// with their delay history intact. Project status is not promoted.
func (e *Engine) ReassignEmployee(projectID, employeeID int, title string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, t, err := e.projectTask(projectID, title)
	if err != nil {
		return err
	}
	next, err := e.employee(employeeID)
	if err != nil {
		return err
	}
	if p.Done() {
		return StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	if !t.Assigned() {
		return StateConflictError{Msg: fmt.Sprintf("task %q has no assignee to replace", title)}
	}
	if !next.Available {
		return StateConflictError{Msg: fmt.Sprintf("employee %d is not available for reassignment", employeeID)}
	}

	e.release(t)
	next.MarkUnavailable()
	p.Assign(t, next.ID)
	return nil
}

// ReassignLeastDelayed releases the task's current assignee and rebinds using
// the least-delayed policy. The released employee rejoins the pool first, so
// they may well be picked again. Returns the chosen employee's id.
func (e *Engine) ReassignLeastDelayed(projectID int, title string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, t, err := e.projectTask(projectID, title)
	if err != nil {
		return 0, err
	}
	if p.Done() {
		return 0, StateConflictError{Msg: fmt.Sprintf("project %d is finalized", projectID)}
	}
	if !t.Assigned() {
		return 0, StateConflictError{Msg: fmt.Sprintf("task %q has no assignee to replace", title)}
	}

	e.release(t)
	emp := e.pickLeastDelayed()
	if emp == nil {
		p.Status = domain.StatusPending
		return 0, ResourceExhaustedError{Msg: "no employees available to assign"}
	}
	emp.MarkUnavailable()
	p.Assign(t, emp.ID)
	return emp.ID, nil
}

// release unbinds the task's assignee and marks them available again.
func (e *Engine) release(t *domain.Task) {
	prev := t.Unassign()
	if prev == nil {
		return
	}
	if emp := e.Registry.LookupEmployee(*prev); emp != nil {
		emp.MarkAvailable()
	}
}
