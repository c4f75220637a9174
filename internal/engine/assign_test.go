package engine_test

import (
	"errors"
	"testing"

	"worksite/internal/domain"
	"worksite/internal/engine"
)

func TestAssignFirstAvailablePicksLowestID(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	p := newProject(t, e, 2, 2)

	id, err := e.AssignFirstAvailable(p, taskTitle(0))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected employee 1, got %d", id)
	}
	id, err = e.AssignFirstAvailable(p, taskTitle(1))
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("expected next lowest id 2, got %d", id)
	}
}

func TestAssignActivatesProject(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2)
	if got := projectStatus(t, e, p); got != domain.StatusPending {
		t.Fatalf("new project should be pending, got %s", got)
	}
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if got := projectStatus(t, e, p); got != domain.StatusActive {
		t.Fatalf("first assignment should activate, got %s", got)
	}
}

func TestAssignAlreadyAssignedConflicts(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	p := newProject(t, e, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	var sc engine.StateConflictError
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict reassigning via assign, got %v", err)
	}
}

func TestAssignExhaustionForcesPending(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if got := projectStatus(t, e, p); got != domain.StatusActive {
		t.Fatalf("expected active, got %s", got)
	}

	var re engine.ResourceExhaustedError
	if _, err := e.AssignFirstAvailable(p, taskTitle(1)); !errors.As(err, &re) {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
	// an exhausted pool knocks the project back to pending even mid-flight
	if got := projectStatus(t, e, p); got != domain.StatusPending {
		t.Fatalf("expected pending after exhaustion, got %s", got)
	}
}

func TestAssignLeastDelayedPrefersCleanRecord(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	warmup := newProject(t, e, 1)
	if _, err := e.AssignFirstAvailable(warmup, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordDelay(warmup, taskTitle(0), 2); err != nil {
		t.Fatal(err)
	}
	if err := e.CompleteTask(warmup, taskTitle(0)); err != nil {
		t.Fatal(err)
	}

	p := newProject(t, e, 2)
	id, err := e.AssignLeastDelayed(p, taskTitle(0))
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("expected delay-free employee 2, got %d", id)
	}
}

func TestAssignLeastDelayedTieBreaksOnLowestID(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	// charge one incident to each
	for i := 0; i < 2; i++ {
		warmup := newProject(t, e, 1)
		id, err := e.AssignFirstAvailable(warmup, taskTitle(0))
		if err != nil {
			t.Fatal(err)
		}
		if id != i+1 {
			t.Fatalf("warmup expected employee %d, got %d", i+1, id)
		}
		if err := e.RecordDelay(warmup, taskTitle(0), 1); err != nil {
			t.Fatal(err)
		}
		// keep the first employee busy so the second warmup picks the other
		if i == 1 {
			if err := e.CompleteTask(warmup, taskTitle(0)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := e.CompleteTask(1, taskTitle(0)); err != nil {
		t.Fatal(err)
	}

	p := newProject(t, e, 2)
	id, err := e.AssignLeastDelayed(p, taskTitle(0))
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("equal delay counts should fall back to lowest id, got %d", id)
	}
}

func TestReassignToUnavailableLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	p := newProject(t, e, 2, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AssignFirstAvailable(p, taskTitle(1)); err != nil {
		t.Fatal(err)
	}

	var sc engine.StateConflictError
	if err := e.ReassignEmployee(p, 2, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict for busy replacement, got %v", err)
	}
	tasks, _ := e.ProjectTasks(p)
	if *tasks[0].AssigneeID != 1 || *tasks[1].AssigneeID != 2 {
		t.Fatalf("failed reassignment must not change assignments, got %+v", tasks)
	}
	if got := len(e.AvailableEmployees()); got != 0 {
		t.Fatalf("failed reassignment must not release anyone, got %d available", got)
	}
}

func TestReassignReleasesPreviousAssignee(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"Alice", "Bob"} {
		if _, err := e.RegisterHourlyEmployee(name, 10); err != nil {
			t.Fatal(err)
		}
	}
	p := newProject(t, e, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if err := e.ReassignEmployee(p, 2, taskTitle(0)); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	tasks, _ := e.ProjectTasks(p)
	if *tasks[0].AssigneeID != 2 {
		t.Fatalf("expected employee 2 on the task, got %d", *tasks[0].AssigneeID)
	}
	avail := e.AvailableEmployees()
	if len(avail) != 1 || avail[0].ID != 1 {
		t.Fatalf("expected employee 1 released, got %+v", avail)
	}

	refs, err := e.ProjectEmployees(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("history should record both employees, got %+v", refs)
	}
}

func TestReassignUnassignedTaskConflicts(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2)
	var sc engine.StateConflictError
	if err := e.ReassignEmployee(p, 1, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict reassigning an unassigned task, got %v", err)
	}
	if _, err := e.ReassignLeastDelayed(p, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict for least-delayed on unassigned task, got %v", err)
	}
}

func TestReassignLeastDelayedCanRepickSameEmployee(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	// the current assignee returns to the pool first, so the sole employee
	// is a valid pick again
	id, err := e.ReassignLeastDelayed(p, taskTitle(0))
	if err != nil {
		t.Fatalf("reassign least-delayed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected employee 1 re-picked, got %d", id)
	}
	if got := projectStatus(t, e, p); got != domain.StatusActive {
		t.Fatalf("reassignment must not touch project status, got %s", got)
	}
	if got := len(e.AvailableEmployees()); got != 0 {
		t.Fatalf("employee should be bound again, got %d available", got)
	}
	refs, err := e.ProjectEmployees(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ID != 1 {
		t.Fatalf("round trip must not grow the history set, got %+v", refs)
	}
	count, err := e.EmployeeDelayCount(1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("round trip must not charge delay incidents, got %d", count)
	}
}
