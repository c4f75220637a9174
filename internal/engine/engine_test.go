package engine_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"worksite/internal/domain"
	"worksite/internal/engine"
	"worksite/internal/repo"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(repo.NewRegistry())
}

func newProject(t *testing.T, e *engine.Engine, days ...float64) int {
	t.Helper()
	titles := make([]string, len(days))
	descs := make([]string, len(days))
	for i := range days {
		titles[i] = taskTitle(i)
	}
	id, err := e.RegisterProject(engine.ProjectCreateOptions{
		Titles:       titles,
		Descriptions: descs,
		Days:         days,
		Address:      "12 Rue des Lilas",
		Client:       domain.Client{Name: "Dupont"},
		StartDate:    "2026-01-05",
		EndDate:      "2026-01-20",
	})
	if err != nil {
		t.Fatalf("register project: %v", err)
	}
	return id
}

func taskTitle(i int) string {
	return string(rune('A'+i)) + "-task"
}

func projectStatus(t *testing.T, e *engine.Engine, id int) domain.Status {
	t.Helper()
	info, err := e.ProjectReport(id)
	if err != nil {
		t.Fatalf("project report: %v", err)
	}
	return info.Status
}

func TestRegisterEmployeesAssignsSequentialIDs(t *testing.T) {
	e := newTestEngine(t)
	id1, err := e.RegisterHourlyEmployee("Alice", 15)
	if err != nil {
		t.Fatalf("register hourly: %v", err)
	}
	id2, err := e.RegisterSalariedEmployee("Bob", 120, domain.CategoryExpert)
	if err != nil {
		t.Fatalf("register salaried: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", id1, id2)
	}
}

func TestRegisterEmployeeValidation(t *testing.T) {
	e := newTestEngine(t)
	var ve engine.ValidationError
	if _, err := e.RegisterHourlyEmployee("   ", 15); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := e.RegisterHourlyEmployee("Alice", 0); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for zero rate, got %v", err)
	}
	if _, err := e.RegisterSalariedEmployee("Bob", 100, "APPRENTICE"); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unknown category, got %v", err)
	}
	if _, err := e.RegisterHourlyEmployee("Alice", 15); err != nil {
		t.Fatalf("valid employee after failures: %v", err)
	}
}

func TestRegisterProjectValidation(t *testing.T) {
	e := newTestEngine(t)
	base := engine.ProjectCreateOptions{
		Titles:       []string{"Demolition"},
		Descriptions: []string{""},
		Days:         []float64{3},
		Address:      "4 Avenue Foch",
		Client:       domain.Client{Name: "Martin"},
		StartDate:    "2026-01-05",
		EndDate:      "2026-01-20",
	}
	var ve engine.ValidationError

	opts := base
	opts.Titles = nil
	opts.Descriptions = nil
	opts.Days = nil
	if _, err := e.RegisterProject(opts); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for empty task list, got %v", err)
	}

	opts = base
	opts.Days = []float64{3, 2}
	if _, err := e.RegisterProject(opts); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for mismatched arrays, got %v", err)
	}

	opts = base
	opts.EndDate = "2026-01-04"
	if _, err := e.RegisterProject(opts); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for end before start, got %v", err)
	}

	opts = base
	opts.Client = domain.Client{}
	if _, err := e.RegisterProject(opts); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for blank client, got %v", err)
	}

	opts = base
	opts.Titles = []string{"Demolition", "Demolition"}
	opts.Descriptions = []string{"", ""}
	opts.Days = []float64{3, 2}
	var sc engine.StateConflictError
	if _, err := e.RegisterProject(opts); !errors.As(err, &sc) {
		t.Fatalf("expected state conflict for duplicate titles, got %v", err)
	}

	// nothing was persisted by the failed attempts
	if got := len(e.ProjectsByStatus(domain.StatusPending)); got != 0 {
		t.Fatalf("expected no projects after failures, got %d", got)
	}
}

func TestHourlyCostIsExactHours(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2.5)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// 2.5 days * 8h * 10 = 200 base, no salaried staff bonus, +35%
	cost, err := e.ProjectCost(p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost-270) > 1e-9 {
		t.Fatalf("expected cost 270, got %v", cost)
	}
}

func TestSalariedCostWorkedExamples(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterSalariedEmployee("Bob", 100, domain.CategoryTechnician); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 3)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// ceil(3)*100 = 300, staff bonus 6, on-time bonus 35%
	cost, err := e.ProjectCost(p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost-413.10) > 1e-6 {
		t.Fatalf("expected 413.10, got %v", cost)
	}

	if err := e.RecordDelay(p, taskTitle(0), 1); err != nil {
		t.Fatalf("record delay: %v", err)
	}
	// ceil(4)*100 = 400, delayed: no staff bonus, 25% general bonus
	cost, err = e.ProjectCost(p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost-500) > 1e-6 {
		t.Fatalf("expected 500 after delay, got %v", cost)
	}
}

func TestDelayChargesOneIncidentPerEvent(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterSalariedEmployee("Bob", 100, domain.CategoryInitial); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 3)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}

	var sc engine.StateConflictError
	if err := e.RecordDelay(p, taskTitle(0), 0); !errors.As(err, &sc) {
		t.Fatalf("expected state conflict for zero delay, got %v", err)
	}
	if err := e.RecordDelay(p, taskTitle(0), -1); !errors.As(err, &sc) {
		t.Fatalf("expected state conflict for negative delay, got %v", err)
	}

	if err := e.RecordDelay(p, taskTitle(0), 0.5); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordDelay(p, taskTitle(0), 5); err != nil {
		t.Fatal(err)
	}
	count, err := e.EmployeeDelayCount(1)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 incidents regardless of day counts, got %d", count)
	}

	tasks, err := e.ProjectTasks(p)
	if err != nil {
		t.Fatal(err)
	}
	if tasks[0].DelayDays != 5.5 {
		t.Fatalf("expected accumulated delay 5.5, got %v", tasks[0].DelayDays)
	}
}

func TestDateBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2) // supplied end 2026-01-20, task pushes both ends to 01-22
	info, err := e.ProjectReport(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.OriginalPlannedEndDate != "2026-01-20" {
		t.Fatalf("original planned end should stay at the supplied date, got %s", info.OriginalPlannedEndDate)
	}
	if info.PlannedEndDate != "2026-01-22" || info.ActualEndDate != "2026-01-22" {
		t.Fatalf("expected both ends at 2026-01-22, got planned=%s actual=%s", info.PlannedEndDate, info.ActualEndDate)
	}

	if err := e.AddTask(p, "Painting", "", 2.5); err != nil {
		t.Fatalf("add task: %v", err)
	}
	info, _ = e.ProjectReport(p)
	if info.PlannedEndDate != "2026-01-25" || info.ActualEndDate != "2026-01-25" {
		t.Fatalf("expected ceil(2.5)=3 day shift, got planned=%s actual=%s", info.PlannedEndDate, info.ActualEndDate)
	}

	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordDelay(p, taskTitle(0), 1.5); err != nil {
		t.Fatal(err)
	}
	info, _ = e.ProjectReport(p)
	if info.PlannedEndDate != "2026-01-25" {
		t.Fatalf("delay must not move the planned end, got %s", info.PlannedEndDate)
	}
	if info.ActualEndDate != "2026-01-27" {
		t.Fatalf("expected actual end shifted by ceil(1.5)=2 days, got %s", info.ActualEndDate)
	}
}

func TestCompleteReleasesEmployeeKeepsAssignee(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if got := len(e.AvailableEmployees()); got != 0 {
		t.Fatalf("expected no available employees while assigned, got %d", got)
	}

	if err := e.CompleteTask(p, taskTitle(0)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := len(e.AvailableEmployees()); got != 1 {
		t.Fatalf("expected employee back in the pool, got %d", got)
	}
	tasks, _ := e.ProjectTasks(p)
	if tasks[0].AssigneeID == nil || *tasks[0].AssigneeID != 1 {
		t.Fatalf("completed task must keep its assignee for costing, got %+v", tasks[0].AssigneeID)
	}

	var sc engine.StateConflictError
	if err := e.CompleteTask(p, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict completing a done task, got %v", err)
	}
}

func TestCompleteUnassignedTaskConflicts(t *testing.T) {
	e := newTestEngine(t)
	p := newProject(t, e, 2)
	var sc engine.StateConflictError
	if err := e.CompleteTask(p, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict completing an unassigned task, got %v", err)
	}
}

func TestFinalizeGatesAndCaching(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterSalariedEmployee("Bob", 100, domain.CategoryExpert); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 3)

	var sc engine.StateConflictError
	if err := e.FinalizeProject(p, "2026-01-30"); !errors.As(err, &sc) {
		t.Fatalf("expected conflict finalizing with open tasks, got %v", err)
	}

	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if err := e.CompleteTask(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}

	var ve engine.ValidationError
	if err := e.FinalizeProject(p, "2026-01-01"); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for end before start, got %v", err)
	}

	if err := e.FinalizeProject(p, "2026-01-30"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got := projectStatus(t, e, p); got != domain.StatusDone {
		t.Fatalf("expected DONE, got %s", got)
	}
	cost, err := e.ProjectCost(p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cost-413.10) > 1e-6 {
		t.Fatalf("expected cached final cost 413.10, got %v", cost)
	}

	if err := e.FinalizeProject(p, "2026-01-31"); !errors.As(err, &sc) {
		t.Fatalf("expected conflict on second finalize, got %v", err)
	}
	if err := e.AddTask(p, "extra", "", 1); !errors.As(err, &sc) {
		t.Fatalf("expected conflict adding task to finalized project, got %v", err)
	}
	if err := e.RecordDelay(p, taskTitle(0), 1); !errors.As(err, &sc) {
		t.Fatalf("expected conflict recording delay on finalized project, got %v", err)
	}
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); !errors.As(err, &sc) {
		t.Fatalf("expected conflict assigning on finalized project, got %v", err)
	}
}

func TestFinalizeAfterOriginalPlannedEndCountsAsDelayed(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterSalariedEmployee("Bob", 100, domain.CategoryExpert); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 3)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	if err := e.CompleteTask(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	// finishing after the originally promised date counts as delayed even
	// though no task recorded a delay; the employee's own record is clean so
	// the staff bonus survives
	if err := e.FinalizeProject(p, "2026-02-15"); err != nil {
		t.Fatal(err)
	}
	cost, _ := e.ProjectCost(p)
	if math.Abs(cost-382.5) > 1e-6 {
		t.Fatalf("expected (300+6)*1.25=382.5, got %v", cost)
	}
}

func TestAddTaskErrors(t *testing.T) {
	e := newTestEngine(t)
	p := newProject(t, e, 2)
	var ve engine.ValidationError
	if err := e.AddTask(p, "  ", "", 1); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for blank title, got %v", err)
	}
	if err := e.AddTask(p, "Painting", "", 0); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for zero days, got %v", err)
	}
	var sc engine.StateConflictError
	if err := e.AddTask(p, taskTitle(0), "", 1); !errors.As(err, &sc) {
		t.Fatalf("expected conflict for duplicate title, got %v", err)
	}
	if err := e.AddTask(42, "Painting", "", 1); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNotFoundLookups(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ProjectCost(9); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for project, got %v", err)
	}
	if _, err := e.EmployeeDelayCount(9); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for employee, got %v", err)
	}
	p := newProject(t, e, 1)
	if _, err := e.AssignFirstAvailable(p, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for task, got %v", err)
	}
}

func TestListingsAndStatusLabels(t *testing.T) {
	e := newTestEngine(t)
	p := newProject(t, e, 2, 1)

	pending := e.ProjectsByStatus(domain.StatusPending)
	if len(pending) != 1 || pending[0].ID != p {
		t.Fatalf("expected the new project in pending, got %+v", pending)
	}
	if pending[0].Name != "Dupont" {
		t.Fatalf("listings label projects by client name, got %q", pending[0].Name)
	}

	tasks, err := e.UnassignedTasks(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != taskTitle(0) || tasks[1].Title != taskTitle(1) {
		t.Fatalf("expected tasks in insertion order, got %+v", tasks)
	}
}

func TestProjectSummaryRendering(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2, 1)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}

	out, err := e.ProjectSummary(p)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"PROJECT #1",
		"ADDRESS: 12 Rue des Lilas",
		"CLIENT: Dupont (email: , tel: )",
		"--- DATES ---",
		"Start: 2026-01-05",
		"- A-task (active)",
		"Assignee: Alice (id 1)",
		"- B-task (pending)",
		"--- UNASSIGNED ---",
		"--- TOTAL COST (to date) ---",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	// hourly: 2 days * 8h * 10 = 160, +35% = 216 formatted to 2 decimals
	if !strings.HasSuffix(out, "$ 216.00") {
		t.Fatalf("expected trailing formatted cost, got:\n%s", out)
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterHourlyEmployee("Alice", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RegisterSalariedEmployee("Bob", 90, domain.CategoryInitial); err != nil {
		t.Fatal(err)
	}
	p := newProject(t, e, 2)
	if _, err := e.AssignFirstAvailable(p, taskTitle(0)); err != nil {
		t.Fatal(err)
	}
	st := e.Stats()
	if st.Projects != 1 || st.Employees != 2 || st.AvailableEmployees != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.Report == "" {
		t.Fatal("expected rendered report")
	}
}
