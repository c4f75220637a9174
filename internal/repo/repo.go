package repo

import (
	"errors"
	"sort"

	"worksite/internal/domain"
)

// ErrNotFound is returned when a referenced id does not exist.
var ErrNotFound = errors.New("not found")

// Registry is the in-memory store of record: one map per entity plus the id
// counters. Counters are instance-scoped so separate registries (tests) never
// share sequences, and ids are never reused within a registry's lifetime.
type Registry struct {
	employees map[int]*domain.Employee
	projects  map[int]*domain.Project

	nextEmployeeID int
	nextProjectID  int
}

func NewRegistry() *Registry {
	return &Registry{
		employees:      map[int]*domain.Employee{},
		projects:       map[int]*domain.Project{},
		nextEmployeeID: 1,
		nextProjectID:  1,
	}
}

// InsertEmployee assigns the next employee id and stores the record.
func (r *Registry) InsertEmployee(e *domain.Employee) int {
	e.ID = r.nextEmployeeID
	r.nextEmployeeID++
	r.employees[e.ID] = e
	return e.ID
}

// NextProjectID consumes and returns the next project id.
func (r *Registry) NextProjectID() int {
	id := r.nextProjectID
	r.nextProjectID++
	return id
}

func (r *Registry) InsertProject(p *domain.Project) {
	r.projects[p.ID] = p
}

func (r *Registry) Employee(id int) (*domain.Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (r *Registry) Project(id int) (*domain.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// LookupEmployee is the nil-on-miss resolver the cost algorithm wants.
func (r *Registry) LookupEmployee(id int) *domain.Employee {
	return r.employees[id]
}

// Employees returns all employees in ascending id order.
func (r *Registry) Employees() []*domain.Employee {
	out := make([]*domain.Employee, 0, len(r.employees))
	for _, e := range r.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Projects returns all projects in ascending id order.
func (r *Registry) Projects() []*domain.Project {
	out := make([]*domain.Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) EmployeeCount() int { return len(r.employees) }

func (r *Registry) ProjectCount() int { return len(r.projects) }
