package repo_test

import (
	"errors"
	"testing"

	"worksite/internal/domain"
	"worksite/internal/repo"
)

func TestSequencesAreIndependent(t *testing.T) {
	r := repo.NewRegistry()
	if id := r.InsertEmployee(&domain.Employee{Name: "Alice"}); id != 1 {
		t.Fatalf("expected first employee id 1, got %d", id)
	}
	if id := r.InsertEmployee(&domain.Employee{Name: "Bob"}); id != 2 {
		t.Fatalf("expected second employee id 2, got %d", id)
	}
	if id := r.NextProjectID(); id != 1 {
		t.Fatalf("project sequence must not share the employee counter, got %d", id)
	}

	other := repo.NewRegistry()
	if id := other.InsertEmployee(&domain.Employee{Name: "Carol"}); id != 1 {
		t.Fatalf("fresh registry should restart at 1, got %d", id)
	}
}

func TestLookupsAndOrdering(t *testing.T) {
	r := repo.NewRegistry()
	_ = r.InsertEmployee(&domain.Employee{Name: "Alice"})
	_ = r.InsertEmployee(&domain.Employee{Name: "Bob"})

	if _, err := r.Employee(3); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Project(1); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if e := r.LookupEmployee(3); e != nil {
		t.Fatalf("lookup should be nil on miss, got %+v", e)
	}

	all := r.Employees()
	if len(all) != 2 || all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("expected ascending order, got %+v", all)
	}
}
