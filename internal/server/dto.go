package server

import (
	"worksite/internal/domain"
)

// Request payloads

type RegisterHourlyEmployeeRequest struct {
	Name       string  `json:"name"`
	HourlyRate float64 `json:"hourly_rate"`
}

type RegisterSalariedEmployeeRequest struct {
	Name      string  `json:"name"`
	DailyRate float64 `json:"daily_rate"`
	Category  string  `json:"category" enum:"INITIAL,TECHNICIAN,EXPERT"`
}

type ClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateProjectRequest struct {
	TaskTitles       []string      `json:"task_titles"`
	TaskDescriptions []string      `json:"task_descriptions"`
	TaskDays         []float64     `json:"task_days"`
	Address          string        `json:"address"`
	Client           ClientRequest `json:"client"`
	StartDate        string        `json:"start_date" format:"date"`
	EndDate          string        `json:"end_date" format:"date"`
}

type AddTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Days        float64 `json:"days"`
}

type AssignRequest struct {
	Policy string `json:"policy,omitempty" enum:"first-available,least-delayed"`
}

type ReassignRequest struct {
	// EmployeeID picks a specific replacement; when absent the least-delayed
	// policy chooses one.
	EmployeeID *int `json:"employee_id,omitempty"`
}

type RecordDelayRequest struct {
	Days float64 `json:"days"`
}

type FinalizeProjectRequest struct {
	EndDate string `json:"end_date" format:"date"`
}

// Response payloads

type IDResponse struct {
	ID int `json:"id"`
}

type AssignmentResponse struct {
	EmployeeID int    `json:"employee_id"`
	TaskTitle  string `json:"task_title"`
}

type CostResponse struct {
	Cost float64 `json:"cost"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

type FinalizedResponse struct {
	Finalized bool `json:"finalized"`
}

type DelaysResponse struct {
	DelayCount int  `json:"delay_count"`
	HasDelays  bool `json:"has_delays"`
}

type TaskListResponse struct {
	Items []domain.Task `json:"items"`
}

type EmployeeListResponse struct {
	Items []domain.Employee `json:"items"`
}

type RefListResponse struct {
	Items []domain.Ref `json:"items"`
}
