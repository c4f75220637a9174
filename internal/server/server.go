package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"worksite/internal/domain"
	"worksite/internal/engine"
	"worksite/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"no_employees_available"`
	Message string         `json:"message" example:"no employees available to assign"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Worksite API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Worksite API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerEmployees(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps the engine's typed failures onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	var re engine.ResourceExhaustedError
	if errors.As(err, &re) {
		return newAPIError(http.StatusConflict, "no_employees_available", err.Error(), nil)
	}
	var se engine.StateConflictError
	if errors.As(err, &se) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Registry status report",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Stats `json:"body"`
	}, error) {
		return &struct {
			Body engine.Stats `json:"body"`
		}{Body: e.Stats()}, nil
	})
}

func registerEmployees(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-hourly-employee",
		Method:        http.MethodPost,
		Path:          "/employees/hourly",
		Summary:       "Register hourly employee",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterHourlyEmployeeRequest `json:"body"`
	}) (*struct {
		Body IDResponse `json:"body"`
	}, error) {
		id, err := e.RegisterHourlyEmployee(input.Body.Name, input.Body.HourlyRate)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IDResponse `json:"body"`
		}{Body: IDResponse{ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-salaried-employee",
		Method:        http.MethodPost,
		Path:          "/employees/salaried",
		Summary:       "Register salaried employee",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterSalariedEmployeeRequest `json:"body"`
	}) (*struct {
		Body IDResponse `json:"body"`
	}, error) {
		id, err := e.RegisterSalariedEmployee(input.Body.Name, input.Body.DailyRate, domain.Category(input.Body.Category))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IDResponse `json:"body"`
		}{Body: IDResponse{ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employees",
		Method:      http.MethodGet,
		Path:        "/employees",
		Summary:     "List employees",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RefListResponse `json:"body"`
	}, error) {
		return &struct {
			Body RefListResponse `json:"body"`
		}{Body: RefListResponse{Items: e.Employees()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available-employees",
		Method:      http.MethodGet,
		Path:        "/employees/available",
		Summary:     "List employees free for assignment",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EmployeeListResponse `json:"body"`
	}, error) {
		return &struct {
			Body EmployeeListResponse `json:"body"`
		}{Body: EmployeeListResponse{Items: e.AvailableEmployees()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "employee-delays",
		Method:      http.MethodGet,
		Path:        "/employees/{id}/delays",
		Summary:     "Employee delay incidents",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body DelaysResponse `json:"body"`
	}, error) {
		count, err := e.EmployeeDelayCount(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		flagged, err := e.EmployeeHasDelays(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DelaysResponse `json:"body"`
		}{Body: DelaysResponse{DelayCount: count, HasDelays: flagged}}, nil
	})
}

func registerProjects(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Register project with its initial tasks",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body IDResponse `json:"body"`
	}, error) {
		id, err := e.RegisterProject(engine.ProjectCreateOptions{
			Titles:       input.Body.TaskTitles,
			Descriptions: input.Body.TaskDescriptions,
			Days:         input.Body.TaskDays,
			Address:      input.Body.Address,
			Client: domain.Client{
				Name:  input.Body.Client.Name,
				Email: input.Body.Client.Email,
				Phone: input.Body.Client.Phone,
			},
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IDResponse `json:"body"`
		}{Body: IDResponse{ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects by status",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,active,done" required:"true"`
	}) (*struct {
		Body RefListResponse `json:"body"`
	}, error) {
		switch domain.Status(input.Status) {
		case domain.StatusPending, domain.StatusActive, domain.StatusDone:
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown status %q", input.Status), nil)
		}
		return &struct {
			Body RefListResponse `json:"body"`
		}{Body: RefListResponse{Items: e.ProjectsByStatus(domain.Status(input.Status))}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Full project report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body engine.ProjectInfo `json:"body"`
	}, error) {
		info, err := e.ProjectReport(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ProjectInfo `json:"body"`
		}{Body: info}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-cost",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/cost",
		Summary:     "Project cost to date",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body CostResponse `json:"body"`
	}, error) {
		cost, err := e.ProjectCost(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CostResponse `json:"body"`
		}{Body: CostResponse{Cost: cost}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-address",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/address",
		Summary:     "Project address",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body AddressResponse `json:"body"`
	}, error) {
		addr, err := e.ProjectAddress(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AddressResponse `json:"body"`
		}{Body: AddressResponse{Address: addr}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-finalized",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/finalized",
		Summary:     "Whether the project is finalized",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body FinalizedResponse `json:"body"`
	}, error) {
		done, err := e.ProjectFinalized(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FinalizedResponse `json:"body"`
		}{Body: FinalizedResponse{Finalized: done}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-employees",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/employees",
		Summary:     "Everyone who ever worked on the project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body RefListResponse `json:"body"`
	}, error) {
		refs, err := e.ProjectEmployees(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RefListResponse `json:"body"`
		}{Body: RefListResponse{Items: refs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-unassigned-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tasks/unassigned",
		Summary:     "Tasks without an assignee",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		tasks, err := e.UnassignedTasks(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Items: tasks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalize-project",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/finalize",
		Summary:     "Finalize project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int                    `path:"id"`
		Body FinalizeProjectRequest `json:"body"`
	}) (*struct {
		Body CostResponse `json:"body"`
	}, error) {
		if err := e.FinalizeProject(input.ID, input.Body.EndDate); err != nil {
			return nil, handleError(err)
		}
		cost, err := e.ProjectCost(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CostResponse `json:"body"`
		}{Body: CostResponse{Cost: cost}}, nil
	})
}

func registerTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-task",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/tasks",
		Summary:       "Add task to project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   int            `path:"id"`
		Body AddTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if err := e.AddTask(input.ID, input.Body.Title, input.Body.Description, input.Body.Days); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: domain.Task{
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			EstimatedDays: input.Body.Days,
			Status:        domain.StatusPending,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/tasks/{title}/assign",
		Summary:     "Assign an employee to a task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    int           `path:"id"`
		Title string        `path:"title"`
		Body  AssignRequest `json:"body"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		var (
			empID int
			err   error
		)
		switch input.Body.Policy {
		case "", "first-available":
			empID, err = e.AssignFirstAvailable(input.ID, input.Title)
		case "least-delayed":
			empID, err = e.AssignLeastDelayed(input.ID, input.Title)
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown policy %q", input.Body.Policy), nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: AssignmentResponse{EmployeeID: empID, TaskTitle: input.Title}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reassign-task",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/tasks/{title}/reassign",
		Summary:     "Replace a task's assignee",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    int             `path:"id"`
		Title string          `path:"title"`
		Body  ReassignRequest `json:"body"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		if input.Body.EmployeeID != nil {
			if err := e.ReassignEmployee(input.ID, *input.Body.EmployeeID, input.Title); err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body AssignmentResponse `json:"body"`
			}{Body: AssignmentResponse{EmployeeID: *input.Body.EmployeeID, TaskTitle: input.Title}}, nil
		}
		empID, err := e.ReassignLeastDelayed(input.ID, input.Title)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: AssignmentResponse{EmployeeID: empID, TaskTitle: input.Title}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/tasks/{title}/complete",
		Summary:     "Complete a task and release its employee",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    int    `path:"id"`
		Title string `path:"title"`
	}) (*struct{}, error) {
		if err := e.CompleteTask(input.ID, input.Title); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-delay",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/tasks/{title}/delays",
		Summary:     "Record a delay on a task",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID    int                `path:"id"`
		Title string             `path:"title"`
		Body  RecordDelayRequest `json:"body"`
	}) (*struct{}, error) {
		if err := e.RecordDelay(input.ID, input.Title, input.Body.Days); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Worksite API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
