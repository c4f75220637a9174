package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"worksite/internal/config"
	"worksite/internal/engine"
	"worksite/internal/repo"
	"worksite/internal/server"
	worksitesdk "worksite/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "ws",
	Short: "Worksite CLI",
	Long: `Worksite manages a renovation company's employees, projects, and tasks.
Core concepts:
- Employees: hourly (8 billable hours per estimated day) or salaried (billed
  per started day, with a professional category). An employee works one task
  at a time and returns to the pool when it completes.
- Projects: an address, a client, dated PENDING -> ACTIVE -> DONE lifecycle,
  and a set of titled tasks. Adding a task pushes the planned end date out.
- Delays: recorded per task, they push the actual end date out and charge one
  incident to the assigned employee.
- Cost: task costs plus a 2% bonus for delay-free salaried staff, then a
  general bonus of 35% (on time) or 25% (delayed).
Most commands talk to a running 'ws serve' instance over HTTP.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WORKSITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("addr", "http://127.0.0.1:8080", "API base URL")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().String("token", "", "bearer token for authentication")
	rootCmd.PersistentFlags().StringP("config", "c", "worksite.yml", "config file (serve, auth token)")
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(authCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			e := engine.New(repo.NewRegistry())
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:      cfg.Auth.JWTSecret,
					APIKeys:        cfg.Auth.APIKeys,
					AllowAnonymous: cfg.Auth.AllowAnonymous,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Worksite API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registry status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(st)
			}
			fmt.Print(st.Report)
			return nil
		},
	}
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Manage employees"}
	emp.AddCommand(employeeRegisterHourlyCmd())
	emp.AddCommand(employeeRegisterSalariedCmd())
	emp.AddCommand(employeeListCmd())
	emp.AddCommand(employeeAvailableCmd())
	emp.AddCommand(employeeDelaysCmd())
	return emp
}

func employeeRegisterHourlyCmd() *cobra.Command {
	var name string
	var rate float64
	cmd := &cobra.Command{
		Use:   "register-hourly",
		Short: "Register an hourly employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			id, err := c.RegisterHourlyEmployee(cmd.Context(), name, rate)
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"id": id})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "employee name")
	cmd.Flags().Float64Var(&rate, "rate", 0, "hourly rate")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func employeeRegisterSalariedCmd() *cobra.Command {
	var name, category string
	var rate float64
	cmd := &cobra.Command{
		Use:   "register-salaried",
		Short: "Register a salaried employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			id, err := c.RegisterSalariedEmployee(cmd.Context(), name, rate, category)
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"id": id})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "employee name")
	cmd.Flags().Float64Var(&rate, "rate", 0, "daily rate")
	cmd.Flags().StringVar(&category, "category", "", "INITIAL, TECHNICIAN, or EXPERT")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func employeeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			items, err := c.Employees(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name"})
			for _, r := range items {
				tw.AppendRow(table.Row{r.ID, r.Name})
			}
			tw.Render()
			return nil
		},
	}
}

func employeeAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List employees free for assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			items, err := c.AvailableEmployees(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Kind", "Category", "Delays"})
			for _, e := range items {
				tw.AppendRow(table.Row{e.ID, e.Name, e.Kind, e.Category, e.DelayCount})
			}
			tw.Render()
			return nil
		},
	}
}

func employeeDelaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delays <employee-id>",
		Short: "Show an employee's delay incidents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			d, err := c.EmployeeDelays(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSONOrTable(d)
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectCostCmd())
	prj.AddCommand(projectEmployeesCmd())
	prj.AddCommand(projectFinalizeCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var titles, descriptions []string
	var days []float64
	var address, clientName, clientEmail, clientPhone, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a project with its initial tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(descriptions) == 0 {
				descriptions = make([]string, len(titles))
			}
			c := newClient()
			id, err := c.CreateProject(cmd.Context(), worksitesdk.ProjectSpec{
				TaskTitles:       titles,
				TaskDescriptions: descriptions,
				TaskDays:         days,
				Address:          address,
				Client: worksitesdk.RefClient{
					Name:  clientName,
					Email: clientEmail,
					Phone: clientPhone,
				},
				StartDate: start,
				EndDate:   end,
			})
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"id": id})
		},
	}
	cmd.Flags().StringArrayVar(&titles, "task-title", nil, "task title (repeatable)")
	cmd.Flags().StringArrayVar(&descriptions, "task-desc", nil, "task description (repeatable, parallel to --task-title)")
	cmd.Flags().Float64SliceVar(&days, "task-days", nil, "task estimated days (repeatable, parallel to --task-title)")
	cmd.Flags().StringVar(&address, "address", "", "worksite address")
	cmd.Flags().StringVar(&clientName, "client-name", "", "client name")
	cmd.Flags().StringVar(&clientEmail, "client-email", "", "client email")
	cmd.Flags().StringVar(&clientPhone, "client-phone", "", "client phone")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "planned end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("task-title")
	_ = cmd.MarkFlagRequired("task-days")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("client-name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func projectListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			items, err := c.ProjectsByStatus(cmd.Context(), status)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Client"})
			for _, r := range items {
				tw.AppendRow(table.Row{r.ID, r.Name})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "pending, active, or done")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show the full project report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			p, err := c.Project(cmd.Context(), id)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(p)
			}
			fmt.Println(p.Summary)
			return nil
		},
	}
	return cmd
}

func projectCostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost <project-id>",
		Short: "Show the project's cost to date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			cost, err := c.ProjectCost(cmd.Context(), id)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"cost": cost})
			}
			fmt.Printf("$ %.2f\n", cost)
			return nil
		},
	}
	return cmd
}

func projectEmployeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employees <project-id>",
		Short: "List everyone who ever worked on the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			items, err := c.ProjectEmployees(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSONOrTable(items)
		},
	}
	return cmd
}

func projectFinalizeCmd() *cobra.Command {
	var end string
	cmd := &cobra.Command{
		Use:   "finalize <project-id>",
		Short: "Finalize a project and show its final cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			cost, err := c.FinalizeProject(cmd.Context(), id, end)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"cost": cost})
			}
			fmt.Printf("$ %.2f\n", cost)
			return nil
		},
	}
	cmd.Flags().StringVar(&end, "end", "", "actual end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage project tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListUnassignedCmd())
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskReassignCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskDelayCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var title, desc string
	var days float64
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			t, err := c.AddTask(cmd.Context(), id, title, desc, days)
			if err != nil {
				return err
			}
			return printJSONOrTable(t)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "task description")
	cmd.Flags().Float64Var(&days, "days", 0, "estimated days")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func taskListUnassignedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassigned <project-id>",
		Short: "List a project's unassigned tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			tasks, err := c.UnassignedTasks(cmd.Context(), id)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tasks)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Title", "Days", "Status"})
			for _, t := range tasks {
				tw.AppendRow(table.Row{t.Title, t.EstimatedDays, t.Status})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func taskAssignCmd() *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "assign <project-id> <title>",
		Short: "Assign an employee to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			a, err := c.AssignTask(cmd.Context(), id, args[1], policy)
			if err != nil {
				return err
			}
			return printJSONOrTable(a)
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "first-available", "first-available or least-delayed")
	return cmd
}

func taskReassignCmd() *cobra.Command {
	var employeeID int
	cmd := &cobra.Command{
		Use:   "reassign <project-id> <title>",
		Short: "Replace a task's assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			var a worksitesdk.Assignment
			if cmd.Flags().Changed("employee") {
				a, err = c.ReassignTask(cmd.Context(), id, employeeID, args[1])
			} else {
				a, err = c.ReassignLeastDelayed(cmd.Context(), id, args[1])
			}
			if err != nil {
				return err
			}
			return printJSONOrTable(a)
		},
	}
	cmd.Flags().IntVar(&employeeID, "employee", 0, "replacement employee id (defaults to least-delayed)")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <project-id> <title>",
		Short: "Complete a task and release its employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			if err := c.CompleteTask(cmd.Context(), id, args[1]); err != nil {
				return err
			}
			fmt.Println("done")
			return nil
		},
	}
	return cmd
}

func taskDelayCmd() *cobra.Command {
	var days float64
	cmd := &cobra.Command{
		Use:   "delay <project-id> <title>",
		Short: "Record a delay on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			if err := c.RecordDelay(cmd.Context(), id, args[1], days); err != nil {
				return err
			}
			fmt.Println("recorded")
			return nil
		},
	}
	cmd.Flags().Float64Var(&days, "days", 0, "delay in days")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func authCmd() *cobra.Command {
	auth := &cobra.Command{Use: "auth", Short: "Credential helpers"}
	auth.AddCommand(authKeygenCmd())
	auth.AddCommand(authTokenCmd())
	return auth
}

func authKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an API key for the auth.api_keys allowlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("wsk_" + uuid.NewString())
			return nil
		},
	}
}

func authTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("WORKSITE_JWT_SECRET")
			if secret == "" {
				cfg, err := config.Load(viper.GetString("config"))
				if err != nil {
					return err
				}
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("no JWT secret: set WORKSITE_JWT_SECRET or auth.jwt_secret in the config file")
			}
			now := time.Now()
			claims := jwt.RegisteredClaims{
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// --- helpers ---

func newClient() *worksitesdk.Client {
	c := worksitesdk.New(viper.GetString("addr"))
	c.APIKey = viper.GetString("api-key")
	c.BearerToken = viper.GetString("token")
	return c
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
