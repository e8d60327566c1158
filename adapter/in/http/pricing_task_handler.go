package http

import (
	"strconv"
	"time"

	"pricing_server/core/domain"
	in "pricing_server/core/port/in"

	"github.com/gofiber/fiber/v2"
)

// TaskHandler handles HTTP requests for pricing task operations
type TaskHandler struct {
	service in.TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(service in.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// Register registers task routes
func (h *TaskHandler) Register(router fiber.Router) {
	tasks := router.Group("/tasks")

	// CRUD
	tasks.Get("/", h.List)
	tasks.Post("/", h.Create)
	tasks.Get("/:id", h.Get)
	tasks.Get("/:id/domains", h.ListDomains)
	tasks.Delete("/:id", h.Delete)

	// Lifecycle operations
	tasks.Post("/:id/start", h.Start)
	tasks.Post("/:id/pause", h.Pause)
	tasks.Post("/:id/cancel", h.Cancel)
	tasks.Post("/:id/retry", h.Retry)
}

// =============================================================================
// Task CRUD
// =============================================================================

// CreateTaskRequest is the payload for creating a pricing task.
type CreateTaskRequest struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
}

// Create creates a new pricing task
// @Summary Create a pricing task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} TaskResponse
// @Router /api/v1/tasks [post]
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}

	task, err := h.service.CreateTask(c.Context(), req.Name, req.Domains)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return c.Status(201).JSON(toTaskResponse(task))
}

// List lists pricing tasks
// @Summary List pricing tasks
// @Tags Tasks
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {array} TaskResponse
// @Router /api/v1/tasks [get]
func (h *TaskHandler) List(c *fiber.Ctx) error {
	var status *domain.TaskStatus
	if s := c.Query("status"); s != "" {
		st := domain.TaskStatus(s)
		status = &st
	}

	tasks, err := h.service.ListTasks(c.Context(), status)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"tasks": toTaskResponses(tasks),
		"total": len(tasks),
	})
}

// Get retrieves a pricing task by ID
// @Summary Get a pricing task
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} TaskResponse
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	task, err := h.service.GetTask(c.Context(), id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(toTaskResponse(task))
}

// ListDomains lists the domain rows of a task
// @Summary List task domains
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {array} TaskDomainResponse
// @Router /api/v1/tasks/{id}/domains [get]
func (h *TaskHandler) ListDomains(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	domains, err := h.service.ListTaskDomains(c.Context(), id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"domains": toTaskDomainResponses(domains),
		"total":   len(domains),
	})
}

// Delete deletes a pricing task
// @Summary Delete a pricing task
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 204
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	if err := h.service.DeleteTask(c.Context(), id); err != nil {
		return AppErrorResponse(c, err)
	}

	return c.SendStatus(204)
}

// =============================================================================
// Lifecycle Operations
// =============================================================================

// Start starts or queues a pricing task
// @Summary Start a pricing task
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 200
// @Router /api/v1/tasks/{id}/start [post]
func (h *TaskHandler) Start(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	if err := h.service.StartTask(c.Context(), id); err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "task started"})
}

// Pause pauses a running or queued pricing task
// @Summary Pause a pricing task
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 200
// @Router /api/v1/tasks/{id}/pause [post]
func (h *TaskHandler) Pause(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	if err := h.service.PauseTask(c.Context(), id); err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "task pause requested"})
}

// Cancel cancels a pricing task
// @Summary Cancel a pricing task
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 200
// @Router /api/v1/tasks/{id}/cancel [post]
func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	if err := h.service.CancelTask(c.Context(), id); err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "task cancel requested"})
}

// Retry reopens failed domains of a finished task and restarts it
// @Summary Retry failed domains
// @Tags Tasks
// @Param id path int true "Task ID"
// @Success 200
// @Router /api/v1/tasks/{id}/retry [post]
func (h *TaskHandler) Retry(c *fiber.Ctx) error {
	id, err := parseTaskID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid task ID")
	}

	if err := h.service.RetryFailed(c.Context(), id); err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "retry started"})
}

func parseTaskID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// =============================================================================
// Response Types
// =============================================================================

// TaskResponse represents the HTTP response for a pricing task
type TaskResponse struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	TotalDomains      int     `json:"total_domains"`
	CompletedDomains  int     `json:"completed_domains"`
	SuccessfulDomains int     `json:"successful_domains"`
	NoResultDomains   int     `json:"no_result_domains"`
	FailedDomains     int     `json:"failed_domains"`
	Progress          float64 `json:"progress"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	StartedAt         *string `json:"started_at,omitempty"`
	FinishedAt        *string `json:"finished_at,omitempty"`
}

// TaskDomainResponse represents the HTTP response for a task domain row
type TaskDomainResponse struct {
	ID                 int64    `json:"id"`
	TaskID             int64    `json:"task_id"`
	Domain             string   `json:"domain"`
	Status             string   `json:"status"`
	GuestPostPrice     *float64 `json:"guest_post_price,omitempty"`
	LinkInsertionPrice *float64 `json:"link_insertion_price,omitempty"`
	SponsoredPostPrice *float64 `json:"sponsored_post_price,omitempty"`
	HomepageLinkPrice  *float64 `json:"homepage_link_price,omitempty"`
	CasinoPrice        *float64 `json:"casino_price,omitempty"`
	CasinoAccepted     string   `json:"casino_accepted,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	SourceContact      string   `json:"source_contact,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`
	UpdatedAt          string   `json:"updated_at"`
}

// =============================================================================
// Helper Functions
// =============================================================================

func toTaskResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:                t.ID,
		Name:              t.Name,
		Status:            string(t.Status),
		TotalDomains:      t.TotalDomains,
		CompletedDomains:  t.CompletedDomains,
		SuccessfulDomains: t.SuccessfulDomains,
		NoResultDomains:   t.NoResultDomains,
		FailedDomains:     t.FailedDomains,
		Progress:          t.Progress(),
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         t.UpdatedAt.Format(time.RFC3339),
	}

	if t.StartedAt != nil {
		formatted := t.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &formatted
	}
	if t.FinishedAt != nil {
		formatted := t.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &formatted
	}

	return resp
}

func toTaskResponses(tasks []*domain.Task) []TaskResponse {
	if tasks == nil {
		return []TaskResponse{}
	}

	responses := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		responses[i] = toTaskResponse(t)
	}
	return responses
}

func toTaskDomainResponse(d *domain.TaskDomain) TaskDomainResponse {
	return TaskDomainResponse{
		ID:                 d.ID,
		TaskID:             d.TaskID,
		Domain:             d.Domain,
		Status:             string(d.Status),
		GuestPostPrice:     d.GuestPostPrice,
		LinkInsertionPrice: d.LinkInsertionPrice,
		SponsoredPostPrice: d.SponsoredPostPrice,
		HomepageLinkPrice:  d.HomepageLinkPrice,
		CasinoPrice:        d.CasinoPrice,
		CasinoAccepted:     d.CasinoAccepted,
		Currency:           d.Currency,
		SourceContact:      d.SourceContact,
		ErrorMessage:       d.ErrorMessage,
		UpdatedAt:          d.UpdatedAt.Format(time.RFC3339),
	}
}

func toTaskDomainResponses(domains []*domain.TaskDomain) []TaskDomainResponse {
	if domains == nil {
		return []TaskDomainResponse{}
	}

	responses := make([]TaskDomainResponse, len(domains))
	for i, d := range domains {
		responses[i] = toTaskDomainResponse(d)
	}
	return responses
}
