package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/services"
	"github.com/yukikurage/task-tracker-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns all tasks, newest first.
// Optional query: status (name or 0/1/2), page and limit. Paging applies only when limit is set.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var input services.ListTasksInput

	if raw, ok := c.GetQuery("status"); ok && raw != "" {
		status, err := models.ParseTaskStatus(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid status filter")
			return
		}
		input.Status = &status
	}

	if params, ok := utils.LookupPaginationParams(c); ok {
		input.Page = &params
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), input)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTOs(tasks))
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), taskID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a new task owned by the caller
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssignedToUserID,
		CreatorID:   userID,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.Header("Location", "/api/tasks/"+strconv.FormatUint(task.ID, 10))
	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask applies a partial update. Keys missing from the body are left untouched.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		AssigneeID:  req.AssignedToUserID,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SuggestTasks uses AI to propose tasks from free text
func (h *TaskHandler) SuggestTasks(c *gin.Context) {
	var req dto.SuggestTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	suggestions, err := h.taskService.SuggestTasks(c.Request.Context(), req.Text)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	items := make([]dto.SuggestedTaskDTO, len(suggestions))
	for i, s := range suggestions {
		items[i] = dto.SuggestedTaskDTO{Title: s.Title, Description: s.Description}
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": items,
	})
}
