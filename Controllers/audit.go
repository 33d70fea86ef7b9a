package Controllers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"Rondin/Models"

	"github.com/gofiber/fiber/v2"
)

type AuditRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note"`
}

// AuditExecution transitions a completed task's audit status and notifies the
// field user who completed it. The audit decision is the source of truth:
// notification delivery is best-effort and never rolls it back.
func (h *TaskController) AuditExecution(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var req AuditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Status == Models.AuditRejected && strings.TrimSpace(req.Note) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A note is required when rejecting a task"})
	}

	task, ferr := h.loadTask(c, user)
	if task == nil {
		return ferr
	}

	if !Models.IsCompletedState(task.Estado) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task has not been completed yet"})
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&Models.TaskInstance{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"audit_status": req.Status,
		"audited_by":   user.ID,
		"audited_at":   now,
		"audit_note":   req.Note,
	}).Error; err != nil {
		log.Printf("Failed to save audit of task %d: %v", task.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save audit decision"})
	}

	// Notify the completer, unless the auditor reviewed their own work
	if task.CompletedBy != nil && *task.CompletedBy != user.ID {
		var title, body string
		if req.Status == Models.AuditApproved {
			title = "Task approved"
			body = fmt.Sprintf("Your %s task at %s was approved", task.Routine.Name, task.PDV.Name)
		} else {
			title = "Task rejected"
			body = fmt.Sprintf("%s was rejected: %s", task.Routine.Name, req.Note)
		}

		notification := Models.Notification{
			UserID:   *task.CompletedBy,
			Type:     "task_audit",
			Title:    title,
			EntityID: task.ID,
		}
		if err := h.DB.Create(&notification).Error; err != nil {
			log.Printf("Failed to write audit notification for task %d: %v", task.ID, err)
		}

		url := fmt.Sprintf("/tasks/%d", task.ID)
		if _, err := h.Dispatcher.Dispatch(*task.CompletedBy, title, body, url); err != nil {
			log.Printf("Audit push dispatch for task %d failed: %v", task.ID, err)
		}
	}

	return c.JSON(fiber.Map{"success": true})
}
