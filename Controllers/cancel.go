package Controllers

import (
	"log"
	"strings"
	"time"

	"Rondin/Models"

	"github.com/gofiber/fiber/v2"
)

const (
	CancelScopeToday  = "today"
	CancelScopeFuture = "future"
)

type CancelRequest struct {
	Reason string `json:"reason" validate:"required"`
	Scope  string `json:"scope" validate:"required,oneof=today future"`
}

// CancelTask transitions an open task to cancelled. With scope=future the
// originating recurring assignment is deactivated as well, best-effort: its
// failure is reported to the caller but does not undo the cancellation.
func (h *TaskController) CancelTask(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}
	if user.Permission < Models.PermissionDirector {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions to cancel tasks"})
	}

	var req CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	task, ferr := h.loadTask(c, user)
	if task == nil {
		return ferr
	}

	if Models.IsCompletedState(task.Estado) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot cancel a completed task"})
	}

	now := time.Now().UTC()
	res := h.DB.Model(&Models.TaskInstance{}).
		Where("id = ? AND estado IN ?", task.ID, Models.OpenStates()).
		Updates(map[string]interface{}{
			"estado":        Models.TaskStateCancelled,
			"cancelled_at":  now,
			"cancelled_by":  user.ID,
			"cancel_reason": req.Reason,
		})
	if res.Error != nil {
		log.Printf("Failed to cancel task %d: %v", task.ID, res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel task"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task can no longer be cancelled"})
	}

	message := "Task cancelled"
	if req.Scope == CancelScopeFuture && task.AssignmentID != nil {
		if err := h.deactivateAssignment(*task.AssignmentID, req.Reason); err != nil {
			log.Printf("Failed to deactivate assignment %d: %v", *task.AssignmentID, err)
			message = "Task cancelled, but the recurring assignment could not be deactivated"
		} else {
			message = "Task cancelled and recurring assignment deactivated"
		}
	}

	if err := Models.AppendAuditLog(h.DB, user.ID, "cancel_task", "task_instances", task.ID, map[string]interface{}{
		"previous_estado": task.Estado,
		"estado":          Models.TaskStateCancelled,
		"cancel_reason":   req.Reason,
		"scope":           req.Scope,
	}); err != nil {
		log.Printf("Failed to append audit log for task %d: %v", task.ID, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": message})
}

func (h *TaskController) deactivateAssignment(id uint, reason string) error {
	var assignment Models.Assignment
	if err := h.DB.First(&assignment, id).Error; err != nil {
		return err
	}

	assignment.Active = false
	note := "Deactivated: " + reason
	if strings.TrimSpace(assignment.Notes) != "" {
		assignment.Notes = assignment.Notes + "\n" + note
	} else {
		assignment.Notes = note
	}
	return h.DB.Save(&assignment).Error
}
