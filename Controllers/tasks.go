package Controllers

import (
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"Rondin/Deadlines"
	"Rondin/Geofence"
	"Rondin/Models"
	"Rondin/Notifications"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TaskController contains handler methods for task workflow routes
type TaskController struct {
	DB         *gorm.DB
	Deadlines  *Deadlines.Evaluator
	Dispatcher *Notifications.Dispatcher
}

// NewTaskController creates a new task controller
func NewTaskController(db *gorm.DB, eval *Deadlines.Evaluator, dispatcher *Notifications.Dispatcher) *TaskController {
	return &TaskController{
		DB:         db,
		Deadlines:  eval,
		Dispatcher: dispatcher,
	}
}

type GPSPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type InventoryItem struct {
	ProductID uint    `json:"producto_id" validate:"required"`
	Expected  float64 `json:"esperado"`
	Counted   float64 `json:"fisico"`
}

type CompleteTaskRequest struct {
	GPS       *GPSPoint       `json:"gpsData"`
	Inventory []InventoryItem `json:"inventory" validate:"omitempty,dive"`
	Comments  string          `json:"comments"`
}

// loadTask fetches a task with its routine rules and PDV location, enforcing
// the caller's tenant unless the caller is an admin.
func (h *TaskController) loadTask(c *fiber.Ctx, user Models.User) (*Models.TaskInstance, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var task Models.TaskInstance
	if err := h.DB.Preload("Routine").Preload("PDV").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		log.Printf("Failed to load task %d: %v", id, err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load task"})
	}

	if user.Permission < Models.PermissionAdmin && task.CompanyID != user.CompanyID {
		return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Task belongs to another company"})
	}
	return &task, nil
}

// CompleteTask validates the geofence requirement, classifies the submission
// against the deadline and persists it. The pending -> completed transition is
// a single conditional update so a concurrent completion cannot race it; a
// re-submission (after an audit rejection) applies new field values without
// touching the outer state or the completion timestamp.
func (h *TaskController) CompleteTask(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var req CompleteTaskRequest
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

	if task.Estado == Models.TaskStateCancelled || task.Estado == Models.TaskStateMissed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Task is no longer open for completion"})
	}

	updates := map[string]interface{}{
		"comment": req.Comments,
	}

	if task.Routine.RequireGPS {
		if req.GPS == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "GPS coordinates are required for this routine"})
		}
		if task.PDV.Latitude == nil || task.PDV.Longitude == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "PDV has no coordinates configured"})
		}

		radius := Geofence.DefaultRadius
		if task.PDV.GeofenceRadius != nil {
			radius = *task.PDV.GeofenceRadius
		}
		distance := Geofence.Distance(req.GPS.Lat, req.GPS.Lng, *task.PDV.Latitude, *task.PDV.Longitude)
		if !Geofence.WithinRadius(distance, radius) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":    "Outside the PDV geofence",
				"distance": math.Round(distance),
				"limit":    radius,
			})
		}

		updates["gps_latitude"] = req.GPS.Lat
		updates["gps_longitude"] = req.GPS.Lng
		updates["gps_distance"] = distance
		updates["gps_in_range"] = true
	} else if req.GPS != nil {
		// GPS optional: record the result opportunistically, never block
		updates["gps_latitude"] = req.GPS.Lat
		updates["gps_longitude"] = req.GPS.Lng
		if task.PDV.Latitude != nil && task.PDV.Longitude != nil {
			radius := Geofence.DefaultRadius
			if task.PDV.GeofenceRadius != nil {
				radius = *task.PDV.GeofenceRadius
			}
			distance := Geofence.Distance(req.GPS.Lat, req.GPS.Lng, *task.PDV.Latitude, *task.PDV.Longitude)
			updates["gps_distance"] = distance
			updates["gps_in_range"] = Geofence.WithinRadius(distance, radius)
		}
	}

	if task.Routine.RequireInventory && len(req.Inventory) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Inventory count is required for this routine"})
	}

	now := time.Now().UTC()
	finalState := task.Estado

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		// Replace inventory rows wholesale
		if len(req.Inventory) > 0 {
			if err := tx.Unscoped().Where("task_id = ?", task.ID).Delete(&Models.InventoryLine{}).Error; err != nil {
				return err
			}
			lines := make([]Models.InventoryLine, 0, len(req.Inventory))
			for _, item := range req.Inventory {
				lines = append(lines, Models.InventoryLine{
					TaskID:    task.ID,
					ProductID: item.ProductID,
					Expected:  item.Expected,
					Counted:   item.Counted,
				})
			}
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
		}

		// Field values apply on every submission
		if err := tx.Model(&Models.TaskInstance{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
			return err
		}

		// A re-submission after a rejection implicitly requests re-review
		if err := tx.Model(&Models.TaskInstance{}).
			Where("id = ? AND audit_status = ?", task.ID, Models.AuditRejected).
			Update("audit_status", Models.AuditUnreviewed).Error; err != nil {
			return err
		}

		// The deadline is evaluated only while the task is still open. A
		// re-submission (after an audit rejection) keeps the original outcome
		// and completion timestamp.
		if task.Estado != Models.TaskStatePending && task.Estado != Models.TaskStateInProgress {
			return nil
		}

		result, derr := h.Deadlines.Classify(task.ScheduledDate, task.DeadlineTime, now)
		if derr != nil {
			return derr
		}
		newState := Models.TaskStateCompletedOnTime
		if result == Deadlines.Late {
			newState = Models.TaskStateCompletedLate
		}

		// The state check is part of the update itself so a concurrent
		// completion cannot transition twice.
		res := tx.Model(&Models.TaskInstance{}).
			Where("id = ? AND estado IN ?", task.ID, Models.OpenStates()).
			Updates(map[string]interface{}{
				"estado":       newState,
				"completed_at": now,
				"completed_by": user.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			finalState = newState
			return nil
		}

		// Lost the race to a concurrent completion, keep its outcome
		var current Models.TaskInstance
		if err := tx.Select("estado").First(&current, task.ID).Error; err != nil {
			return err
		}
		finalState = current.Estado
		return nil
	})
	if err != nil {
		log.Printf("Failed to save completion of task %d: %v", task.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save task completion"})
	}

	return c.JSON(fiber.Map{"success": true, "status": finalState})
}

// GetTasks lists the caller's company tasks, optionally filtered by date and estado.
func (h *TaskController) GetTasks(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	query := h.DB.Model(&Models.TaskInstance{}).Preload("Routine").Preload("PDV")
	if user.Permission < Models.PermissionAdmin {
		query = query.Where("company_id = ?", user.CompanyID)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("scheduled_date = ?", date)
	}
	if estado := c.Query("estado"); estado != "" {
		query = query.Where("estado = ?", estado)
	}

	var tasks []Models.TaskInstance
	if err := query.Order("scheduled_date DESC").Find(&tasks).Error; err != nil {
		log.Printf("Failed to list tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list tasks"})
	}

	return c.JSON(tasks)
}

// GetTask returns one task with its inventory submission.
func (h *TaskController) GetTask(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	task, ferr := h.loadTask(c, user)
	if task == nil {
		return ferr
	}

	var inventory []Models.InventoryLine
	if err := h.DB.Where("task_id = ?", task.ID).Find(&inventory).Error; err != nil {
		log.Printf("Failed to load inventory for task %d: %v", task.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load task"})
	}

	return c.JSON(fiber.Map{"task": task, "inventory": inventory})
}
