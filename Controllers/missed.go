package Controllers

import (
	"fmt"
	"log"
	"time"

	"Rondin/Models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MarkMissedRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// MarkMissedTasks bulk-transitions overdue pending tasks to missed. Directors
// sweep their own company only; an unrestricted sweep needs the admin/system
// credential.
func (h *TaskController) MarkMissedTasks(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var req MarkMissedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	targetDate := req.Date
	if targetDate == "" {
		targetDate = h.Deadlines.Today(time.Now())
	}

	var companyID *uint
	if user.Permission < Models.PermissionAdmin {
		companyID = &user.CompanyID
	}

	updated, err := SweepMissedTasks(h.DB, targetDate, companyID)
	if err != nil {
		log.Printf("Missed-task sweep for %s failed: %v", targetDate, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark missed tasks"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("%d tasks marked as missed", updated),
		"updated": updated,
		"date":    targetDate,
	})
}

// SweepMissedTasks runs the sweep as a single set-based update. Only tasks
// still pending match, so running it twice for the same date changes nothing
// the second time.
func SweepMissedTasks(db *gorm.DB, targetDate string, companyID *uint) (int64, error) {
	query := db.Model(&Models.TaskInstance{}).
		Where("estado = ? AND scheduled_date <= ?", Models.TaskStatePending, targetDate)
	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}

	res := query.Update("estado", Models.TaskStateMissed)
	return res.RowsAffected, res.Error
}
