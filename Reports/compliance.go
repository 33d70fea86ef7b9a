package Reports

import (
	"fmt"
	"log"

	"Rondin/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

var reportHeaders = []string{
	"Task ID", "PDV", "Routine", "Scheduled Date", "Deadline", "Priority",
	"Estado", "Audit Status", "Completed At", "GPS In Range", "GPS Distance (m)", "Comment",
}

// ComplianceReport exports task compliance for a date range as an xlsx sheet.
func ComplianceReport(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	start := c.Query("start")
	end := c.Query("end")
	if start == "" || end == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start and end query parameters are required"})
	}

	query := Models.DB.Model(&Models.TaskInstance{}).
		Preload("Routine").Preload("PDV").
		Where("scheduled_date BETWEEN ? AND ?", start, end)
	if user.Permission < Models.PermissionAdmin {
		query = query.Where("company_id = ?", user.CompanyID)
	}

	var tasks []Models.TaskInstance
	if err := query.Order("scheduled_date").Find(&tasks).Error; err != nil {
		log.Printf("Failed to load tasks for compliance report: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build report"})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, task := range tasks {
		values := []interface{}{
			task.ID,
			task.PDV.Name,
			task.Routine.Name,
			task.ScheduledDate,
			task.DeadlineTime,
			task.Priority,
			task.Estado,
			task.AuditStatus,
			"",
			"",
			"",
			task.Comment,
		}
		if task.CompletedAt != nil {
			values[8] = task.CompletedAt.Format("2006-01-02 15:04:05")
		}
		if task.GPSInRange != nil {
			values[9] = *task.GPSInRange
		}
		if task.GPSDistance != nil {
			values[10] = fmt.Sprintf("%.0f", *task.GPSDistance)
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		log.Printf("Failed to write compliance report: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build report"})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="compliance_%s_%s.xlsx"`, start, end))
	return c.Send(buf.Bytes())
}
