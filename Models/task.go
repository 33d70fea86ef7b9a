package Models

import (
	"time"

	"gorm.io/gorm"
)

// Task lifecycle states. Transitions are monotonic: once a task leaves
// pending/in_progress it never returns.
const (
	TaskStatePending         = "pending"
	TaskStateInProgress      = "in_progress"
	TaskStateCompletedOnTime = "completed_on_time"
	TaskStateCompletedLate   = "completed_late"
	TaskStateCancelled       = "cancelled"
	TaskStateMissed          = "missed"
)

// Audit sub-state, meaningful only once the task is completed.
// rejected -> unreviewed is the only backward transition (re-opens for correction).
const (
	AuditUnreviewed = "unreviewed"
	AuditApproved   = "approved"
	AuditRejected   = "rejected"
)

// OpenStates are the states a task can still be completed or cancelled from.
func OpenStates() []string {
	return []string{TaskStatePending, TaskStateInProgress}
}

func IsCompletedState(estado string) bool {
	return estado == TaskStateCompletedOnTime || estado == TaskStateCompletedLate
}

// Routine declares the rules a task instance is checked against.
// Read-only to the workflow handlers.
type Routine struct {
	gorm.Model
	CompanyID        uint   `json:"company_id" gorm:"index"`
	Name             string `json:"name"`
	RequireGPS       bool   `json:"require_gps" gorm:"column:require_gps"`
	RequireInventory bool   `json:"require_inventory"`
	DeadlineTime     string `json:"deadline_time"` // HH:MM:SS, empty = end of day
	Priority         string `json:"priority"`
}

// PDV is the physical site a task is executed at. Coordinates and radius are
// optional so the completion handler can tell "not configured" from zero.
type PDV struct {
	gorm.Model
	CompanyID      uint     `json:"company_id" gorm:"index"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Latitude       *float64 `json:"lat"`
	Longitude      *float64 `json:"long"`
	GeofenceRadius *float64 `json:"geofence_radius"` // meters, nil = default
}

// Assignment is the recurring source a task instance was generated from.
type Assignment struct {
	gorm.Model
	CompanyID uint   `json:"company_id" gorm:"index"`
	RoutineID uint   `json:"routine_id"`
	PDVID     uint   `json:"pdv_id" gorm:"column:pdv_id"`
	UserID    uint   `json:"user_id"`
	Active    bool   `json:"active" gorm:"default:true"`
	Notes     string `json:"notes"`
}

// TaskInstance is one concrete occurrence of a routine at a PDV on a date.
// Created by the schedule generator in state pending; mutated only by the
// workflow handlers; never physically deleted.
type TaskInstance struct {
	gorm.Model
	CompanyID    uint     `json:"company_id" gorm:"index"`
	RoutineID    uint     `json:"routine_id"`
	Routine      Routine  `json:"routine"`
	PDVID        uint     `json:"pdv_id" gorm:"column:pdv_id"`
	PDV          PDV      `json:"pdv" gorm:"foreignKey:PDVID"`
	AssignmentID *uint    `json:"assignment_id"`
	AssigneeID   uint     `json:"assignee_id" gorm:"index"`

	ScheduledDate string `json:"scheduled_date" gorm:"index"` // YYYY-MM-DD
	DeadlineTime  string `json:"deadline_time"`               // snapshot, empty = end of day
	Priority      string `json:"priority"`                    // snapshot

	Estado      string `json:"estado" gorm:"index;default:pending"`
	AuditStatus string `json:"audit_status" gorm:"default:unreviewed"`

	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *uint      `json:"completed_by"`
	Comment     string     `json:"comment"`

	GPSLatitude  *float64 `json:"gps_lat" gorm:"column:gps_latitude"`
	GPSLongitude *float64 `json:"gps_long" gorm:"column:gps_longitude"`
	GPSInRange   *bool    `json:"gps_in_range" gorm:"column:gps_in_range"`
	GPSDistance  *float64 `json:"gps_distance" gorm:"column:gps_distance"` // meters

	AuditedBy *uint      `json:"audited_by"`
	AuditedAt *time.Time `json:"audited_at"`
	AuditNote string     `json:"audit_note"`

	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelledBy  *uint      `json:"cancelled_by"`
	CancelReason string     `json:"cancel_reason"`
}

// InventoryLine is one counted product of a task submission. Submissions
// replace the whole set, they are never merged.
type InventoryLine struct {
	gorm.Model
	TaskID    uint    `json:"task_id" gorm:"index"`
	ProductID uint    `json:"producto_id" gorm:"column:product_id"`
	Expected  float64 `json:"esperado"`
	Counted   float64 `json:"fisico"`
}
