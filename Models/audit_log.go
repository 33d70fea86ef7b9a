package Models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogEntry is an append-only record of a privileged mutation.
type AuditLogEntry struct {
	gorm.Model
	UserID    uint           `json:"user_id"`
	Action    string         `json:"action"`
	TableName string         `json:"table_name"`
	RecordID  uint           `json:"record_id"`
	NewValues datatypes.JSON `json:"new_values"`
}

func AppendAuditLog(db *gorm.DB, userID uint, action, table string, recordID uint, newValues interface{}) error {
	raw, err := json.Marshal(newValues)
	if err != nil {
		return err
	}
	return db.Create(&AuditLogEntry{
		UserID:    userID,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		NewValues: datatypes.JSON(raw),
	}).Error
}
