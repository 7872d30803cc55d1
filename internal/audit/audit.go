// Package audit provides the write-only sink for the append-only audit
// trail. Entries are recorded inside the caller's database transaction so an
// audit row and the mutation it documents commit together or not at all.
package audit

import (
	"encoding/json"

	"github.com/tickertap/tickertap-api/internal/types"
	"gorm.io/gorm"
)

// Meta carries request metadata captured at the HTTP layer.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Entry describes one auditable mutation. OldValues and NewValues are
// arbitrary snapshots serialized to JSON.
type Entry struct {
	UserID    string
	Action    string
	TableName string
	RecordID  string
	OldValues any
	NewValues any
	Meta      Meta
}

// Record appends an audit row within tx.
func Record(tx *gorm.DB, e Entry) error {
	oldValues, err := marshal(e.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshal(e.NewValues)
	if err != nil {
		return err
	}

	row := types.AuditLog{
		UserID:    e.UserID,
		Action:    e.Action,
		TableName: e.TableName,
		RecordID:  e.RecordID,
		OldValues: oldValues,
		NewValues: newValues,
		IPAddress: e.Meta.IPAddress,
		UserAgent: e.Meta.UserAgent,
	}
	return tx.Create(&row).Error
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
