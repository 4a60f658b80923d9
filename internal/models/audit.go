package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction is the closed set of audited admin actions.
type AuditAction string

const (
	AuditActionReportApproved AuditAction = "report_approved"
	AuditActionReportDeleted  AuditAction = "report_deleted"
	AuditActionReportExported AuditAction = "report_exported"
)

// AuditActions lists every valid action.
var AuditActions = []AuditAction{
	AuditActionReportApproved,
	AuditActionReportDeleted,
	AuditActionReportExported,
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	for _, known := range AuditActions {
		if a == known {
			return true
		}
	}
	return false
}

// AuditMetadata is a free-form document stored as JSONB.
type AuditMetadata map[string]interface{}

// Value marshals metadata to JSON for persistence.
func (m AuditMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata map.
func (m *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AuditMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported audit metadata type %T", value)
	}
	out := AuditMetadata{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// AuditLog is an append-only record of one admin action on a report.
type AuditLog struct {
	ID         string        `db:"id" json:"id"`
	ReportID   string        `db:"report_id" json:"report_id"`
	UserID     string        `db:"user_id" json:"user_id"`
	ActionType AuditAction   `db:"action_type" json:"action_type"`
	IPAddress  string        `db:"ip_address" json:"ip_address,omitempty"`
	Metadata   AuditMetadata `db:"metadata" json:"metadata"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// AuditLogFilter narrows audit queries. Empty fields are ignored.
type AuditLogFilter struct {
	ReportID string
	UserID   string
	Action   AuditAction
	Page     int
	PageSize int
}

// Actor identifies who performs a privileged mutation and from where.
type Actor struct {
	UserID string
	IP     string
}
