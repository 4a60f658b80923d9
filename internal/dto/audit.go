package dto

// AuditLogQuery binds GET /admin/audit-logs query parameters.
type AuditLogQuery struct {
	ReportID string `form:"report_id"`
	UserID   string `form:"user_id"`
	Action   string `form:"action"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
