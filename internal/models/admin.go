package models

import "time"

// AdminStats is an on-demand aggregate; it is never cached.
type AdminStats struct {
	TotalUsers           int64 `json:"total_users"`
	TotalAdmins          int64 `json:"total_admins"`
	TotalComplaints      int64 `json:"total_complaints"`
	PendingComplaints    int64 `json:"pending_complaints"`
	InProgressComplaints int64 `json:"in_progress_complaints"`
	ResolvedComplaints   int64 `json:"resolved_complaints"`
	ClosedComplaints     int64 `json:"closed_complaints"`
	ComplaintsLast30Days int64 `json:"complaints_last_30_days"`
	NewUsersLast30Days   int64 `json:"new_users_last_30_days"`
}

type AuditAction string

const (
	AuditPromote AuditAction = "promote"
	AuditRevoke  AuditAction = "revoke"
)

// AuditEntry records one privilege change.
type AuditEntry struct {
	ID            string      `json:"id"`
	Action        AuditAction `json:"action"`
	ActorID       *string     `json:"actor_id"`
	TargetEmail   string      `json:"target_email"`
	Justification *string     `json:"justification,omitempty"`
	IPAddress     *string     `json:"ip_address,omitempty"`
	UserAgent     *string     `json:"user_agent,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PrivilegeRequest carries the caller metadata recorded with a promote/revoke.
type PrivilegeRequest struct {
	ActorID       string
	Email         string
	Justification string
	IPAddress     string
	UserAgent     string
}
