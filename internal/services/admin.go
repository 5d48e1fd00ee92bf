package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"go.uber.org/zap"
)

const (
	MinJustificationLength = 10
	DefaultAuditLimit      = 100
	MaxAuditLimit          = 500
)

// AdminService computes dashboard statistics and manages admin privileges.
type AdminService struct {
	db           *sql.DB
	adminDomains []string
	log          *zap.Logger
}

func NewAdminService(db *sql.DB, adminDomains []string, log *zap.Logger) *AdminService {
	return &AdminService{db: db, adminDomains: adminDomains, log: log}
}

// Stats recomputes the dashboard aggregate.
func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	var st models.AdminStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM user_profiles WHERE is_admin),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Submitted'),
			COUNT(*) FILTER (WHERE status = 'In Progress'),
			COUNT(*) FILTER (WHERE status = 'Resolved'),
			COUNT(*) FILTER (WHERE status = 'Closed'),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days'),
			(SELECT COUNT(*) FROM users WHERE created_at >= NOW() - INTERVAL '30 days')
		FROM complaints
	`).Scan(
		&st.TotalUsers,
		&st.TotalAdmins,
		&st.TotalComplaints,
		&st.PendingComplaints,
		&st.InProgressComplaints,
		&st.ResolvedComplaints,
		&st.ClosedComplaints,
		&st.ComplaintsLast30Days,
		&st.NewUsersLast30Days,
	)
	if err != nil {
		return nil, fmt.Errorf("admin stats: %w", err)
	}
	return &st, nil
}

// ValidatePromotion checks a promote request without touching the store.
func (s *AdminService) ValidatePromotion(req *models.PrivilegeRequest) error {
	req.Email = utils.NormalizeEmail(req.Email)
	req.Justification = utils.SanitizeText(req.Justification)
	if !utils.IsValidEmail(req.Email) {
		return &utils.ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	if !utils.HasAllowedDomain(req.Email, s.adminDomains) {
		return ErrDomainNotAllowed
	}
	if err := utils.MinLength("justification", req.Justification, MinJustificationLength, "Justification must be at least 10 characters"); err != nil {
		return err
	}
	return nil
}

// Promote grants admin to the user with req.Email and records an audit entry.
// The domain allow-list is checked before any query runs.
func (s *AdminService) Promote(ctx context.Context, req models.PrivilegeRequest) error {
	if err := s.ValidatePromotion(&req); err != nil {
		metrics.PrivilegeChanges.WithLabelValues(string(models.AuditPromote), "rejected").Inc()
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE user_profiles
			SET is_admin = TRUE, updated_at = NOW()
			WHERE id = (SELECT id FROM users WHERE email = $1)
		`, req.Email)
		if err != nil {
			return fmt.Errorf("promote: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return insertAudit(ctx, tx, models.AuditPromote, req)
	})
	s.record(models.AuditPromote, req, err)
	return err
}

// Revoke removes admin from the user with req.Email. An admin cannot
// revoke their own privileges.
func (s *AdminService) Revoke(ctx context.Context, req models.PrivilegeRequest) error {
	req.Email = utils.NormalizeEmail(req.Email)
	req.Justification = utils.SanitizeText(req.Justification)
	if !utils.IsValidEmail(req.Email) {
		return &utils.ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var targetID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, req.Email).Scan(&targetID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("revoke lookup: %w", err)
		}
		if targetID == req.ActorID {
			return ErrSelfRevoke
		}
		if _, err := tx.ExecContext(ctx, `UPDATE user_profiles SET is_admin = FALSE, updated_at = NOW() WHERE id = $1`, targetID); err != nil {
			return fmt.Errorf("revoke: %w", err)
		}
		return insertAudit(ctx, tx, models.AuditRevoke, req)
	})
	s.record(models.AuditRevoke, req, err)
	return err
}

// AuditLog returns the most recent privilege changes, newest first.
func (s *AdminService) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, actor_id, target_email, justification, ip_address, user_agent, created_at
		FROM admin_audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		var actor, justification, ip, ua sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &actor, &e.TargetEmail, &justification, &ip, &ua, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ActorID = nullableString(actor)
		e.Justification = nullableString(justification)
		e.IPAddress = nullableString(ip)
		e.UserAgent = nullableString(ua)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertAudit(ctx context.Context, tx *sql.Tx, action models.AuditAction, req models.PrivilegeRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_audit_log (action, actor_id, target_email, justification, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, action, nullIfEmpty(req.ActorID), req.Email, nullIfEmpty(req.Justification), nullIfEmpty(req.IPAddress), nullIfEmpty(req.UserAgent))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AdminService) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *AdminService) record(action models.AuditAction, req models.PrivilegeRequest, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.PrivilegeChanges.WithLabelValues(string(action), outcome).Inc()
	if err == nil {
		s.log.Info("admin privileges changed",
			zap.String("action", string(action)),
			zap.String("actor_id", req.ActorID),
			zap.String("target_email", req.Email),
			zap.String("ip", req.IPAddress),
		)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
