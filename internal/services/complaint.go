package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	complaintColumns = `id, user_id, category, subject, description, location, status, created_at, updated_at`

	MinSubjectLength      = 5
	MaxSubjectLength      = utils.MaxNameLength
	MinDescriptionLength  = 20
	MaxIdempotencyKeyLen  = 128
	DefaultComplaintLimit = 50
	MaxComplaintLimit     = 200
)

// EventPublisher receives complaint lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt ComplaintEvent) error
}

// ComplaintService is the complaint store: submission, listing and status advance.
type ComplaintService struct {
	db     *sql.DB
	events EventPublisher
	log    *zap.Logger
}

func NewComplaintService(db *sql.DB, events EventPublisher, log *zap.Logger) *ComplaintService {
	return &ComplaintService{db: db, events: events, log: log}
}

type ComplaintInput struct {
	Category       string
	Subject        string
	Description    string
	Location       string
	IdempotencyKey string
}

// ValidateComplaint sanitises in and checks the grievance form rules.
func ValidateComplaint(in *ComplaintInput) error {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Subject = utils.SanitizeText(in.Subject)
	in.Description = utils.SanitizeText(in.Description)
	in.Location = utils.SanitizeText(in.Location)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if !models.ComplaintCategory(in.Category).Valid() {
		return &utils.ValidationError{Field: "category", Message: "Please select a category"}
	}
	if err := utils.MinLength("subject", in.Subject, MinSubjectLength, "Subject must be at least 5 characters"); err != nil {
		return err
	}
	if err := utils.MaxLength("subject", in.Subject, MaxSubjectLength, "Subject must be at most 255 characters"); err != nil {
		return err
	}
	if err := utils.MinLength("description", in.Description, MinDescriptionLength, "Description must be at least 20 characters"); err != nil {
		return err
	}
	if len(in.IdempotencyKey) > MaxIdempotencyKeyLen {
		return &utils.ValidationError{Field: "idempotency_key", Message: "Idempotency key is too long"}
	}
	return nil
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var c models.Complaint
	var location sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Category, &c.Subject, &c.Description, &location, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Location = nullableString(location)
	return &c, nil
}

// Submit files a complaint owned by userID. With an idempotency key, a
// repeat of the same key returns the original complaint and replayed=true.
func (s *ComplaintService) Submit(ctx context.Context, userID string, in ComplaintInput) (c *models.Complaint, replayed bool, err error) {
	if err := ValidateComplaint(&in); err != nil {
		return nil, false, err
	}

	var location, key interface{}
	if in.Location != "" {
		location = in.Location
	}
	if in.IdempotencyKey != "" {
		key = in.IdempotencyKey
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO complaints (user_id, category, subject, description, location, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING `+complaintColumns,
		userID, in.Category, in.Subject, in.Description, location, models.StatusSubmitted, key)
	c, err = scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) && in.IdempotencyKey != "" {
		c, err = s.FindByIdempotencyKey(ctx, userID, in.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("load replayed complaint: %w", err)
		}
		return c, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert complaint: %w", err)
	}

	metrics.ComplaintsSubmitted.WithLabelValues(string(c.Category)).Inc()
	s.publish(ctx, ComplaintEvent{
		Type:        EventComplaintSubmitted,
		ComplaintID: c.ID,
		OwnerID:     c.UserID,
		Status:      c.Status,
		Category:    c.Category,
		Subject:     c.Subject,
	})
	return c, false, nil
}

// FindByIdempotencyKey returns the complaint userID filed under key, or
// ErrNotFound.
func (s *ComplaintService) FindByIdempotencyKey(ctx context.Context, userID, key string) (*models.Complaint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find complaint by idempotency key: %w", err)
	}
	return c, nil
}

// ListByOwner returns the complaints of userID, newest first.
func (s *ComplaintService) ListByOwner(ctx context.Context, userID string) ([]models.Complaint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()
	return collectComplaints(rows)
}

func collectComplaints(rows *sql.Rows) ([]models.Complaint, error) {
	out := make([]models.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Viewer is who is asking for a complaint.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// Get returns complaint id if the viewer owns it or is an admin. Otherwise
// it reports ErrNotFound so existence is not revealed.
func (s *ComplaintService) Get(ctx context.Context, id string, viewer Viewer) (*models.Complaint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	c, err := scanComplaint(s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	if !viewer.IsAdmin && c.UserID != viewer.UserID {
		return nil, ErrNotFound
	}
	return c, nil
}

// NormalizeFilter clamps paging and drops unknown filter values.
func NormalizeFilter(f models.ComplaintFilter) (models.ComplaintFilter, error) {
	if f.Status != "" && !f.Status.Valid() {
		return f, &utils.ValidationError{Field: "status", Message: "Unknown status"}
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, &utils.ValidationError{Field: "category", Message: "Unknown category"}
	}
	if f.Limit <= 0 {
		f.Limit = DefaultComplaintLimit
	}
	if f.Limit > MaxComplaintLimit {
		f.Limit = MaxComplaintLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

// ListAll returns every complaint matching f, newest first, with the total match count.
func (s *ComplaintService) ListAll(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, int64, error) {
	f, err := NormalizeFilter(f)
	if err != nil {
		return nil, 0, err
	}

	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints`+clause+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list all complaints: %w", err)
	}
	defer rows.Close()

	list, err := collectComplaints(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Advance moves complaint id one step forward. If expected is set, the
// complaint must currently be in that status. The write is a
// compare-and-set on the status read, so concurrent advances cannot both win.
func (s *ComplaintService) Advance(ctx context.Context, id, actorID string, expected *models.ComplaintStatus) (*models.Complaint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var current models.ComplaintStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM complaints WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read complaint status: %w", err)
	}

	if expected != nil && *expected != current {
		return nil, ErrStatusConflict
	}
	next, ok := models.NextStatus(current)
	if !ok {
		return nil, ErrNoTransition
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE complaints
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+complaintColumns, id, current, next, time.Now().UTC())
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("advance complaint: %w", err)
	}

	metrics.ComplaintTransitions.WithLabelValues(string(current), string(next)).Inc()
	s.log.Info("complaint status advanced",
		zap.String("complaint_id", id),
		zap.String("actor_id", actorID),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
	)
	s.publish(ctx, ComplaintEvent{
		Type:           EventComplaintStatusChanged,
		ComplaintID:    c.ID,
		OwnerID:        c.UserID,
		Status:         c.Status,
		PreviousStatus: current,
		Category:       c.Category,
		Subject:        c.Subject,
	})
	return c, nil
}

func (s *ComplaintService) publish(ctx context.Context, evt ComplaintEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish complaint event", zap.String("complaint_id", evt.ComplaintID), zap.Error(err))
	}
}
