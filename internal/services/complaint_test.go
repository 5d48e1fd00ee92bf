package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	citizenID   = "7b0c4a51-2f1e-4d1c-9d56-0c5a3c1f9a11"
	otherID     = "1e6f2b9a-8c44-4a51-b9f3-4f0a6e2d7c22"
	adminID     = "c0ffee00-1111-4222-8333-444455556666"
	complaintID = "5d3a8e2c-0b7f-4c6e-a1d2-9e8f7a6b5c4d"
)

var complaintCols = []string{"id", "user_id", "category", "subject", "description", "location", "status", "created_at", "updated_at"}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ComplaintEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt ComplaintEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func newComplaintService(t *testing.T) (*ComplaintService, sqlmock.Sqlmock, *recordingPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	pub := &recordingPublisher{}
	return NewComplaintService(db, pub, testLogger()), mock, pub
}

func complaintRow(id, owner string, status models.ComplaintStatus) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(complaintCols).AddRow(
		id, owner, "water", "No water since morning",
		"There has been no water supply in our street since 6am today.",
		nil, string(status), now, now,
	)
}

func validInput() ComplaintInput {
	return ComplaintInput{
		Category:    "water",
		Subject:     "No water since morning",
		Description: "There has been no water supply in our street since 6am today.",
	}
}

func TestSubmitCreatesSubmittedComplaintOwnedByCaller(t *testing.T) {
	svc, mock, pub := newComplaintService(t)

	in := validInput()
	mock.ExpectQuery("INSERT INTO complaints").
		WithArgs(citizenID, "water", in.Subject, in.Description, nil, models.StatusSubmitted, nil).
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))

	c, replayed, err := svc.Submit(context.Background(), citizenID, in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, complaintID, c.ID)
	assert.Equal(t, citizenID, c.UserID)
	assert.Equal(t, models.StatusSubmitted, c.Status)
	assert.Equal(t, models.CategoryWater, c.Category)
	assert.Nil(t, c.Location)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventComplaintSubmitted, pub.events[0].Type)
	assert.Equal(t, citizenID, pub.events[0].OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitValidation(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	cases := []struct {
		mutate func(*ComplaintInput)
		field  string
		msg    string
	}{
		{func(in *ComplaintInput) { in.Category = "" }, "category", "Please select a category"},
		{func(in *ComplaintInput) { in.Category = "potholes" }, "category", "Please select a category"},
		{func(in *ComplaintInput) { in.Subject = " Tap " }, "subject", "Subject must be at least 5 characters"},
		{func(in *ComplaintInput) { in.Description = "Too short" }, "description", "Description must be at least 20 characters"},
		{func(in *ComplaintInput) { in.Subject = "<<<>>>" }, "subject", "Subject must be at least 5 characters"},
		{func(in *ComplaintInput) { in.Subject = strings.Repeat("a", 300) }, "subject", "Subject must be at most 255 characters"},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		_, _, err := svc.Submit(context.Background(), citizenID, in)
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, tc.field, ve.Field)
		assert.Equal(t, tc.msg, ve.Message)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitSanitisesAndKeepsLocation(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	in := validInput()
	in.Category = " Water "
	in.Subject = "<b>No water</b> since morning"
	in.Location = "  MG Road, Ward 12 "
	mock.ExpectQuery("INSERT INTO complaints").
		WithArgs(citizenID, "water", "bNo water/b since morning", in.Description, "MG Road, Ward 12", models.StatusSubmitted, nil).
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))

	_, _, err := svc.Submit(context.Background(), citizenID, in)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitIdempotentReplay(t *testing.T) {
	svc, mock, pub := newComplaintService(t)

	in := validInput()
	in.IdempotencyKey = "key-1"
	mock.ExpectQuery("INSERT INTO complaints").
		WithArgs(citizenID, "water", in.Subject, in.Description, nil, models.StatusSubmitted, "key-1").
		WillReturnRows(sqlmock.NewRows(complaintCols))
	mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE user_id = \$1 AND idempotency_key = \$2`).
		WithArgs(citizenID, "key-1").
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))

	c, replayed, err := svc.Submit(context.Background(), citizenID, in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, complaintID, c.ID)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdempotencyKey(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE user_id = \$1 AND idempotency_key = \$2`).
		WithArgs(citizenID, "key-1").
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))
	c, err := svc.FindByIdempotencyKey(context.Background(), citizenID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, complaintID, c.ID)

	mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE user_id = \$1 AND idempotency_key = \$2`).
		WithArgs(citizenID, "key-2").
		WillReturnRows(sqlmock.NewRows(complaintCols))
	_, err = svc.FindByIdempotencyKey(context.Background(), citizenID, "key-2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitStoreFailure(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery("INSERT INTO complaints").WillReturnError(errors.New(`pq: relation "complaints" does not exist`))

	_, _, err := svc.Submit(context.Background(), citizenID, validInput())
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert complaint")
}

func TestSubmitPublishFailureDoesNotFail(t *testing.T) {
	svc, mock, pub := newComplaintService(t)
	pub.err = errors.New("redis down")

	mock.ExpectQuery("INSERT INTO complaints").
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))

	_, _, err := svc.Submit(context.Background(), citizenID, validInput())
	assert.NoError(t, err)
}

func TestListByOwnerFiltersByOwner(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	rows := complaintRow(complaintID, citizenID, models.StatusSubmitted)
	rows.AddRow("6d3a8e2c-0b7f-4c6e-a1d2-9e8f7a6b5c4e", citizenID, "roads", "Pothole near school", "Large pothole near the primary school gate.", "Ward 3", "Resolved", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs(citizenID).
		WillReturnRows(rows)

	list, err := svc.ListByOwner(context.Background(), citizenID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, c := range list {
		assert.Equal(t, citizenID, c.UserID)
	}
	require.NotNil(t, list[1].Location)
	assert.Equal(t, "Ward 3", *list[1].Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwnerEmpty(t *testing.T) {
	svc, mock, _ := newComplaintService(t)
	mock.ExpectQuery("SELECT (.+) FROM complaints").WithArgs(citizenID).WillReturnRows(sqlmock.NewRows(complaintCols))

	list, err := svc.ListByOwner(context.Background(), citizenID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestGetVisibility(t *testing.T) {
	svc, mock, _ := newComplaintService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE id = \$1`).
			WithArgs(complaintID).
			WillReturnRows(complaintRow(complaintID, citizenID, models.StatusSubmitted))
	}

	_, err := svc.Get(ctx, complaintID, Viewer{UserID: citizenID})
	assert.NoError(t, err)
	_, err = svc.Get(ctx, complaintID, Viewer{UserID: otherID})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, complaintID, Viewer{UserID: adminID, IsAdmin: true})
	assert.NoError(t, err)

	_, err = svc.Get(ctx, "not-a-uuid", Viewer{UserID: citizenID})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUnknown(t *testing.T) {
	svc, mock, _ := newComplaintService(t)
	mock.ExpectQuery("SELECT (.+) FROM complaints").WillReturnError(sql.ErrNoRows)

	_, err := svc.Get(context.Background(), complaintID, Viewer{UserID: adminID, IsAdmin: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAllWithFilter(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints WHERE status = \$1 AND category = \$2`).
		WithArgs(models.StatusSubmitted, models.CategoryWater).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT (.+) FROM complaints WHERE status = \$1 AND category = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(models.StatusSubmitted, models.CategoryWater, MaxComplaintLimit, 10).
		WillReturnRows(complaintRow(complaintID, otherID, models.StatusSubmitted))

	list, total, err := svc.ListAll(context.Background(), models.ComplaintFilter{
		Status: models.StatusSubmitted, Category: models.CategoryWater, Limit: 1000, Offset: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllNoFilter(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM complaints ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(DefaultComplaintLimit, 0).
		WillReturnRows(sqlmock.NewRows(complaintCols))

	_, _, err := svc.ListAll(context.Background(), models.ComplaintFilter{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllRejectsUnknownFilter(t *testing.T) {
	svc, _, _ := newComplaintService(t)
	_, _, err := svc.ListAll(context.Background(), models.ComplaintFilter{Status: "Reopened"})
	var ve *utils.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAdvanceMovesOneStep(t *testing.T) {
	svc, mock, pub := newComplaintService(t)

	mock.ExpectQuery(`SELECT status FROM complaints WHERE id = \$1`).
		WithArgs(complaintID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Submitted"))
	mock.ExpectQuery(`UPDATE complaints SET status = \$3, updated_at = \$4 WHERE id = \$1 AND status = \$2`).
		WithArgs(complaintID, models.StatusSubmitted, models.StatusInProgress, sqlmock.AnyArg()).
		WillReturnRows(complaintRow(complaintID, citizenID, models.StatusInProgress))

	c, err := svc.Advance(context.Background(), complaintID, adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, c.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventComplaintStatusChanged, pub.events[0].Type)
	assert.Equal(t, models.StatusSubmitted, pub.events[0].PreviousStatus)
	assert.Equal(t, models.StatusInProgress, pub.events[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceClosedHasNoTransition(t *testing.T) {
	svc, mock, pub := newComplaintService(t)

	mock.ExpectQuery("SELECT status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Closed"))

	_, err := svc.Advance(context.Background(), complaintID, adminID, nil)
	assert.ErrorIs(t, err, ErrNoTransition)
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceLosesRace(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery("SELECT status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("In Progress"))
	mock.ExpectQuery("UPDATE complaints").
		WithArgs(complaintID, models.StatusInProgress, models.StatusResolved, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(complaintCols))

	_, err := svc.Advance(context.Background(), complaintID, adminID, nil)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceExpectedStatusMismatch(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery("SELECT status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("In Progress"))

	stale := models.StatusSubmitted
	_, err := svc.Advance(context.Background(), complaintID, adminID, &stale)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceUnknownComplaint(t *testing.T) {
	svc, mock, _ := newComplaintService(t)

	mock.ExpectQuery("SELECT status FROM complaints").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	_, err := svc.Advance(context.Background(), complaintID, adminID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Advance(context.Background(), "42", adminID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
