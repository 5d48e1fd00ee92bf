package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/middleware"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const (
	citizenID   = "11111111-1111-1111-1111-111111111111"
	adminID     = "22222222-2222-2222-2222-222222222222"
	complaintID = "33333333-3333-3333-3333-333333333333"
)

var testTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeSessions struct {
	invalidateErr error
	invalidated   []string
	refreshed     *services.IssuedSession
	refreshErr    error
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (*services.IssuedSession, error) {
	return f.refreshed, f.refreshErr
}

func (f *fakeSessions) Invalidate(_ context.Context, token string) error {
	f.invalidated = append(f.invalidated, token)
	return f.invalidateErr
}

type fakeAuth struct {
	signupIn  services.SignupInput
	signup    *services.SignupResult
	signupErr error
	login     *services.LoginResult
	loginErr  error
	user      *models.User
	userErr   error
}

func (f *fakeAuth) Signup(_ context.Context, in services.SignupInput) (*services.SignupResult, error) {
	f.signupIn = in
	return f.signup, f.signupErr
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*services.LoginResult, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) GetUser(_ context.Context, userID string) (*models.User, error) {
	return f.user, f.userErr
}

type fakeProfiles struct {
	profiles  map[string]*models.Profile
	getErr    error
	updated   models.ProfileUpdate
	updateErr error
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) Update(_ context.Context, userID string, u models.ProfileUpdate) (*models.Profile, error) {
	f.updated = u
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p := *f.profiles[userID]
	p.FullName = u.FullName
	return &p, nil
}

func newProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]*models.Profile{
		citizenID: {ID: citizenID, FullName: "Asha Rao"},
		adminID:   {ID: adminID, FullName: "Ward Officer", IsAdmin: true},
	}}
}

type fakeComplaints struct {
	submittedBy string
	submitIn    services.ComplaintInput
	replayed    bool
	submitErr   error
	existing    map[string]*models.Complaint
	lookups     []string
	items       []models.Complaint
	filter      models.ComplaintFilter
	viewer      services.Viewer
	getErr      error
	expected    *models.ComplaintStatus
	advanced    *models.Complaint
	advanceErr  error
}

func (f *fakeComplaints) Submit(_ context.Context, userID string, in services.ComplaintInput) (*models.Complaint, bool, error) {
	f.submittedBy = userID
	f.submitIn = in
	if f.submitErr != nil {
		return nil, false, f.submitErr
	}
	c := &models.Complaint{
		ID:          complaintID,
		UserID:      userID,
		Category:    models.ComplaintCategory(in.Category),
		Subject:     in.Subject,
		Description: in.Description,
		Status:      models.StatusSubmitted,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
	return c, f.replayed, nil
}

func (f *fakeComplaints) FindByIdempotencyKey(_ context.Context, userID, key string) (*models.Complaint, error) {
	f.lookups = append(f.lookups, userID+":"+key)
	if c, ok := f.existing[userID+":"+key]; ok {
		return c, nil
	}
	return nil, services.ErrNotFound
}

func (f *fakeComplaints) ListByOwner(_ context.Context, userID string) ([]models.Complaint, error) {
	out := []models.Complaint{}
	for _, c := range f.items {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComplaints) Get(_ context.Context, id string, viewer services.Viewer) (*models.Complaint, error) {
	f.viewer = viewer
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.items {
		if c.ID == id && (viewer.IsAdmin || c.UserID == viewer.UserID) {
			c := c
			return &c, nil
		}
	}
	return nil, services.ErrNotFound
}

func (f *fakeComplaints) ListAll(_ context.Context, filter models.ComplaintFilter) ([]models.Complaint, int64, error) {
	f.filter = filter
	return f.items, int64(len(f.items)), nil
}

func (f *fakeComplaints) Advance(_ context.Context, id, actorID string, expected *models.ComplaintStatus) (*models.Complaint, error) {
	f.expected = expected
	return f.advanced, f.advanceErr
}

type fakeAdmin struct {
	stats    *models.AdminStats
	statsErr error
	req      models.PrivilegeRequest
	err      error
	entries  []models.AuditEntry
	limit    int
}

func (f *fakeAdmin) Stats(context.Context) (*models.AdminStats, error) { return f.stats, f.statsErr }

func (f *fakeAdmin) Promote(_ context.Context, req models.PrivilegeRequest) error {
	f.req = req
	return f.err
}

func (f *fakeAdmin) Revoke(_ context.Context, req models.PrivilegeRequest) error {
	f.req = req
	return f.err
}

func (f *fakeAdmin) AuditLog(_ context.Context, limit int) ([]models.AuditEntry, error) {
	f.limit = limit
	return f.entries, nil
}

type fakeLimiter struct {
	deny     bool
	attempts []string
	resets   []string
}

func (f *fakeLimiter) Reset(_ context.Context, action, subject string) error {
	f.resets = append(f.resets, action+":"+subject)
	return nil
}

func (f *fakeLimiter) Allow(_ context.Context, action, subject string) services.LimitResult {
	f.attempts = append(f.attempts, action+":"+subject)
	if f.deny {
		return services.LimitResult{Allowed: false, Limit: 5, RetryAfter: 90 * time.Second}
	}
	return services.LimitResult{Allowed: true, Limit: 5, Remaining: 4}
}

type fakeScreener struct {
	sources []string
}

func (f *fakeScreener) Screen(source, subjectID string, texts ...string) services.ScreenResult {
	f.sources = append(f.sources, source)
	return services.ScreenResult{}
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []services.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg services.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeApplications struct {
	raw     json.RawMessage
	userID  string
	app     *models.ServiceApplication
	err     error
	listing []models.ServiceApplication
}

func (f *fakeApplications) Submit(_ context.Context, t models.ApplicationType, raw json.RawMessage, userID, ip string) (*models.ServiceApplication, error) {
	f.raw = raw
	f.userID = userID
	return f.app, f.err
}

func (f *fakeApplications) ListByUser(_ context.Context, userID string) ([]models.ServiceApplication, error) {
	return f.listing, nil
}

type fakeUploader struct {
	filename string
	doc      *services.UploadedDocument
	err      error
}

func (f *fakeUploader) UploadDocument(_ context.Context, fh *multipart.FileHeader, userID string) (*services.UploadedDocument, error) {
	f.filename = fh.Filename
	return f.doc, f.err
}

// asUser attaches a session for userID, as the Session middleware would.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithSession(r.Context(), &services.Session{ID: "sess", UserID: userID}))
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
