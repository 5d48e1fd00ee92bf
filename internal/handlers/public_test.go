package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnshRaj112/municipal-portal-backend/internal/content"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogue(t *testing.T) *content.Catalogue {
	t.Helper()
	c, err := content.Load("")
	require.NoError(t, err)
	return c
}

func TestDepartmentLookup(t *testing.T) {
	h := New(Deps{Content: catalogue(t)})

	rec := httptest.NewRecorder()
	h.GetDepartment(rec, withParams(httptest.NewRequest(http.MethodGet, "/x", nil), "id", "water"))
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody(t, rec)["department"].(map[string]interface{})
	assert.Equal(t, "water", d["id"])
	assert.NotNil(t, d["contact_info"])

	rec = httptest.NewRecorder()
	h.GetDepartment(rec, withParams(httptest.NewRequest(http.MethodGet, "/x", nil), "id", "space"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Department details not found", decodeBody(t, rec)["message"])
}

func TestZonalOfficeLookup(t *testing.T) {
	h := New(Deps{Content: catalogue(t)})

	rec := httptest.NewRecorder()
	h.ListZonalOffices(rec, httptest.NewRequest(http.MethodGet, "/api/zonal-offices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["zones"], 5)

	rec = httptest.NewRecorder()
	h.GetZonalOffice(rec, withParams(httptest.NewRequest(http.MethodGet, "/x", nil), "id", "lunar"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Zone information not found", decodeBody(t, rec)["message"])
}

func TestServicesAndCategories(t *testing.T) {
	h := New(Deps{Content: catalogue(t)})

	rec := httptest.NewRecorder()
	h.ListServices(rec, httptest.NewRequest(http.MethodGet, "/api/services", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["services"], 6)

	rec = httptest.NewRecorder()
	h.ListComplaintCategories(rec, httptest.NewRequest(http.MethodGet, "/api/complaint-categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decodeBody(t, rec)["categories"].([]interface{})
	require.Len(t, cats, len(models.ComplaintCategories))
	assert.Equal(t, "Water Supply", cats[0].(map[string]interface{})["name"])
}

var validContact = ContactRequest{
	Name:    "Ravi Kumar",
	Email:   "Ravi@Example.com",
	Subject: "Tax receipt",
	Message: "I have not received the receipt for my property tax payment.",
}

func TestSubmitContactForwardsToInbox(t *testing.T) {
	mailer := &fakeMailer{}
	limiter := &fakeLimiter{}
	h := New(Deps{Mailer: mailer, Limiter: limiter, ContactInbox: "info@municipalcorp.gov.in"})

	r := jsonRequest(t, http.MethodPost, "/api/contact", validContact)
	r.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	h.SubmitContact(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "info@municipalcorp.gov.in", msg.To)
	assert.Equal(t, "ravi@example.com", msg.ReplyTo)
	assert.Equal(t, "[Contact] Tax receipt", msg.Subject)
	assert.Equal(t, []string{services.ActionContact + ":198.51.100.7"}, limiter.attempts)
}

func TestSubmitContactMailerFailureStillAcknowledged(t *testing.T) {
	h := New(Deps{Mailer: &fakeMailer{err: errors.New("sendgrid: 401")}, ContactInbox: "info@municipalcorp.gov.in"})

	rec := httptest.NewRecorder()
	h.SubmitContact(rec, jsonRequest(t, http.MethodPost, "/api/contact", validContact))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitContactValidation(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*ContactRequest)
	}{
		{"name", func(c *ContactRequest) { c.Name = "R" }},
		{"email", func(c *ContactRequest) { c.Email = "ravi@" }},
		{"subject", func(c *ContactRequest) { c.Subject = "<>" }},
		{"message", func(c *ContactRequest) { c.Message = "help" }},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			limiter := &fakeLimiter{}
			h := New(Deps{Limiter: limiter})
			req := validContact
			tc.mutate(&req)

			rec := httptest.NewRecorder()
			h.SubmitContact(rec, jsonRequest(t, http.MethodPost, "/api/contact", req))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.field, decodeBody(t, rec)["field"])
			assert.Empty(t, limiter.attempts)
		})
	}
}

func TestSubmitContactRateLimited(t *testing.T) {
	mailer := &fakeMailer{}
	h := New(Deps{Mailer: mailer, Limiter: &fakeLimiter{deny: true}, ContactInbox: "info@municipalcorp.gov.in"})

	rec := httptest.NewRecorder()
	h.SubmitContact(rec, jsonRequest(t, http.MethodPost, "/api/contact", validContact))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, mailer.sent)
}

func TestSubmitApplication(t *testing.T) {
	apps := &fakeApplications{app: &models.ServiceApplication{ApplicationID: "WB482913", Type: models.AppWaterBill}}
	h := New(Deps{Applications: apps})

	body := map[string]string{"consumer_number": "WB-1001"}
	r := withParams(asUser(jsonRequest(t, http.MethodPost, "/x", body), citizenID), "type", "water-bill")
	rec := httptest.NewRecorder()
	h.SubmitApplication(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "WB482913", resp["application_id"])
	assert.Contains(t, resp["message"], "transaction ID is WB482913")
	assert.Equal(t, citizenID, apps.userID)
	assert.JSONEq(t, `{"consumer_number":"WB-1001"}`, string(apps.raw))
}

func TestSubmitApplicationAnonymous(t *testing.T) {
	apps := &fakeApplications{app: &models.ServiceApplication{ApplicationID: "BD100200"}}
	h := New(Deps{Applications: apps})

	r := withParams(jsonRequest(t, http.MethodPost, "/x", map[string]string{}), "type", "birth-death")
	rec := httptest.NewRecorder()
	h.SubmitApplication(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, apps.userID)
	assert.Contains(t, decodeBody(t, rec)["message"], "application ID is BD100200")
}

func TestSubmitApplicationUnknownType(t *testing.T) {
	apps := &fakeApplications{}
	h := New(Deps{Applications: apps})

	r := withParams(jsonRequest(t, http.MethodPost, "/x", map[string]string{}), "type", "dog-license")
	rec := httptest.NewRecorder()
	h.SubmitApplication(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, apps.raw)
}

func TestListMyApplicationsEmpty(t *testing.T) {
	h := New(Deps{Applications: &fakeApplications{}})

	rec := httptest.NewRecorder()
	h.ListMyApplications(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/services/applications", nil), citizenID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applications":[]`)
}

func multipartUpload(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUploadDocument(t *testing.T) {
	uploader := &fakeUploader{doc: &services.UploadedDocument{URL: "https://res.cloudinary.com/demo/deed.pdf", ContentType: "application/pdf"}}
	h := New(Deps{Uploader: uploader})

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, asUser(multipartUpload(t, "file", "deed.pdf", []byte("%PDF-1.4 test")), citizenID))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "deed.pdf", uploader.filename)
	assert.Equal(t, "https://res.cloudinary.com/demo/deed.pdf", decodeBody(t, rec)["url"])
}

func TestUploadDocumentMissingFile(t *testing.T) {
	h := New(Deps{Uploader: &fakeUploader{}})

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, asUser(multipartUpload(t, "attachment", "deed.pdf", []byte("x")), citizenID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeBody(t, rec)["message"])
}

func TestUploadUnavailable(t *testing.T) {
	h := New(Deps{})

	rec := httptest.NewRecorder()
	h.UploadDocument(rec, asUser(multipartUpload(t, "file", "a.pdf", []byte("x")), citizenID))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	h := New(Deps{Checks: map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("dial tcp: refused") },
	}})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "unavailable", checks["redis"])
	assert.False(t, strings.Contains(rec.Body.String(), "refused"))
}

func TestHealthWithoutChecks(t *testing.T) {
	h := New(Deps{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
