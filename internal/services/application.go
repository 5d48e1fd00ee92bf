package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	applicationIDMin     = 100000
	applicationIDMax     = 999999
	applicationIDRetries = 3
	MaxApplicationList   = 100
)

// ErrDuplicateApplicationID is returned by a store when the generated id collides.
var ErrDuplicateApplicationID = errors.New("duplicate application id")

// ApplicationStore persists service applications.
type ApplicationStore interface {
	Insert(ctx context.Context, app *models.ServiceApplication) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ServiceApplication, error)
}

// ApplicationService validates and files online service forms.
type ApplicationService struct {
	store    ApplicationStore
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewApplicationService(store ApplicationStore, log *zap.Logger) *ApplicationService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ApplicationService{store: store, validate: v, log: log, now: time.Now}
}

// newForm returns an empty form struct for t.
func newForm(t models.ApplicationType) interface{} {
	switch t {
	case models.AppBirthDeath:
		return &models.BirthDeathForm{}
	case models.AppBuildingPermit:
		return &models.BuildingPermitForm{}
	case models.AppMarriageRegistration:
		return &models.MarriageRegistrationForm{}
	case models.AppPropertyTax:
		return &models.PropertyTaxForm{}
	case models.AppTradeLicense:
		return &models.TradeLicenseForm{}
	case models.AppWaterBill:
		return &models.WaterBillForm{}
	}
	return nil
}

// Submit validates the raw JSON form for t and stores it under a fresh
// application id.
func (s *ApplicationService) Submit(ctx context.Context, t models.ApplicationType, raw json.RawMessage, userID, ip string) (*models.ServiceApplication, error) {
	prefix, ok := t.Prefix()
	form := newForm(t)
	if !ok || form == nil {
		return nil, ErrNotFound
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(form); err != nil {
		return nil, &utils.ValidationError{Field: "body", Message: "Invalid application form"}
	}
	sanitizeStrings(form)
	if err := s.validate.StructCtx(ctx, form); err != nil {
		return nil, translateValidation(err)
	}

	fields, err := toFieldMap(form)
	if err != nil {
		return nil, err
	}
	var docs []string
	if d, ok := fields["documents"].([]interface{}); ok {
		for _, u := range d {
			if str, ok := u.(string); ok {
				docs = append(docs, str)
			}
		}
		delete(fields, "documents")
	}

	app := &models.ServiceApplication{
		Type:      t,
		UserID:    userID,
		Fields:    fields,
		Documents: docs,
		Status:    models.ApplicationStatusReceived,
		IPAddress: ip,
		CreatedAt: s.now().UTC(),
	}
	for attempt := 0; attempt < applicationIDRetries; attempt++ {
		id, err := newApplicationID(prefix)
		if err != nil {
			return nil, err
		}
		app.ApplicationID = id
		err = s.store.Insert(ctx, app)
		if errors.Is(err, ErrDuplicateApplicationID) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store application: %w", err)
		}
		metrics.ApplicationsSubmitted.WithLabelValues(string(t)).Inc()
		s.log.Info("service application received",
			zap.String("application_id", app.ApplicationID),
			zap.String("type", string(t)),
		)
		return app, nil
	}
	return nil, fmt.Errorf("store application: %w", ErrDuplicateApplicationID)
}

// ListByUser returns the caller's applications, newest first.
func (s *ApplicationService) ListByUser(ctx context.Context, userID string) ([]models.ServiceApplication, error) {
	return s.store.ListByUser(ctx, userID, MaxApplicationList)
}

// ConfirmationMessage is shown to the applicant after a successful submission.
func ConfirmationMessage(t models.ApplicationType, id string) string {
	if t == models.AppWaterBill || t == models.AppPropertyTax {
		return fmt.Sprintf("Payment recorded successfully. Your transaction ID is %s", id)
	}
	return fmt.Sprintf("Application submitted successfully. Your application ID is %s", id)
}

func newApplicationID(prefix string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(applicationIDMax-applicationIDMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", prefix, n.Int64()+applicationIDMin), nil
}

// sanitizeStrings runs SanitizeText over every string field of a form struct.
func sanitizeStrings(form interface{}) {
	v := reflect.ValueOf(form).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() == reflect.String && f.CanSet() {
			f.SetString(utils.SanitizeText(f.String()))
		}
	}
}

func toFieldMap(form interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// translateValidation turns the first validator failure into a field error.
func translateValidation(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &utils.ValidationError{Field: "body", Message: "Invalid application form"}
	}
	fe := ves[0]
	field := fe.Field()
	label := humanize(field)
	var msg string
	switch fe.Tag() {
	case "required":
		msg = label + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		} else {
			msg = fmt.Sprintf("%s must be at least %s", label, fe.Param())
		}
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "lte":
		msg = fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "email":
		msg = "Please enter a valid email address"
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		msg = label + " must be a date in YYYY-MM-DD format"
	case "url":
		msg = "Documents must be valid URLs"
	default:
		msg = label + " is invalid"
	}
	return &utils.ValidationError{Field: field, Message: msg}
}

func humanize(field string) string {
	if i := strings.Index(field, "["); i >= 0 {
		field = field[:i]
	}
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
