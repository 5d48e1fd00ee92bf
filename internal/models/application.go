package models

import "time"

// ApplicationType identifies one of the online service forms.
type ApplicationType string

const (
	AppBirthDeath           ApplicationType = "birth-death"
	AppBuildingPermit       ApplicationType = "building-permit"
	AppMarriageRegistration ApplicationType = "marriage-registration"
	AppPropertyTax          ApplicationType = "property-tax"
	AppTradeLicense         ApplicationType = "trade-license"
	AppWaterBill            ApplicationType = "water-bill"
)

var applicationPrefixes = map[ApplicationType]string{
	AppBirthDeath:           "BD",
	AppBuildingPermit:       "BP",
	AppMarriageRegistration: "MR",
	AppPropertyTax:          "PT",
	AppTradeLicense:         "TL",
	AppWaterBill:            "WB",
}

// Prefix returns the application-ID prefix for t and whether t is a known form.
func (t ApplicationType) Prefix() (string, bool) {
	p, ok := applicationPrefixes[t]
	return p, ok
}

const ApplicationStatusReceived = "Received"

// ServiceApplication is a submitted service form, stored in MongoDB.
type ServiceApplication struct {
	ApplicationID string                 `bson:"application_id" json:"application_id"`
	Type          ApplicationType        `bson:"type" json:"type"`
	UserID        string                 `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Fields        map[string]interface{} `bson:"fields" json:"fields"`
	Documents     []string               `bson:"documents,omitempty" json:"documents,omitempty"`
	Status        string                 `bson:"status" json:"status"`
	IPAddress     string                 `bson:"ip_address,omitempty" json:"-"`
	CreatedAt     time.Time              `bson:"created_at" json:"created_at"`
}

// BirthDeathForm requests a birth or death certificate.
type BirthDeathForm struct {
	CertificateType   string   `json:"certificate_type" validate:"required,oneof=birth death"`
	ApplicantName     string   `json:"applicant_name" validate:"required,min=3"`
	ApplicantRelation string   `json:"applicant_relation" validate:"required,min=2"`
	PersonName        string   `json:"person_name" validate:"required,min=3"`
	Date              string   `json:"date" validate:"required,datetime=2006-01-02"`
	Address           string   `json:"address" validate:"required,min=10"`
	MobileNumber      string   `json:"mobile_number" validate:"required,min=10"`
	Email             string   `json:"email" validate:"required,email"`
	Purpose           string   `json:"purpose,omitempty"`
	Documents         []string `json:"documents,omitempty" validate:"omitempty,dive,url"`
}

// BuildingPermitForm applies for a construction permit.
type BuildingPermitForm struct {
	OwnerName          string   `json:"owner_name" validate:"required,min=3"`
	PermitType         string   `json:"permit_type" validate:"required,oneof=new renovation demolition addition"`
	PropertyAddress    string   `json:"property_address" validate:"required,min=10"`
	LandArea           string   `json:"land_area" validate:"required"`
	BuildingArea       string   `json:"building_area" validate:"required"`
	ProjectDescription string   `json:"project_description" validate:"required,min=20"`
	StartDate          string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Mobile             string   `json:"mobile" validate:"required,min=10"`
	Email              string   `json:"email" validate:"required,email"`
	Documents          []string `json:"documents,omitempty" validate:"omitempty,dive,url"`
}

// MarriageRegistrationForm registers a marriage.
type MarriageRegistrationForm struct {
	HusbandName    string   `json:"husband_name" validate:"required,min=3"`
	HusbandAge     int      `json:"husband_age" validate:"required,gte=21"`
	HusbandAddress string   `json:"husband_address" validate:"required,min=10"`
	WifeName       string   `json:"wife_name" validate:"required,min=3"`
	WifeAge        int      `json:"wife_age" validate:"required,gte=18"`
	WifeAddress    string   `json:"wife_address" validate:"required,min=10"`
	MarriageDate   string   `json:"marriage_date" validate:"required,datetime=2006-01-02"`
	MarriagePlace  string   `json:"marriage_place" validate:"required,min=5"`
	MarriageType   string   `json:"marriage_type" validate:"required,oneof=hindu special christian muslim other"`
	Mobile         string   `json:"mobile" validate:"required,min=10"`
	Email          string   `json:"email" validate:"required,email"`
	WitnessDetails string   `json:"witness_details" validate:"required,min=10"`
	Documents      []string `json:"documents,omitempty" validate:"omitempty,dive,url"`
}

// PropertyTaxForm records a property tax payment.
type PropertyTaxForm struct {
	PropertyID      string `json:"property_id" validate:"required,min=5"`
	OwnerName       string `json:"owner_name" validate:"required,min=3"`
	PropertyAddress string `json:"property_address" validate:"required,min=10"`
	PropertyType    string `json:"property_type" validate:"required,oneof=residential commercial industrial vacant"`
	AssessmentYear  int    `json:"assessment_year" validate:"required,gte=2000,lte=2100"`
	Mobile          string `json:"mobile" validate:"required,min=10"`
	Email           string `json:"email" validate:"required,email"`
}

// TradeLicenseForm applies for or renews a trade license.
type TradeLicenseForm struct {
	ApplicationType string   `json:"application_type" validate:"required,oneof=new renewal"`
	BusinessName    string   `json:"business_name" validate:"required,min=3"`
	OwnerName       string   `json:"owner_name" validate:"required,min=3"`
	BusinessType    string   `json:"business_type" validate:"required,oneof=retail restaurant service manufacturing other"`
	BusinessAddress string   `json:"business_address" validate:"required,min=10"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Mobile          string   `json:"mobile" validate:"required,min=10"`
	Email           string   `json:"email" validate:"required,email"`
	AdditionalInfo  string   `json:"additional_info,omitempty"`
	Documents       []string `json:"documents,omitempty" validate:"omitempty,dive,url"`
}

// WaterBillForm records a water bill payment.
type WaterBillForm struct {
	ConsumerName      string `json:"consumer_name" validate:"required,min=3"`
	ConsumerNumber    string `json:"consumer_number" validate:"required,min=5"`
	ConnectionAddress string `json:"connection_address" validate:"required,min=10"`
	BillMonth         string `json:"bill_month" validate:"required,oneof=january february march april may june july august september october november december"`
	BillYear          int    `json:"bill_year" validate:"required,gte=2000,lte=2100"`
	Mobile            string `json:"mobile" validate:"required,min=10"`
	Email             string `json:"email" validate:"required,email"`
}
