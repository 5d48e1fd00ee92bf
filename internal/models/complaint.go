package models

import (
	"time"
)

// ComplaintCategory is one of the fixed grievance categories.
type ComplaintCategory string

const (
	CategoryWater        ComplaintCategory = "water"
	CategorySanitation   ComplaintCategory = "sanitation"
	CategoryStreetlights ComplaintCategory = "streetlights"
	CategoryRoads        ComplaintCategory = "roads"
	CategoryGarbage      ComplaintCategory = "garbage"
	CategoryDrainage     ComplaintCategory = "drainage"
	CategoryElectricity  ComplaintCategory = "electricity"
	CategoryParks        ComplaintCategory = "parks"
)

// ComplaintCategories lists every category in display order.
var ComplaintCategories = []ComplaintCategory{
	CategoryWater,
	CategorySanitation,
	CategoryStreetlights,
	CategoryRoads,
	CategoryGarbage,
	CategoryDrainage,
	CategoryElectricity,
	CategoryParks,
}

var categoryNames = map[ComplaintCategory]string{
	CategoryWater:        "Water Supply",
	CategorySanitation:   "Sanitation",
	CategoryStreetlights: "Street Lights",
	CategoryRoads:        "Roads",
	CategoryGarbage:      "Garbage Collection",
	CategoryDrainage:     "Drainage",
	CategoryElectricity:  "Electricity",
	CategoryParks:        "Parks & Recreation",
}

func (c ComplaintCategory) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the label shown to citizens, or the raw value if unknown.
func (c ComplaintCategory) DisplayName() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return string(c)
}

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "Submitted"
	StatusInProgress ComplaintStatus = "In Progress"
	StatusResolved   ComplaintStatus = "Resolved"
	StatusClosed     ComplaintStatus = "Closed"
)

// ComplaintStatuses lists every status in lifecycle order.
var ComplaintStatuses = []ComplaintStatus{StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed}

// transitions maps a status to the only status it may advance to.
var transitions = map[ComplaintStatus]ComplaintStatus{
	StatusSubmitted:  StatusInProgress,
	StatusInProgress: StatusResolved,
	StatusResolved:   StatusClosed,
}

func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// NextStatus returns the single forward step from current. ok is false for
// Closed and for values outside the lifecycle.
func NextStatus(current ComplaintStatus) (next ComplaintStatus, ok bool) {
	next, ok = transitions[current]
	return next, ok
}

// Complaint is a citizen-submitted grievance.
type Complaint struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Category    ComplaintCategory `json:"category"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	Location    *string           `json:"location"`
	Status      ComplaintStatus   `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// AdminComplaintView decorates a complaint with the action an admin may take on it.
type AdminComplaintView struct {
	Complaint
	CategoryName string           `json:"category_name"`
	NextStatus   *ComplaintStatus `json:"next_status"`
}

// NewAdminComplaintView builds the admin row for c.
func NewAdminComplaintView(c Complaint) AdminComplaintView {
	v := AdminComplaintView{Complaint: c, CategoryName: c.Category.DisplayName()}
	if next, ok := NextStatus(c.Status); ok {
		v.NextStatus = &next
	}
	return v
}

// ComplaintFilter narrows the admin listing. Zero values mean "no filter".
type ComplaintFilter struct {
	Status   ComplaintStatus
	Category ComplaintCategory
	Limit    int
	Offset   int
}
