package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the iCalendar STATUS value carried by a CalendarEvent.
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCompleted EventStatus = "COMPLETED"
)

// DefaultEventDuration is used when a derived event has no explicit length.
const DefaultEventDuration = time.Hour

// EventKind names the domain record an event was derived from.
type EventKind string

const (
	KindRent        EventKind = "rent"
	KindMaintenance EventKind = "maintenance"
	KindLease       EventKind = "lease"
	KindViewing     EventKind = "viewing"
)

// CalendarEvent is the uniform, ephemeral event shape produced from domain
// records. It is never persisted; Start and End are concrete instants.
type CalendarEvent struct {
	Kind     EventKind `json:"kind"`
	RecordID string    `json:"record_id,omitempty"`

	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Status      EventStatus `json:"status"`
}

// EndOrDefault returns End, or Start plus DefaultEventDuration when End is unset.
func (e CalendarEvent) EndOrDefault() time.Time {
	if e.End.IsZero() {
		return e.Start.Add(DefaultEventDuration)
	}
	return e.End
}

// Validate enforces the invariants every serialized or linked event must hold.
func (e CalendarEvent) Validate() error {
	if e.Title == "" {
		return &MissingFieldError{Record: "event", Field: "title"}
	}
	if e.Start.IsZero() {
		return &MissingFieldError{Record: "event", Field: "start"}
	}
	if !e.EndOrDefault().After(e.Start) {
		return &InvalidRecordError{Record: "event", Field: "end", Reason: "end must be after start"}
	}
	return nil
}

// Tenant is a tenancy as stored by the data layer.
type Tenant struct {
	ID         string          `json:"id"`
	LandlordID string          `json:"landlord_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Property   string          `json:"property"`
	Unit       string          `json:"unit"`
	Rent       decimal.Decimal `json:"rent"`

	// RentDueDay is the day of month rent falls due; nil means the default.
	RentDueDay *int `json:"rent_due_day,omitempty"`

	LeaseStart time.Time `json:"lease_start"`
	LeaseEnd   time.Time `json:"lease_end"`
}

// MaintenanceRequest is a repair or upkeep job raised against a property.
type MaintenanceRequest struct {
	ID          string `json:"id"`
	LandlordID  string `json:"landlord_id"`
	Property    string `json:"property"`
	Unit        string `json:"unit"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assigned_to"`

	ScheduledDate time.Time `json:"scheduled_date"`

	// EstimatedDuration is free text such as "3 hours".
	EstimatedDuration string `json:"estimated_duration"`

	EstimatedCost decimal.NullDecimal `json:"estimated_cost"`
	ActualCost    decimal.NullDecimal `json:"actual_cost"`
}

// Viewing is a prospective tenant's appointment to view a property.
type Viewing struct {
	ID            string    `json:"id"`
	LandlordID    string    `json:"landlord_id"`
	Property      string    `json:"property"`
	ProspectName  string    `json:"prospect_name"`
	ProspectPhone string    `json:"prospect_phone"`
	Date          time.Time `json:"date"`
	// Time is the local "HH:MM" start of the viewing.
	Time   string `json:"time"`
	Status string `json:"status"`

	// ExternalUID identifies viewings imported from an external feed.
	ExternalUID string `json:"external_uid,omitempty"`
	SourceID    string `json:"source_id,omitempty"`
}

// Records is the set of domain records a calendar is derived from.
type Records struct {
	Tenants     []Tenant             `json:"tenants"`
	Maintenance []MaintenanceRequest `json:"maintenance"`
	Viewings    []Viewing            `json:"viewings"`
}

// AssignLandlord sets LandlordID on every record that has none.
func (r *Records) AssignLandlord(id string) {
	for i := range r.Tenants {
		if r.Tenants[i].LandlordID == "" {
			r.Tenants[i].LandlordID = id
		}
	}
	for i := range r.Maintenance {
		if r.Maintenance[i].LandlordID == "" {
			r.Maintenance[i].LandlordID = id
		}
	}
	for i := range r.Viewings {
		if r.Viewings[i].LandlordID == "" {
			r.Viewings[i].LandlordID = id
		}
	}
}
