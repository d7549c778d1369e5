package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nyumbacal/internal/model"
)

// DecodeDocuments reads records exported from a document database. Field
// names may be camelCase or snake_case and timestamps may use any shape
// model.ToInstant understands; naive dates are read in loc.
//
//	{"tenants": [...], "maintenance": [...], "viewings": [...]}
func DecodeDocuments(r io.Reader, loc *time.Location) (model.Records, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string][]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return model.Records{}, &model.InvalidRecordError{Record: "document", Field: "body", Reason: "not a JSON object of record lists", Err: err}
	}

	var recs model.Records
	for i, doc := range raw["tenants"] {
		t, err := decodeTenant(document(doc), loc)
		if err != nil {
			return model.Records{}, fmt.Errorf("tenants[%d]: %w", i, err)
		}
		recs.Tenants = append(recs.Tenants, t)
	}
	for _, key := range []string{"maintenance", "maintenanceRequests", "maintenance_requests"} {
		for i, doc := range raw[key] {
			m, err := decodeMaintenance(document(doc), loc)
			if err != nil {
				return model.Records{}, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			recs.Maintenance = append(recs.Maintenance, m)
		}
	}
	for i, doc := range raw["viewings"] {
		v, err := decodeViewing(document(doc), loc)
		if err != nil {
			return model.Records{}, fmt.Errorf("viewings[%d]: %w", i, err)
		}
		recs.Viewings = append(recs.Viewings, v)
	}
	return recs, nil
}

// DecodeDocumentBytes is DecodeDocuments over an in-memory body.
func DecodeDocumentBytes(body []byte, loc *time.Location) (model.Records, error) {
	return DecodeDocuments(bytes.NewReader(body), loc)
}

type document map[string]any

// lookup returns the first present, non-null value among keys.
func (d document) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (d document) str(keys ...string) string {
	v, ok := d.lookup(keys...)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	}
	return ""
}

func (d document) instant(record, field string, loc *time.Location, keys ...string) (time.Time, error) {
	v, ok := d.lookup(keys...)
	if !ok {
		return time.Time{}, nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := model.ToInstant(v, loc)
	if err != nil {
		return time.Time{}, &model.InvalidRecordError{Record: record, Field: field, Reason: "unparseable timestamp", Err: err}
	}
	return t, nil
}

func (d document) money(record, field string, keys ...string) (decimal.NullDecimal, error) {
	v, ok := d.lookup(keys...)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
	default:
		return decimal.NullDecimal{}, &model.InvalidRecordError{Record: record, Field: field, Reason: fmt.Sprintf("unsupported amount type %T", v)}
	}
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, &model.InvalidRecordError{Record: record, Field: field, Reason: "not a number", Err: err}
	}
	return decimal.NewNullDecimal(amt), nil
}

func decodeTenant(d document, loc *time.Location) (model.Tenant, error) {
	t := model.Tenant{
		ID:         d.str("id", "tenantId", "tenant_id"),
		LandlordID: d.str("landlordId", "landlord_id"),
		Name:       d.str("name"),
		Email:      d.str("email"),
		Phone:      d.str("phone"),
		Property:   d.str("property"),
		Unit:       d.str("unit"),
	}

	rent, err := d.money("tenant", "rent", "rent")
	if err != nil {
		return t, err
	}
	t.Rent = rent.Decimal

	if v, ok := d.lookup("rentDueDay", "rent_due_day"); ok {
		day, err := wholeNumber(v)
		if err != nil {
			return t, &model.InvalidRecordError{Record: "tenant", Field: "rent_due_day", Reason: "not a whole number", Err: err}
		}
		t.RentDueDay = &day
	}

	if t.LeaseStart, err = d.instant("tenant", "lease_start", loc, "leaseStart", "lease_start"); err != nil {
		return t, err
	}
	if t.LeaseEnd, err = d.instant("tenant", "lease_end", loc, "leaseEnd", "lease_end"); err != nil {
		return t, err
	}
	return t, nil
}

func decodeMaintenance(d document, loc *time.Location) (model.MaintenanceRequest, error) {
	m := model.MaintenanceRequest{
		ID:                d.str("id", "requestId", "request_id"),
		LandlordID:        d.str("landlordId", "landlord_id"),
		Property:          d.str("property"),
		Unit:              d.str("unit"),
		Issue:             d.str("issue"),
		Description:       d.str("description"),
		Priority:          d.str("priority"),
		Status:            d.str("status"),
		AssignedTo:        d.str("assignedTo", "assigned_to"),
		EstimatedDuration: d.str("estimatedDuration", "estimated_duration"),
	}

	var err error
	if m.ScheduledDate, err = d.instant("maintenance", "scheduled_date", loc, "scheduledDate", "scheduled_date"); err != nil {
		return m, err
	}
	if m.EstimatedCost, err = d.money("maintenance", "estimated_cost", "estimatedCost", "estimated_cost"); err != nil {
		return m, err
	}
	if m.ActualCost, err = d.money("maintenance", "actual_cost", "actualCost", "actual_cost"); err != nil {
		return m, err
	}
	return m, nil
}

func decodeViewing(d document, loc *time.Location) (model.Viewing, error) {
	v := model.Viewing{
		ID:            d.str("id", "viewingId", "viewing_id"),
		LandlordID:    d.str("landlordId", "landlord_id"),
		Property:      d.str("property"),
		ProspectName:  d.str("prospectName", "prospect_name"),
		ProspectPhone: d.str("prospectPhone", "prospect_phone"),
		Time:          d.str("time"),
		Status:        d.str("status"),
	}
	var err error
	if v.Date, err = d.instant("viewing", "date", loc, "date"); err != nil {
		return v, err
	}
	return v, nil
}

func wholeNumber(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	case float64:
		if x != float64(int(x)) {
			return 0, fmt.Errorf("%v has a fraction", x)
		}
		return int(x), nil
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}
