package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"nyumbacal/internal/model"
)

// TenantGORM is the `tenants` table.
type TenantGORM struct {
	gorm.Model
	TenantID   string          `gorm:"uniqueIndex;size:36;not null"`
	LandlordID string          `gorm:"size:64;index"`
	Name       string          `gorm:"size:255;not null"`
	Email      string          `gorm:"size:255"`
	Phone      string          `gorm:"size:64"`
	Property   string          `gorm:"size:255"`
	Unit       string          `gorm:"size:64"`
	Rent       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RentDueDay *int
	LeaseStart *time.Time
	LeaseEnd   *time.Time
}

func (TenantGORM) TableName() string    { return "tenants" }
func (r *TenantGORM) base() *gorm.Model { return &r.Model }

// MaintenanceGORM is the `maintenance_requests` table.
type MaintenanceGORM struct {
	gorm.Model
	RequestID         string `gorm:"uniqueIndex;size:36;not null"`
	LandlordID        string `gorm:"size:64;index"`
	Property          string `gorm:"size:255"`
	Unit              string `gorm:"size:64"`
	Issue             string `gorm:"size:255;not null"`
	Description       string `gorm:"type:text"`
	Priority          string `gorm:"size:32"`
	Status            string `gorm:"size:32;index"`
	AssignedTo        string `gorm:"size:255"`
	ScheduledDate     *time.Time
	EstimatedDuration string              `gorm:"size:64"`
	EstimatedCost     decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	ActualCost        decimal.NullDecimal `gorm:"type:numeric(14,2)"`
}

func (MaintenanceGORM) TableName() string    { return "maintenance_requests" }
func (r *MaintenanceGORM) base() *gorm.Model { return &r.Model }

// ViewingGORM is the `viewings` table. Imported viewings carry the feed
// source and the occurrence key they were expanded from.
type ViewingGORM struct {
	gorm.Model
	ViewingID     string    `gorm:"uniqueIndex;size:36;not null"`
	LandlordID    string    `gorm:"size:64;index"`
	Property      string    `gorm:"size:255"`
	ProspectName  string    `gorm:"size:255;not null"`
	ProspectPhone string    `gorm:"size:64"`
	Date          time.Time `gorm:"not null"`
	Time          string    `gorm:"size:5"`
	Status        string    `gorm:"size:32"`
	SourceID      string    `gorm:"size:64;index:idx_viewing_external"`
	ExternalUID   string    `gorm:"size:512;index:idx_viewing_external"`
}

func (ViewingGORM) TableName() string    { return "viewings" }
func (r *ViewingGORM) base() *gorm.Model { return &r.Model }

func tenantRow(t model.Tenant) *TenantGORM {
	return &TenantGORM{
		TenantID:   t.ID,
		LandlordID: t.LandlordID,
		Name:       t.Name,
		Email:      t.Email,
		Phone:      t.Phone,
		Property:   t.Property,
		Unit:       t.Unit,
		Rent:       t.Rent,
		RentDueDay: t.RentDueDay,
		LeaseStart: utcPtr(t.LeaseStart),
		LeaseEnd:   utcPtr(t.LeaseEnd),
	}
}

func (r *TenantGORM) toDomain() model.Tenant {
	return model.Tenant{
		ID:         r.TenantID,
		LandlordID: r.LandlordID,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Property:   r.Property,
		Unit:       r.Unit,
		Rent:       r.Rent,
		RentDueDay: r.RentDueDay,
		LeaseStart: deref(r.LeaseStart),
		LeaseEnd:   deref(r.LeaseEnd),
	}
}

func maintenanceRow(m model.MaintenanceRequest) *MaintenanceGORM {
	return &MaintenanceGORM{
		RequestID:         m.ID,
		LandlordID:        m.LandlordID,
		Property:          m.Property,
		Unit:              m.Unit,
		Issue:             m.Issue,
		Description:       m.Description,
		Priority:          m.Priority,
		Status:            m.Status,
		AssignedTo:        m.AssignedTo,
		ScheduledDate:     utcPtr(m.ScheduledDate),
		EstimatedDuration: m.EstimatedDuration,
		EstimatedCost:     m.EstimatedCost,
		ActualCost:        m.ActualCost,
	}
}

func (r *MaintenanceGORM) toDomain() model.MaintenanceRequest {
	return model.MaintenanceRequest{
		ID:                r.RequestID,
		LandlordID:        r.LandlordID,
		Property:          r.Property,
		Unit:              r.Unit,
		Issue:             r.Issue,
		Description:       r.Description,
		Priority:          r.Priority,
		Status:            r.Status,
		AssignedTo:        r.AssignedTo,
		ScheduledDate:     deref(r.ScheduledDate),
		EstimatedDuration: r.EstimatedDuration,
		EstimatedCost:     r.EstimatedCost,
		ActualCost:        r.ActualCost,
	}
}

func viewingRow(v model.Viewing) *ViewingGORM {
	return &ViewingGORM{
		ViewingID:     v.ID,
		LandlordID:    v.LandlordID,
		Property:      v.Property,
		ProspectName:  v.ProspectName,
		ProspectPhone: v.ProspectPhone,
		Date:          v.Date.UTC(),
		Time:          v.Time,
		Status:        v.Status,
		SourceID:      v.SourceID,
		ExternalUID:   v.ExternalUID,
	}
}

func (r *ViewingGORM) toDomain() model.Viewing {
	return model.Viewing{
		ID:            r.ViewingID,
		LandlordID:    r.LandlordID,
		Property:      r.Property,
		ProspectName:  r.ProspectName,
		ProspectPhone: r.ProspectPhone,
		Date:          r.Date.UTC(),
		Time:          r.Time,
		Status:        r.Status,
		SourceID:      r.SourceID,
		ExternalUID:   r.ExternalUID,
	}
}

// scoped restricts a query to one landlord; an empty landlord means all.
func scoped(db *gorm.DB, landlord string) *gorm.DB {
	if landlord == "" {
		return db
	}
	return db.Where("landlord_id = ?", landlord)
}

// Tenants lists tenants ordered by name.
func (s *Store) Tenants(ctx context.Context, landlord string) ([]model.Tenant, error) {
	var rows []TenantGORM
	if err := scoped(s.db.WithContext(ctx), landlord).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	out := make([]model.Tenant, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// MaintenanceRequests lists requests ordered by scheduled date.
func (s *Store) MaintenanceRequests(ctx context.Context, landlord string) ([]model.MaintenanceRequest, error) {
	var rows []MaintenanceGORM
	if err := scoped(s.db.WithContext(ctx), landlord).Order("scheduled_date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list maintenance requests: %w", err)
	}
	out := make([]model.MaintenanceRequest, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// Viewings lists viewings ordered by date.
func (s *Store) Viewings(ctx context.Context, landlord string) ([]model.Viewing, error) {
	var rows []ViewingGORM
	if err := scoped(s.db.WithContext(ctx), landlord).Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list viewings: %w", err)
	}
	out := make([]model.Viewing, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// Records loads everything a calendar is derived from.
func (s *Store) Records(ctx context.Context, landlord string) (model.Records, error) {
	var (
		recs model.Records
		err  error
	)
	if recs.Tenants, err = s.Tenants(ctx, landlord); err != nil {
		return model.Records{}, err
	}
	if recs.Maintenance, err = s.MaintenanceRequests(ctx, landlord); err != nil {
		return model.Records{}, err
	}
	if recs.Viewings, err = s.Viewings(ctx, landlord); err != nil {
		return model.Records{}, err
	}
	return recs, nil
}

// SaveTenant inserts or updates t, assigning an ID when it has none.
func (s *Store) SaveTenant(ctx context.Context, t *model.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := upsertBy(s.db.WithContext(ctx), "tenant_id", t.ID, tenantRow(*t)); err != nil {
		return fmt.Errorf("save tenant %s: %w", t.ID, err)
	}
	return nil
}

// SaveMaintenance inserts or updates r, assigning an ID when it has none.
func (s *Store) SaveMaintenance(ctx context.Context, r *model.MaintenanceRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, err := upsertBy(s.db.WithContext(ctx), "request_id", r.ID, maintenanceRow(*r)); err != nil {
		return fmt.Errorf("save maintenance request %s: %w", r.ID, err)
	}
	return nil
}

// SaveViewing inserts or updates v, assigning an ID when it has none.
func (s *Store) SaveViewing(ctx context.Context, v *model.Viewing) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if _, err := upsertBy(s.db.WithContext(ctx), "viewing_id", v.ID, viewingRow(*v)); err != nil {
		return fmt.Errorf("save viewing %s: %w", v.ID, err)
	}
	return nil
}

// SaveRecords writes every record in recs inside one transaction.
func (s *Store) SaveRecords(ctx context.Context, recs *model.Records) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := &Store{db: tx}
		for i := range recs.Tenants {
			if err := txs.SaveTenant(ctx, &recs.Tenants[i]); err != nil {
				return err
			}
		}
		for i := range recs.Maintenance {
			if err := txs.SaveMaintenance(ctx, &recs.Maintenance[i]); err != nil {
				return err
			}
		}
		for i := range recs.Viewings {
			if err := txs.SaveViewing(ctx, &recs.Viewings[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertExternalViewing stores a viewing imported from a feed, matching on
// (SourceID, ExternalUID). An existing row keeps its ID; v.ID is set to the
// stored ID either way.
func (s *Store) UpsertExternalViewing(ctx context.Context, v *model.Viewing) (created bool, err error) {
	if v.SourceID == "" || v.ExternalUID == "" {
		return false, &model.MissingFieldError{Record: "viewing", Field: "external_uid"}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ViewingGORM
		err := tx.Where("source_id = ? AND external_uid = ?", v.SourceID, v.ExternalUID).
			Take(&existing).Error
		switch {
		case err == nil:
			v.ID = existing.ViewingID
		case isNotFound(err):
			v.ID = uuid.NewString()
		default:
			return err
		}
		created, err = upsertBy(tx, "viewing_id", v.ID, viewingRow(*v))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert viewing %s/%s: %w", v.SourceID, v.ExternalUID, err)
	}
	return created, nil
}

// DeleteStaleViewings removes imported viewings of source dated on or
// after since whose external UID is not in keep. A zero since matches all.
func (s *Store) DeleteStaleViewings(ctx context.Context, source string, since time.Time, keep []string) (int64, error) {
	q := s.db.WithContext(ctx).Unscoped().Where("source_id = ?", source)
	if !since.IsZero() {
		q = q.Where("date >= ?", since.UTC())
	}
	if len(keep) > 0 {
		q = q.Where("external_uid NOT IN ?", keep)
	}
	res := q.Delete(&ViewingGORM{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale viewings for %s: %w", source, res.Error)
	}
	return res.RowsAffected, nil
}
