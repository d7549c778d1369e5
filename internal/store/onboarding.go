package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nyumbacal/internal/onboarding"
)

// OnboardingGORM is the `onboarding_status` table, one row per user that
// has finished setup.
type OnboardingGORM struct {
	UserID      string    `gorm:"primaryKey;size:128"`
	CompletedAt time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

func (OnboardingGORM) TableName() string { return "onboarding_status" }

// OnboardingStore is the authoritative onboarding.StatusStore.
type OnboardingStore struct {
	db *gorm.DB
}

var _ onboarding.StatusStore = (*OnboardingStore)(nil)

func (s *Store) Onboarding() *OnboardingStore {
	return &OnboardingStore{db: s.db}
}

func (o *OnboardingStore) Completed(ctx context.Context, user string) (bool, error) {
	var row OnboardingGORM
	err := o.db.WithContext(ctx).Where("user_id = ?", user).Take(&row).Error
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read onboarding status: %w", err)
	}
	return true, nil
}

func (o *OnboardingStore) MarkCompleted(ctx context.Context, user string) error {
	row := OnboardingGORM{UserID: user, CompletedAt: time.Now().UTC()}
	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("mark onboarding completed: %w", err)
	}
	return nil
}

func (o *OnboardingStore) Reset(ctx context.Context, user string) error {
	err := o.db.WithContext(ctx).Where("user_id = ?", user).Delete(&OnboardingGORM{}).Error
	if err != nil {
		return fmt.Errorf("reset onboarding status: %w", err)
	}
	return nil
}
