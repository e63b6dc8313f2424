package repositories

import (
	"context"
	"time"

	"github.com/you/kioskpay/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DonorRepositoryImpl implements domain.DonorRepository using GORM
type DonorRepositoryImpl struct {
	db *gorm.DB
}

// DBDonor represents the database model for a donor profile
type DBDonor struct {
	ID         uint   `gorm:"primaryKey"`
	Phone      string `gorm:"uniqueIndex;size:16"`
	FirstName  string `gorm:"size:128"`
	LastName   string `gorm:"size:128"`
	NationalID string `gorm:"size:16"`
	Email      string `gorm:"size:255"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (DBDonor) TableName() string {
	return "donors"
}

// NewDonorRepository creates a new donor profile repository
func NewDonorRepository(db *gorm.DB) domain.DonorRepository {
	return &DonorRepositoryImpl{db: db}
}

// Upsert implements domain.DonorRepository
func (r *DonorRepositoryImpl) Upsert(ctx context.Context, profile *domain.DonorProfile) error {
	row := &DBDonor{
		Phone:      domain.NormalizePhone(profile.Phone),
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		NationalID: profile.NationalID,
		Email:      profile.Email,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "national_id", "email", "updated_at"}),
	}).Create(row).Error
}

// FindByPhone implements domain.DonorRepository
func (r *DonorRepositoryImpl) FindByPhone(ctx context.Context, phone string) (*domain.DonorProfile, error) {
	var row DBDonor
	err := r.db.WithContext(ctx).Where("phone = ?", domain.NormalizePhone(phone)).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrDonorUnknown
		}
		return nil, err
	}
	return &domain.DonorProfile{
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Phone:      row.Phone,
		NationalID: row.NationalID,
		Email:      row.Email,
	}, nil
}

// Models lists the GORM models owned by this package for migration
func Models() []interface{} {
	return []interface{}{&DBPaymentAttempt{}, &DBDonor{}}
}
