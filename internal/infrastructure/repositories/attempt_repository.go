package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/you/kioskpay/domain"
	"gorm.io/gorm"
)

// ErrAttemptNotFound is returned when the ledger has no row for a transaction
var ErrAttemptNotFound = errors.New("payment attempt not found")

// AttemptRepositoryImpl implements domain.AttemptRepository using GORM
type AttemptRepositoryImpl struct {
	db *gorm.DB
}

// DBPaymentAttempt represents the database model for a payment attempt
type DBPaymentAttempt struct {
	ID            uint      `gorm:"primaryKey"`
	SessionID     string    `gorm:"index;size:64"`
	TransactionID string    `gorm:"uniqueIndex;size:64"`
	AttemptNumber int       `gorm:"not null"`
	Method        string    `gorm:"size:64"`
	NextAction    string    `gorm:"size:16"`
	Amount        int       `gorm:"not null"`
	Months        int
	Unlimited     bool
	TargetItemID  string    `gorm:"size:64"`
	DonorPhone    string    `gorm:"index;size:16"`
	Status        string    `gorm:"index;size:16"`
	DocumentID    string    `gorm:"size:128"`
	GatewayCode   string    `gorm:"size:16"`
	Message       string    `gorm:"size:512"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (DBPaymentAttempt) TableName() string {
	return "payment_attempts"
}

// NewAttemptRepository creates a new payment attempt ledger
func NewAttemptRepository(db *gorm.DB) domain.AttemptRepository {
	return &AttemptRepositoryImpl{db: db}
}

// Save implements domain.AttemptRepository.
// Rows are keyed by transaction id; saving an existing transaction updates it.
func (r *AttemptRepositoryImpl) Save(ctx context.Context, record *domain.PaymentAttemptRecord) error {
	row := r.domainToDB(record)

	var existing DBPaymentAttempt
	err := r.db.WithContext(ctx).Where("transaction_id = ?", record.TransactionID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
			return err
		}
	}

	record.ID = row.ID
	record.CreatedAt = row.CreatedAt
	record.UpdatedAt = row.UpdatedAt
	return nil
}

// FindByTransactionID implements domain.AttemptRepository
func (r *AttemptRepositoryImpl) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentAttemptRecord, error) {
	var row DBPaymentAttempt
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&row), nil
}

// ListRecent implements domain.AttemptRepository
func (r *AttemptRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]domain.PaymentAttemptRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DBPaymentAttempt
	if err := r.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]domain.PaymentAttemptRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *r.dbToDomain(&rows[i]))
	}
	return records, nil
}

// domainToDB converts a domain record to its database row
func (r *AttemptRepositoryImpl) domainToDB(rec *domain.PaymentAttemptRecord) *DBPaymentAttempt {
	return &DBPaymentAttempt{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		TransactionID: rec.TransactionID,
		AttemptNumber: rec.AttemptNumber,
		Method:        rec.Method,
		NextAction:    string(rec.NextAction),
		Amount:        rec.Amount,
		Months:        rec.Months,
		Unlimited:     rec.Unlimited,
		TargetItemID:  rec.TargetItemID,
		DonorPhone:    rec.DonorPhone,
		Status:        string(rec.Status),
		DocumentID:    rec.DocumentID,
		GatewayCode:   rec.GatewayCode,
		Message:       rec.Message,
	}
}

// dbToDomain converts a database row to a domain record
func (r *AttemptRepositoryImpl) dbToDomain(row *DBPaymentAttempt) *domain.PaymentAttemptRecord {
	return &domain.PaymentAttemptRecord{
		ID:            row.ID,
		SessionID:     row.SessionID,
		TransactionID: row.TransactionID,
		AttemptNumber: row.AttemptNumber,
		Method:        row.Method,
		NextAction:    domain.NextAction(row.NextAction),
		Amount:        row.Amount,
		Months:        row.Months,
		Unlimited:     row.Unlimited,
		TargetItemID:  row.TargetItemID,
		DonorPhone:    row.DonorPhone,
		Status:        domain.AttemptStatus(row.Status),
		DocumentID:    row.DocumentID,
		GatewayCode:   row.GatewayCode,
		Message:       row.Message,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
