package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
)

type emailAddressRepository struct {
	db *gorm.DB
}

func NewEmailAddressRepository(db *gorm.DB) interfaces.EmailAddressRepository {
	return &emailAddressRepository{
		db: db,
	}
}

func (r *emailAddressRepository) Upsert(ctx context.Context, accountID string, address dto.EmailAddress) (*models.EmailAddress, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAddressRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	normalized := strings.ToLower(strings.TrimSpace(address.Address))

	var existing models.EmailAddress
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND address = ?", accountID, normalized).
		First(&existing).Error
	if err == nil {
		// First write wins for name/raw
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return nil, err
	}

	record := models.EmailAddress{
		AccountID: accountID,
		Address:   normalized,
		Name:      address.Name,
		Raw:       address.Raw,
	}
	if record.Raw == "" {
		record.Raw = address.Address
	}
	if createErr := r.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		// A concurrent insert may have won the race on the unique index
		var winner models.EmailAddress
		lookupErr := r.db.WithContext(ctx).
			Where("account_id = ? AND address = ?", accountID, normalized).
			First(&winner).Error
		if lookupErr == nil {
			return &winner, nil
		}
		tracing.TraceErr(span, createErr)
		return nil, createErr
	}
	return &record, nil
}

func (r *emailAddressRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.EmailAddress, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAddressRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	var addresses []*models.EmailAddress
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("address asc").
		Find(&addresses).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return addresses, nil
}
