package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/enum"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Create(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, email.AccountID)

	result := r.db.WithContext(ctx).Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailRepository) Update(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, email.ID)

	result := r.db.WithContext(ctx).Save(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetByMessageID(ctx context.Context, accountID, internetMessageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	var email models.Email
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND internet_message_id = ?", accountID, internetMessageID).
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) FindLocalByCorrelation(ctx context.Context, accountID, fingerprint string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.FindLocalByCorrelation")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	var email models.Email
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("native_properties ->> 'clientCorrelationId' = ?", fingerprint).
		Where("? = ANY(sys_labels)", enum.SysLabelLocal).
		Order("created_at desc").
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByThread(ctx context.Context, threadID string) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, threadID)

	var emails []*models.Email
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("received_at asc").
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}
