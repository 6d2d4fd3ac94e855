package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
)

type emailThreadRepository struct {
	db *gorm.DB
}

func NewEmailThreadRepository(db *gorm.DB) interfaces.EmailThreadRepository {
	return &emailThreadRepository{
		db: db,
	}
}

func (r *emailThreadRepository) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var thread models.EmailThread
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &thread, nil
}

func (r *emailThreadRepository) Create(ctx context.Context, thread *models.EmailThread) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, thread.AccountID)

	result := r.db.WithContext(ctx).Create(thread)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailThreadRepository) Update(ctx context.Context, thread *models.EmailThread) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, thread.ID)

	result := r.db.WithContext(ctx).Save(thread)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailThreadRepository) UpdateStatusFlags(ctx context.Context, threadID string, inbox, draft, sent bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.UpdateStatusFlags")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, threadID)

	result := r.db.WithContext(ctx).
		Model(&models.EmailThread{}).
		Where("id = ?", threadID).
		Updates(map[string]interface{}{
			"inbox_status": inbox,
			"draft_status": draft,
			"sent_status":  sent,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailThreadRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	if limit <= 0 {
		limit = 50
	}

	var threads []*models.EmailThread
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_message_at desc nulls last").
		Limit(limit).
		Offset(offset).
		Find(&threads).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return threads, nil
}
