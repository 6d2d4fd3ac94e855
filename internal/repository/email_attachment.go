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

type emailAttachmentRepository struct {
	db *gorm.DB
}

func NewEmailAttachmentRepository(db *gorm.DB) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{
		db: db,
	}
}

func (r *emailAttachmentRepository) Create(ctx context.Context, attachment *models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, attachment.EmailID)

	result := r.db.WithContext(ctx).Create(attachment)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailAttachmentRepository) Update(ctx context.Context, attachment *models.EmailAttachment) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, attachment.ID)

	result := r.db.WithContext(ctx).Save(attachment)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *emailAttachmentRepository) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachment models.EmailAttachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &attachment, nil
}

func (r *emailAttachmentRepository) FindByNaturalKey(ctx context.Context, emailID, name, mimeType string, size int, inline bool, contentID string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.FindByNaturalKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, emailID)

	var attachment models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Where("email_id = ? AND name = ? AND mime_type = ? AND size = ? AND inline = ? AND content_id = ?",
			emailID, name, mimeType, size, inline, contentID).
		First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &attachment, nil
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, emailID)

	var attachments []*models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Order("created_at asc").
		Find(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

func (r *emailAttachmentRepository) ListDocumentsByThread(ctx context.Context, threadID string, limit int) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListDocumentsByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagEntityId, threadID)

	if limit <= 0 {
		limit = 10
	}

	var attachments []*models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Joins("JOIN emails ON emails.id = email_attachments.email_id").
		Where("emails.thread_id = ?", threadID).
		Where("email_attachments.mime_type IN ? OR email_attachments.name ILIKE '%.pdf' OR email_attachments.name ILIKE '%.docx'",
			[]string{
				"application/pdf",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			}).
		Order("email_attachments.inline asc, email_attachments.size desc").
		Limit(limit).
		Find(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}
