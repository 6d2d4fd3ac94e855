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

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, id)

	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetAll(ctx context.Context) ([]*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) SaveDeltaToken(ctx context.Context, accountID, deltaToken string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SaveDeltaToken")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("next_delta_token", deltaToken)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}

func (r *accountRepository) SaveSearchIndex(ctx context.Context, accountID string, blob []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SaveSearchIndex")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagAccountId, accountID)
	span.SetTag("index.size", len(blob))

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("search_index", blob)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	return nil
}
