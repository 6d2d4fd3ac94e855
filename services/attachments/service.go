package attachments

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/internal/utils"
)

const (
	// maxExtractedChars caps stored extraction output per document
	maxExtractedChars = 200000
	// insightSnippetChars bounds the snippet handed to prompt builders
	insightSnippetChars = 1200
	// maxConcurrentExtractions bounds parallel parsing per thread request
	maxConcurrentExtractions = 5
)

type attachmentService struct {
	attachmentRepo interfaces.EmailAttachmentRepository
	emailRepo      interfaces.EmailRepository
	accountRepo    interfaces.AccountRepository
	providerClient interfaces.ProviderClient
	storage        interfaces.StorageService
	aiService      interfaces.AIService
	parser         interfaces.DocumentParser
	log            logger.Logger
	httpClient     *http.Client

	// inFlight dedupes concurrent extraction of the same attachment
	mu       sync.Mutex
	inFlight map[string]*sync.WaitGroup
}

func NewAttachmentService(
	attachmentRepo interfaces.EmailAttachmentRepository,
	emailRepo interfaces.EmailRepository,
	accountRepo interfaces.AccountRepository,
	providerClient interfaces.ProviderClient,
	storage interfaces.StorageService,
	aiService interfaces.AIService,
	parser interfaces.DocumentParser,
	log logger.Logger,
) interfaces.AttachmentService {
	return &attachmentService{
		attachmentRepo: attachmentRepo,
		emailRepo:      emailRepo,
		accountRepo:    accountRepo,
		providerClient: providerClient,
		storage:        storage,
		aiService:      aiService,
		parser:         parser,
		log:            log,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		inFlight: map[string]*sync.WaitGroup{},
	}
}

func (s *attachmentService) EnsureProcessed(ctx context.Context, attachmentID string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.EnsureProcessed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagEntityId, attachmentID)

	// Serialize concurrent callers per attachment
	s.mu.Lock()
	if wg, waiting := s.inFlight[attachmentID]; waiting {
		s.mu.Unlock()
		wg.Wait()
	} else {
		wg := &sync.WaitGroup{}
		wg.Add(1)
		s.inFlight[attachmentID] = wg
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, attachmentID)
			s.mu.Unlock()
			wg.Done()
		}()
	}

	attachment, err := s.attachmentRepo.GetByID(ctx, attachmentID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if attachment == nil {
		err = errors.Errorf("attachment %s not found", attachmentID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if !attachment.IsDocument() {
		span.SetTag("skipped", "unsupported type")
		return attachment, nil
	}

	if attachment.IsProcessed() {
		span.SetTag("memoized", true)
		return attachment, nil
	}

	data, err := s.resolveBytes(ctx, attachment)
	if err != nil {
		// No payload source worked. Leave the row untouched; a later pass
		// retries once the bytes become available.
		s.log.Warnf("no payload available yet for attachment %s: %v", attachmentID, err)
		span.SetTag("skipped", "payload unavailable")
		return attachment, nil
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	text, pages, htmlPreview, err := s.extract(attachment, data)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(text) > maxExtractedChars {
		text = text[:maxExtractedChars]
	}

	summary, err := s.aiService.SummarizeDocument(ctx, text)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	attachment.ContentHash = contentHash
	attachment.ExtractedText = text
	attachment.Summary = summary
	if pages > 0 {
		attachment.PagesCount = &pages
	}
	if htmlPreview != "" {
		attachment.DocMeta = models.JSONMap{"htmlPreview": htmlPreview}
	}
	attachment.UpdatedAt = utils.Now()

	if err := s.attachmentRepo.Update(ctx, attachment); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachment, nil
}

func (s *attachmentService) GetInsightsForThread(ctx context.Context, threadID string, limit int) ([]interfaces.AttachmentInsight, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentService.GetInsightsForThread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagEntityId, threadID)

	documents, err := s.attachmentRepo.ListDocumentsByThread(ctx, threadID, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	processed := make([]*models.EmailAttachment, len(documents))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentExtractions)
	for i, doc := range documents {
		i, doc := i, doc
		group.Go(func() error {
			result, processErr := s.EnsureProcessed(groupCtx, doc.ID)
			if processErr != nil {
				// One broken document never blocks the rest of the thread
				s.log.Warnf("extraction failed for attachment %s: %v", doc.ID, processErr)
				return nil
			}
			processed[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	insights := make([]interfaces.AttachmentInsight, 0, len(processed))
	for _, attachment := range processed {
		if attachment == nil || !attachment.IsProcessed() {
			continue
		}
		snippet := attachment.ExtractedText
		if len(snippet) > insightSnippetChars {
			snippet = snippet[:insightSnippetChars]
		}
		insights = append(insights, interfaces.AttachmentInsight{
			ID:       attachment.ID,
			Name:     attachment.Name,
			MimeType: attachment.MimeType,
			Summary:  attachment.Summary,
			Snippet:  snippet,
		})
	}
	return insights, nil
}

func (s *attachmentService) extract(attachment *models.EmailAttachment, data []byte) (text string, pages int, htmlPreview string, err error) {
	mime := strings.ToLower(attachment.MimeType)
	name := strings.ToLower(attachment.Name)
	if strings.Contains(mime, "pdf") || strings.HasSuffix(name, ".pdf") {
		text, pages, err = s.parser.ExtractPDF(data)
		return text, pages, "", err
	}
	text, htmlPreview, err = s.parser.ExtractDOCX(data)
	return text, 0, htmlPreview, err
}

// resolveBytes finds the attachment payload, trying cheapest sources first:
// inline base64, then object storage, then the content location URL, and
// finally a live provider fetch that gets cached back to storage.
func (s *attachmentService) resolveBytes(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error) {
	if attachment.Content != "" {
		data, err := base64.StdEncoding.DecodeString(attachment.Content)
		if err == nil {
			return data, nil
		}
		// Some providers hand back URL-safe base64
		data, err = base64.URLEncoding.DecodeString(attachment.Content)
		if err == nil {
			return data, nil
		}
	}

	if attachment.StorageKey != "" && s.storage != nil {
		data, err := s.storage.Download(ctx, attachment.StorageKey)
		if err == nil {
			return data, nil
		}
		s.log.Warnf("storage download failed for attachment %s: %v", attachment.ID, err)
	}

	if attachment.ContentLocation != "" {
		data, err := s.fetchLocation(ctx, attachment.ContentLocation)
		if err == nil {
			return data, nil
		}
		s.log.Warnf("content location fetch failed for attachment %s: %v", attachment.ID, err)
	}

	return s.fetchFromProvider(ctx, attachment)
}

// fetchLocation downloads from the content location URL; the response may be
// the raw bytes or a JSON envelope with a base64 content/data field
func (s *attachmentService) fetchLocation(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}

	var envelope struct {
		Content string `json:"content"`
		Data    string `json:"data"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		encoded := envelope.Content
		if encoded == "" {
			encoded = envelope.Data
		}
		if encoded != "" {
			if data, decodeErr := base64.StdEncoding.DecodeString(encoded); decodeErr == nil {
				return data, nil
			}
		}
	}
	return body, nil
}

func (s *attachmentService) fetchFromProvider(ctx context.Context, attachment *models.EmailAttachment) ([]byte, error) {
	email, err := s.emailRepo.GetByID(ctx, attachment.EmailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, errors.Errorf("email %s not found for attachment %s", attachment.EmailID, attachment.ID)
	}

	account, err := s.accountRepo.GetByID(ctx, email.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Errorf("account %s not found", email.AccountID)
	}

	content, err := s.providerClient.GetAttachmentContent(ctx, account.AccessToken, email.InternetMessageID, attachment.ID)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, errors.Wrap(err, "provider returned invalid base64")
	}

	// Cache the payload so the next extraction skips the provider round trip
	if s.storage != nil {
		key := fmt.Sprintf("%s/%s/%s", email.AccountID, email.ID, attachment.ID)
		if uploadErr := s.storage.Upload(ctx, key, data, attachment.MimeType); uploadErr != nil {
			s.log.Warnf("failed to cache attachment %s in storage: %v", attachment.ID, uploadErr)
		} else {
			attachment.StorageKey = key
			if updateErr := s.attachmentRepo.Update(ctx, attachment); updateErr != nil {
				s.log.Warnf("failed to persist storage key for attachment %s: %v", attachment.ID, updateErr)
			}
		}
	}
	return data, nil
}
