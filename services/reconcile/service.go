package reconcile

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/enum"
	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/models"
	"github.com/dealflow/mailsync/internal/tracing"
	"github.com/dealflow/mailsync/internal/utils"
)

// maxEagerExtractions bounds how many document extractions one ingested email
// schedules in the background
const maxEagerExtractions = 5

type reconcileService struct {
	emailRepo      interfaces.EmailRepository
	threadRepo     interfaces.EmailThreadRepository
	addressRepo    interfaces.EmailAddressRepository
	attachmentRepo interfaces.EmailAttachmentRepository
	attachments    interfaces.AttachmentService
	events         interfaces.EventPublisher
	log            logger.Logger
	bucketMs       int64
}

func NewReconcileService(
	emailRepo interfaces.EmailRepository,
	threadRepo interfaces.EmailThreadRepository,
	addressRepo interfaces.EmailAddressRepository,
	attachmentRepo interfaces.EmailAttachmentRepository,
	attachments interfaces.AttachmentService,
	events interfaces.EventPublisher,
	log logger.Logger,
	bucketMs int64,
) interfaces.ReconcileService {
	if bucketMs <= 0 {
		bucketMs = defaultCorrelationBucketMs
	}
	return &reconcileService{
		emailRepo:      emailRepo,
		threadRepo:     threadRepo,
		addressRepo:    addressRepo,
		attachmentRepo: attachmentRepo,
		attachments:    attachments,
		events:         events,
		log:            log,
		bucketMs:       bucketMs,
	}
}

func (s *reconcileService) ReconcileBatch(ctx context.Context, accountID string, records []dto.EmailMessage) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconcileService.ReconcileBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)
	span.SetTag("records", len(records))

	for i := range records {
		if err := s.Reconcile(ctx, accountID, records[i]); err != nil {
			// One malformed record never aborts the batch
			s.log.Errorf("failed to reconcile record %s for account %s: %v", records[i].InternetMessageID, accountID, err)
			tracing.TraceErr(span, err)
		}
	}
}

func (s *reconcileService) Reconcile(ctx context.Context, accountID string, record dto.EmailMessage) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconcileService.Reconcile")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	if err := record.Validate(); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	label := classifyLabel(record.SysLabels)
	span.SetTag("email.label", label.String())

	fromID, toIDs, ccIDs, bccIDs, replyToIDs, err := s.resolveAddresses(ctx, accountID, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	thread, err := s.ensureThread(ctx, accountID, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	existing, created, err := s.findExisting(ctx, accountID, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	email := existing
	if email == nil {
		email = &models.Email{
			ID:        record.ID,
			AccountID: accountID,
		}
	}
	s.applyRecord(email, thread.ID, label, record, fromID, toIDs, ccIDs, bccIDs, replyToIDs)

	if existing == nil {
		err = s.emailRepo.Create(ctx, email)
	} else {
		err = s.emailRepo.Update(ctx, email)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.SetTag(tracing.SpanTagEntityId, email.ID)
	span.SetTag("created", created)

	documentIDs, err := s.upsertAttachments(ctx, email, record.Attachments)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.scheduleExtractions(ctx, documentIDs)

	if err := s.refreshThread(ctx, thread, record); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if s.events != nil {
		event := dto.EmailReconciled{
			AccountID: accountID,
			EmailID:   email.ID,
			ThreadID:  thread.ID,
			Label:     label.String(),
			Created:   created,
		}
		if publishErr := s.events.PublishEmailReconciled(ctx, event); publishErr != nil {
			s.log.Warnf("failed to publish email reconciled event for %s: %v", email.ID, publishErr)
		}
	}
	return nil
}

// findExisting locates the row this record should land on: first the exact
// internet message id, then the optimistic local row sharing the correlation
// fingerprint. Returns created=true when no row matched.
func (s *reconcileService) findExisting(ctx context.Context, accountID string, record dto.EmailMessage) (*models.Email, bool, error) {
	if record.InternetMessageID != "" {
		existing, err := s.emailRepo.GetByMessageID(ctx, accountID, record.InternetMessageID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	fingerprint := CorrelationKey(
		record.Subject, record.Body, record.From.Address,
		record.To, record.Cc,
		record.SentAt.UnixMilli(), s.bucketMs,
	)
	local, err := s.emailRepo.FindLocalByCorrelation(ctx, accountID, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if local != nil {
		return local, false, nil
	}
	return nil, true, nil
}

// applyRecord overwrites the row with provider truth. Merging drops the
// "local" sys label so the row stops matching correlation lookups.
func (s *reconcileService) applyRecord(email *models.Email, threadID string, label enum.EmailLabel, record dto.EmailMessage, fromID string, toIDs, ccIDs, bccIDs, replyToIDs []string) {
	email.ThreadID = threadID
	if record.InternetMessageID != "" {
		email.InternetMessageID = record.InternetMessageID
	}
	email.Subject = record.Subject
	email.Body = record.Body
	email.BodySnippet = record.BodySnippet
	email.SentAt = record.SentAt
	email.ReceivedAt = record.ReceivedAt
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = record.SentAt
	}
	email.CreatedTime = record.CreatedTime
	email.LastModifiedAt = record.LastModifiedTime
	email.EmailLabel = label
	// Labels already accumulated on the row survive a replay; the record's
	// labels only seed a row that had none
	if kept := utils.RemoveString(email.SysLabels, enum.SysLabelLocal); len(kept) > 0 {
		email.SysLabels = kept
	} else {
		email.SysLabels = utils.RemoveString(record.SysLabels, enum.SysLabelLocal)
	}
	email.Keywords = record.Keywords
	email.SysClassifications = record.SysClassifications
	email.Sensitivity = record.Sensitivity
	email.FromID = fromID
	email.ToIDs = toIDs
	email.CcIDs = ccIDs
	email.BccIDs = bccIDs
	email.ReplyToIDs = replyToIDs
	email.InReplyTo = record.InReplyTo
	email.References = record.References
	email.ThreadIndex = record.ThreadIndex
	email.FolderID = record.FolderID
	email.Omitted = record.Omitted
	email.HasAttachments = record.HasAttachments || len(record.Attachments) > 0
	email.UpdatedAt = utils.Now()

	if len(record.InternetHeaders) > 0 {
		headers := make([]interface{}, 0, len(record.InternetHeaders))
		for _, h := range record.InternetHeaders {
			headers = append(headers, map[string]interface{}{"name": h.Name, "value": h.Value})
		}
		email.InternetHeaders = headers
	}

	native := models.JSONMap{}
	for k, v := range record.NativeProperties {
		native[k] = v
	}
	email.NativeProperties = native
}

func (s *reconcileService) resolveAddresses(ctx context.Context, accountID string, record dto.EmailMessage) (string, []string, []string, []string, []string, error) {
	from, err := s.addressRepo.Upsert(ctx, accountID, record.From)
	if err != nil {
		return "", nil, nil, nil, nil, err
	}

	// A recipient that fails to resolve is omitted from the row; only a
	// missing from-address rejects the whole record
	upsertAll := func(kind string, addresses []dto.EmailAddress) []string {
		ids := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			if addr.Address == "" {
				continue
			}
			row, upsertErr := s.addressRepo.Upsert(ctx, accountID, addr)
			if upsertErr != nil {
				s.log.Warnf("failed to upsert %s address %s: %v", kind, addr.Address, upsertErr)
				continue
			}
			ids = append(ids, row.ID)
		}
		return ids
	}

	toIDs := upsertAll("to", record.To)
	ccIDs := upsertAll("cc", record.Cc)
	bccIDs := upsertAll("bcc", record.Bcc)
	replyToIDs := upsertAll("replyTo", record.ReplyTo)
	return from.ID, toIDs, ccIDs, bccIDs, replyToIDs, nil
}

func (s *reconcileService) ensureThread(ctx context.Context, accountID string, record dto.EmailMessage) (*models.EmailThread, error) {
	thread, err := s.threadRepo.GetByID(ctx, record.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread != nil {
		return thread, nil
	}

	thread = &models.EmailThread{
		ID:        record.ThreadID,
		AccountID: accountID,
		Subject:   utils.NormalizeEmailSubject(record.Subject),
	}
	if err := s.threadRepo.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// upsertAttachments persists attachment metadata and returns the ids of
// document attachments worth extracting
func (s *reconcileService) upsertAttachments(ctx context.Context, email *models.Email, attachments []dto.EmailAttachment) ([]string, error) {
	var documentIDs []string
	for _, att := range attachments {
		var existing *models.EmailAttachment
		var err error
		if att.ID != "" {
			existing, err = s.attachmentRepo.GetByID(ctx, att.ID)
			if err != nil {
				return nil, err
			}
		}
		if existing == nil {
			existing, err = s.attachmentRepo.FindByNaturalKey(ctx, email.ID, att.Name, att.MimeType, att.Size, att.Inline, att.ContentID)
			if err != nil {
				return nil, err
			}
		}

		if existing == nil {
			row := &models.EmailAttachment{
				ID:              att.ID,
				EmailID:         email.ID,
				Name:            att.Name,
				MimeType:        att.MimeType,
				Size:            att.Size,
				Inline:          att.Inline,
				ContentID:       att.ContentID,
				Content:         att.Content,
				ContentLocation: att.ContentLocation,
			}
			if err := s.attachmentRepo.Create(ctx, row); err != nil {
				return nil, err
			}
			if row.IsDocument() {
				documentIDs = append(documentIDs, row.ID)
			}
			continue
		}

		existing.EmailID = email.ID
		existing.Name = att.Name
		existing.MimeType = att.MimeType
		existing.Size = att.Size
		existing.Inline = att.Inline
		existing.ContentID = att.ContentID
		if att.Content != "" {
			existing.Content = att.Content
		}
		if att.ContentLocation != "" {
			existing.ContentLocation = att.ContentLocation
		}
		existing.UpdatedAt = utils.Now()
		if err := s.attachmentRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		if existing.IsDocument() {
			documentIDs = append(documentIDs, existing.ID)
		}
	}
	return documentIDs, nil
}

// scheduleExtractions kicks off background document extraction for freshly
// ingested attachments. Fire and forget: ingestion never waits on parsing and
// an extraction failure never fails the record.
func (s *reconcileService) scheduleExtractions(ctx context.Context, attachmentIDs []string) {
	if s.attachments == nil || len(attachmentIDs) == 0 {
		return
	}
	if len(attachmentIDs) > maxEagerExtractions {
		attachmentIDs = attachmentIDs[:maxEagerExtractions]
	}
	detached := context.WithoutCancel(ctx)
	for _, attachmentID := range attachmentIDs {
		attachmentID := attachmentID
		go func() {
			defer tracing.RecoverAndLogToJaeger(s.log)
			if _, err := s.attachments.EnsureProcessed(detached, attachmentID); err != nil {
				s.log.Warnf("background extraction failed for attachment %s: %v", attachmentID, err)
			}
		}()
	}
}

// refreshThread recomputes the derived thread fields from member emails
func (s *reconcileService) refreshThread(ctx context.Context, thread *models.EmailThread, record dto.EmailMessage) error {
	emails, err := s.emailRepo.ListByThread(ctx, thread.ID)
	if err != nil {
		return err
	}

	inbox, draft, sent := threadStatus(emails)
	thread.InboxStatus = inbox
	thread.DraftStatus = draft
	thread.SentStatus = sent

	participants := map[string]bool{}
	for _, p := range thread.ParticipantIDs {
		participants[p] = true
	}
	for _, email := range emails {
		if email.FromID != "" {
			participants[email.FromID] = true
		}
		for _, id := range email.ToIDs {
			participants[id] = true
		}
		for _, id := range email.CcIDs {
			participants[id] = true
		}
		for _, id := range email.BccIDs {
			participants[id] = true
		}
		if thread.LastMessageAt == nil || email.ReceivedAt.After(*thread.LastMessageAt) {
			receivedAt := email.ReceivedAt
			thread.LastMessageAt = &receivedAt
		}
	}
	ids := make([]string, 0, len(participants))
	for id := range participants {
		ids = append(ids, id)
	}
	thread.ParticipantIDs = utils.UniqueStrings(ids)

	if subject := utils.NormalizeEmailSubject(record.Subject); subject != "" {
		thread.Subject = subject
	}
	thread.UpdatedAt = utils.Now()
	return s.threadRepo.Update(ctx, thread)
}

// threadStatus derives a single folder for the thread. Inbox beats draft
// beats sent; exactly one flag comes back true.
func threadStatus(emails []*models.Email) (inbox, draft, sent bool) {
	hasDraft := false
	for _, email := range emails {
		switch email.EmailLabel {
		case enum.EmailLabelInbox:
			return true, false, false
		case enum.EmailLabelDraft:
			hasDraft = true
		}
	}
	if hasDraft {
		return false, true, false
	}
	return false, false, true
}

// classifyLabel maps provider sys labels to the single stored label
func classifyLabel(sysLabels []string) enum.EmailLabel {
	for _, label := range sysLabels {
		switch label {
		case "inbox", "important":
			return enum.EmailLabelInbox
		case "sent":
			return enum.EmailLabelSent
		case "draft":
			return enum.EmailLabelDraft
		}
	}
	return enum.EmailLabelInbox
}

func (s *reconcileService) RecordOutgoingEmail(ctx context.Context, accountID string, email dto.OutgoingEmail, providerResp *dto.SendEmailResponse) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconcileService.RecordOutgoingEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag(tracing.SpanTagAccountId, accountID)

	nowMs := utils.Now().UnixMilli()
	fingerprint := CorrelationKey(
		email.Subject, email.Body, email.From.Address,
		email.To, email.Cc,
		nowMs, s.bucketMs,
	)

	record := dto.EmailMessage{
		Subject: email.Subject,
		Body:    email.Body,
		From:    email.From,
		To:      email.To,
		Cc:      email.Cc,
		Bcc:     email.Bcc,
		ReplyTo: email.ReplyTo,
	}
	fromID, toIDs, ccIDs, bccIDs, replyToIDs, err := s.resolveAddresses(ctx, accountID, record)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	threadID := email.ThreadID
	if providerResp != nil && providerResp.ThreadID != "" {
		threadID = providerResp.ThreadID
	}
	var thread *models.EmailThread
	if threadID != "" {
		thread, err = s.threadRepo.GetByID(ctx, threadID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}
	if thread == nil {
		thread = &models.EmailThread{
			ID:         threadID,
			AccountID:  accountID,
			Subject:    utils.NormalizeEmailSubject(email.Subject),
			SentStatus: true,
		}
		if err := s.threadRepo.Create(ctx, thread); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	now := utils.Now()
	row := &models.Email{
		AccountID:        accountID,
		ThreadID:         thread.ID,
		Subject:          email.Subject,
		Body:             email.Body,
		SentAt:           now,
		ReceivedAt:       now,
		EmailLabel:       enum.EmailLabelSent,
		SysLabels:        []string{"sent", enum.SysLabelLocal},
		FromID:           fromID,
		ToIDs:            toIDs,
		CcIDs:            ccIDs,
		BccIDs:           bccIDs,
		ReplyToIDs:       replyToIDs,
		InReplyTo:        email.InReplyTo,
		References:       email.References,
		HasAttachments:   len(email.Attachments) > 0,
		NativeProperties: models.JSONMap{"clientCorrelationId": fingerprint},
	}
	if providerResp != nil {
		row.ID = providerResp.ID
		row.InternetMessageID = providerResp.InternetMessageID
		if row.InternetMessageID == "" {
			row.InternetMessageID = providerResp.MessageID
		}
	}
	if row.ID == "" {
		// Provider gave us nothing to key on yet. The row is claimed via the
		// correlation fingerprint when the echo arrives through the change stream.
		row.ID = fmt.Sprintf("local-%d-%s", nowMs, uuid.NewString()[:8])
	}
	if row.InternetMessageID == "" {
		// Placeholder header id so two pending local sends never collide on
		// the (account, internet_message_id) unique index. The echo's real
		// value replaces it on merge.
		row.InternetMessageID = fmt.Sprintf("local-%d-%s", nowMs, uuid.NewString()[:8])
	}

	if err := s.emailRepo.Create(ctx, row); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.SetTag(tracing.SpanTagEntityId, row.ID)

	for _, att := range email.Attachments {
		attachment := &models.EmailAttachment{
			EmailID:   row.ID,
			Name:      att.Name,
			MimeType:  att.MimeType,
			Size:      base64.StdEncoding.DecodedLen(len(att.Content)),
			Inline:    att.Inline,
			ContentID: att.ContentID,
			Content:   att.Content,
		}
		if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	if err := s.refreshThread(ctx, thread, record); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return row, nil
}
