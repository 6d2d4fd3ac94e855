package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/config"
	"github.com/dealflow/mailsync/dto"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/tracing"
)

type providerClient struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
}

func NewProviderClient(cfg *config.ProviderConfig) interfaces.ProviderClient {
	return &providerClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *providerClient) StartSync(ctx context.Context, accessToken string) (*dto.SyncResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.StartSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	endpoint := fmt.Sprintf("%s/v1/email/sync?daysWithin=%d&bodyType=html", c.cfg.APIBaseURL, 2)
	body, err := c.do(ctx, span, "POST", endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var response dto.SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal sync response")
	}
	return &response, nil
}

func (c *providerClient) GetUpdated(ctx context.Context, accessToken, deltaToken, pageToken string) (*dto.SyncUpdatedResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.GetUpdated")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	params := url.Values{}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	} else {
		params.Set("deltaToken", deltaToken)
	}
	if c.cfg.RecordsPerPage > 0 {
		params.Set("maxResults", strconv.Itoa(c.cfg.RecordsPerPage))
	}

	endpoint := fmt.Sprintf("%s/v1/email/sync/updated?%s", c.cfg.APIBaseURL, params.Encode())
	body, err := c.do(ctx, span, "GET", endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var response dto.SyncUpdatedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal sync updated response")
	}
	return &response, nil
}

func (c *providerClient) SendEmail(ctx context.Context, accessToken string, email dto.OutgoingEmail) (*dto.SendEmailResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.SendEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	payload, err := json.Marshal(email)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal outgoing email")
	}

	endpoint := fmt.Sprintf("%s/v1/email/messages", c.cfg.APIBaseURL)
	body, err := c.do(ctx, span, "POST", endpoint, accessToken, payload)
	if err != nil {
		return nil, err
	}

	var response dto.SendEmailResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal send email response")
	}
	return &response, nil
}

func (c *providerClient) GetAttachmentContent(ctx context.Context, accessToken, messageID, attachmentID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.GetAttachmentContent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("message.id", messageID)
	span.SetTag("attachment.id", attachmentID)

	endpoint := fmt.Sprintf("%s/v1/email/messages/%s/attachments/%s",
		c.cfg.APIBaseURL, url.PathEscape(messageID), url.PathEscape(attachmentID))
	body, err := c.do(ctx, span, "GET", endpoint, accessToken, nil)
	if err != nil {
		return "", err
	}

	var response struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to unmarshal attachment response")
	}
	return response.Content, nil
}

func (c *providerClient) do(ctx context.Context, span opentracing.Span, method, endpoint, accessToken string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return nil, err
	}
	return body, nil
}
