package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/config"
	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/tracing"
)

type embeddingService struct {
	cfg        *config.AIConfig
	httpClient *http.Client
}

func NewEmbeddingService(cfg *config.AIConfig) interfaces.EmbeddingService {
	return &embeddingService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (s *embeddingService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "embeddingService.GetEmbedding")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	input := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if input == "" {
		err := errors.New("empty text for embedding")
		tracing.TraceErr(span, err)
		return nil, err
	}

	payload, err := json.Marshal(embeddingRequest{
		Model: s.cfg.EmbeddingModel,
		Input: input,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.APIBaseURL+"/embeddings", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
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

	var response embeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if len(response.Data) == 0 {
		err = errors.New("embedding response contained no data")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return response.Data[0].Embedding, nil
}
