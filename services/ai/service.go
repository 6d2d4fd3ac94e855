package ai

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

// maxPromptChars bounds how much document text goes into the summary prompt
const maxPromptChars = 4000

const summarySystemPrompt = "You summarize business documents attached to emails. " +
	"Return 5-7 short bullet points covering the key facts, amounts, dates and action items. " +
	"Respond with the bullet points only."

type aiService struct {
	cfg        *config.AIConfig
	httpClient *http.Client
}

func NewAIService(cfg *config.AIConfig) interfaces.AIService {
	return &aiService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *aiService) SummarizeDocument(ctx context.Context, text string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.SummarizeDocument")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("text.length", len(text))

	prompt := text
	if len(prompt) > maxPromptChars {
		prompt = prompt[:maxPromptChars]
	}

	request := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.APIBaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return s.fallbackSummary(text), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return s.fallbackSummary(text), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return s.fallbackSummary(text), nil
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return s.fallbackSummary(text), nil
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return s.fallbackSummary(text), nil
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// fallbackSummary keeps extraction usable when the model is unavailable:
// the first few non-empty lines of the document stand in for the bullets
func (s *aiService) fallbackSummary(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 5 {
			break
		}
	}
	return strings.Join(lines, "\n")
}
