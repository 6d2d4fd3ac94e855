package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow/mailsync/config"
)

const documentText = "Invoice 2041\nTotal due: 4,500 EUR\nPayment terms: net 30"

func newTestServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func newTestService(baseURL string) *aiService {
	return NewAIService(&config.AIConfig{
		APIBaseURL: baseURL,
		Model:      "test-model",
	}).(*aiService)
}

func TestSummarizeDocument(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"- invoice 2041\n- 4,500 EUR due"}}]}`))
	})
	defer server.Close()

	summary, err := newTestService(server.URL).SummarizeDocument(context.Background(), documentText)
	require.NoError(t, err)
	assert.Equal(t, "- invoice 2041\n- 4,500 EUR due", summary)
}

func TestSummarizeDocument_MalformedResponseFallsBack(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not json"))
	})
	defer server.Close()

	summary, err := newTestService(server.URL).SummarizeDocument(context.Background(), documentText)
	require.NoError(t, err)
	assert.Equal(t, documentText, summary)
}

func TestSummarizeDocument_ErrorStatusFallsBack(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	defer server.Close()

	summary, err := newTestService(server.URL).SummarizeDocument(context.Background(), documentText)
	require.NoError(t, err)
	assert.Equal(t, documentText, summary)
}

func TestSummarizeDocument_TransportFailureFallsBack(t *testing.T) {
	server := newTestServer(func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	summary, err := newTestService(server.URL).SummarizeDocument(context.Background(), documentText)
	require.NoError(t, err)
	assert.Equal(t, documentText, summary)
}

func TestFallbackSummary_BoundsLineCount(t *testing.T) {
	svc := newTestService("http://unused")

	summary := svc.fallbackSummary("one\n\ntwo\nthree\nfour\nfive\nsix\nseven")
	assert.Equal(t, "one\ntwo\nthree\nfour\nfive", summary)
}
