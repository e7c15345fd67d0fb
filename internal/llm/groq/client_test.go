package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conneroisu/groq-go"

	"blissbuilder/internal/llm"
	"blissbuilder/pkg/prompts"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type groqResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

func makeGroqResponse(content string) groqResponse {
	return groqResponse{
		ID:      "test-id",
		Object:  "chat.completion",
		Created: 1234567890,
		Model:   "llama-3.3-70b-versatile",
		Choices: []choice{{Message: message{Role: "assistant", Content: content}, FinishReason: "stop"}},
	}
}

func makeEmptyChoicesResponse() groqResponse {
	resp := makeGroqResponse("")
	resp.Choices = nil
	return resp
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := groq.NewClient("test-api-key", groq.WithBaseURL(serverURL+"/"))
	if err != nil {
		t.Fatalf("failed to create groq client: %v", err)
	}
	p, err := prompts.Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	return &Client{
		client:   client,
		model:    groq.ChatModel("llama-3.3-70b-versatile"),
		duration: 8,
		prompts:  p,
	}
}

func respond(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}
}

func TestExtractTheme(t *testing.T) {
	tests := []struct {
		name           string
		responseBody   string
		statusCode     int
		wantErrContain string
		want           string
	}{
		{
			name:         "plain",
			responseBody: mustJSON(makeGroqResponse("glass marble rolling across velvet with soft clicks")),
			statusCode:   http.StatusOK,
			want:         "glass marble rolling across velvet with soft clicks",
		},
		{
			name:         "quotedAndPadded",
			responseBody: mustJSON(makeGroqResponse("  \"honey dripping over warm toast slowly\"\n")),
			statusCode:   http.StatusOK,
			want:         "honey dripping over warm toast slowly",
		},
		{
			name:           "emptyResponse",
			responseBody:   mustJSON(makeGroqResponse("   ")),
			statusCode:     http.StatusOK,
			wantErrContain: "empty response",
		},
		{
			name:           "noChoices",
			responseBody:   mustJSON(makeEmptyChoicesResponse()),
			statusCode:     http.StatusOK,
			wantErrContain: "no response",
		},
		{
			name:           "httpErrorUnauthorized",
			responseBody:   `{"error": {"message": "invalid api key", "type": "authentication_error"}}`,
			statusCode:     http.StatusUnauthorized,
			wantErrContain: "generate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(respond(tt.statusCode, tt.responseBody))
			defer server.Close()

			client := newTestClient(t, server.URL)
			got, err := client.ExtractTheme(context.Background(), llm.ThemeRequest{
				Perspective: "sound design",
				Style:       "visual flow",
				Context:     "Title: ASMR rain",
			})

			if tt.wantErrContain != "" {
				if err == nil {
					t.Fatalf("ExtractTheme() expected error containing %q, got nil", tt.wantErrContain)
				}
				if !strings.Contains(err.Error(), tt.wantErrContain) {
					t.Errorf("ExtractTheme() error = %v, want error containing %q", err, tt.wantErrContain)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractTheme() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractTheme() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractThemeRequest(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		respond(http.StatusOK, mustJSON(makeGroqResponse("soft foam squeezing in warm light")))(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.ExtractTheme(context.Background(), llm.ThemeRequest{
		Perspective: "tactile sensation",
		Style:       "sensory journey",
		Context:     "Title: Kinetic sand cutting",
		Seed:        4242,
	}); err != nil {
		t.Fatalf("ExtractTheme() error: %v", err)
	}

	if body["model"] != "llama-3.3-70b-versatile" {
		t.Errorf("model = %v", body["model"])
	}
	if body["max_tokens"] != float64(120) {
		t.Errorf("max_tokens = %v, want 120", body["max_tokens"])
	}
	if body["seed"] != float64(4242) {
		t.Errorf("seed = %v, want 4242", body["seed"])
	}

	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v, want system and user", body["messages"])
	}
	user, _ := messages[1].(map[string]any)
	content, _ := user["content"].(string)
	for _, want := range []string{"tactile sensation", "sensory journey", "Kinetic sand cutting"} {
		if !strings.Contains(content, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestWriteNarration(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		respond(http.StatusOK, mustJSON(makeGroqResponse("  Listen to the rain.\n")))(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	got, err := client.WriteNarration(context.Background(), "gentle rain over a peaceful forest")
	if err != nil {
		t.Fatalf("WriteNarration() error: %v", err)
	}
	if got != "Listen to the rain." {
		t.Errorf("WriteNarration() = %q", got)
	}

	messages, _ := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
	user, _ := messages[0].(map[string]any)
	content, _ := user["content"].(string)
	if !strings.Contains(content, "gentle rain over a peaceful forest") || !strings.Contains(content, "about 8 seconds") {
		t.Errorf("narration prompt = %q", content)
	}
}

func TestWriteNarrationRateLimited(t *testing.T) {
	server := httptest.NewServer(respond(http.StatusTooManyRequests, `{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.WriteNarration(context.Background(), "theme"); err == nil || !strings.Contains(err.Error(), "generate") {
		t.Errorf("WriteNarration() error = %v, want generate error", err)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
