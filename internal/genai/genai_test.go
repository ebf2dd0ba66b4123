package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

// mockImageService implements imageService for testing.
type mockImageService struct {
	url string
	err error
}

func (m *mockImageService) Generate(ctx context.Context, params openai.ImageGenerateParams) (openai.ImagesResponse, error) {
	if m.err != nil {
		return openai.ImagesResponse{}, m.err
	}
	if m.url == "" {
		return openai.ImagesResponse{}, nil
	}
	return openai.ImagesResponse{Data: []openai.Image{{URL: m.url}}}, nil
}

func answer(content string) openai.ChatCompletion {
	return openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}}}
}

func TestGeneratePrompt_Success(t *testing.T) {
	chat := &mockChatService{resp: answer("Hello World")}
	client := &Client{chat: chat, model: "test-model", temperature: 0.7, maxTokens: 500}
	out, err := client.GeneratePrompt("system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(chat.params.Messages) != 2 || string(chat.params.Model) != "test-model" {
		t.Errorf("unexpected request params %+v", chat.params)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt("sys", "usr")
	var pe *ProviderError
	if !errors.As(err, &pe) || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected ProviderError wrapping service failure, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	if _, err := client.GeneratePrompt("sys", "usr"); err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"), WithMaxTokens(50))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" || cli.maxTokens != 50 || cli.temperature != DefaultTemperature {
		t.Errorf("options not applied: %+v", cli)
	}
}

func TestGenerateImage_Downloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\x89PNG fake"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := &Client{images: &mockImageService{url: srv.URL + "/img.png"}, http: srv.Client(), imageDir: dir}
	img, err := client.GenerateImage(context.Background(), "omelette")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if img.URL != srv.URL+"/img.png" || filepath.Dir(img.Path) != dir {
		t.Errorf("unexpected image %+v", img)
	}
	data, err := os.ReadFile(img.Path)
	if err != nil || string(data) != "\x89PNG fake" {
		t.Errorf("downloaded file mismatch: %q, %v", data, err)
	}
}

func TestGenerateImage_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		client *Client
		check  func(error) bool
	}{
		{"provider error", &Client{images: &mockImageService{err: errors.New("policy")}}, func(err error) bool {
			var pe *ProviderError
			return errors.As(err, &pe)
		}},
		{"empty response", &Client{images: &mockImageService{}}, func(err error) bool { return err == ErrNoImageReturned }},
		{"download status", &Client{images: &mockImageService{url: srv.URL}, http: srv.Client(), imageDir: t.TempDir()}, func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "404")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.client.GenerateImage(context.Background(), "x"); !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestGenerateImage_WithoutImageDirKeepsURL(t *testing.T) {
	client := &Client{images: &mockImageService{url: "https://img.example/a.png"}}
	img, err := client.GenerateImage(context.Background(), "x")
	if err != nil || img.URL != "https://img.example/a.png" || img.Path != "" {
		t.Errorf("unexpected result %+v, %v", img, err)
	}
}

func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()
	client := &Client{
		chat:        &mockChatService{resp: answer("Test response")},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debugMode:   true,
		stateDir:    tempDir,
	}
	if _, err := client.GeneratePromptWithContext(context.Background(), "System prompt", "User prompt"); err != nil {
		t.Fatalf("GeneratePromptWithContext failed: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(tempDir, "debug"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one debug file, got %v, %v", files, err)
	}
	content, err := os.ReadFile(filepath.Join(tempDir, "debug", files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
}
