// Package genai wraps the OpenAI API for text generation and recipe illustrations.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = string(openai.ChatModelGPT4oMini)
	// DefaultTemperature matches the conversational tone of the assistant.
	DefaultTemperature = 0.7
	// DefaultMaxTokens bounds a single completion.
	DefaultMaxTokens = 1000
	// maxImageBytes bounds a downloaded illustration.
	maxImageBytes = 20 << 20
)

var (
	// ErrNoChoicesReturned is returned when the model answers with no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrNoImageReturned is returned when image generation yields no URL.
	ErrNoImageReturned = errors.New("no image returned")
	// ErrMissingAPIKey is returned by NewClient without an API key.
	ErrMissingAPIKey = errors.New("OpenAI API key not set")
)

// ProviderError wraps failures reported by the model provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("genai %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// imageService defines the minimal interface for image generation.
type imageService interface {
	Generate(ctx context.Context, params openai.ImageGenerateParams) (openai.ImagesResponse, error)
}

type completions struct{ svc openai.ChatCompletionService }

func (c completions) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

type images struct{ svc openai.ImageService }

func (i images) Generate(ctx context.Context, params openai.ImageGenerateParams) (openai.ImagesResponse, error) {
	resp, err := i.svc.Generate(ctx, params)
	if err != nil {
		return openai.ImagesResponse{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	ImageDir    string // where illustrations are downloaded; empty keeps URL only
	DebugMode   bool   // write every call to StateDir/debug
	StateDir    string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithImageDir sets the directory illustrations are downloaded into.
func WithImageDir(dir string) Option {
	return func(o *Opts) { o.ImageDir = dir }
}

// WithDebugMode records each call as a JSON file under stateDir/debug.
func WithDebugMode(stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = true
		o.StateDir = stateDir
	}
}

// Client wraps the OpenAI chat and image services.
type Client struct {
	chat        chatService
	images      imageService
	http        *http.Client
	model       string
	temperature float64
	maxTokens   int
	imageDir    string
	debugMode   bool
	stateDir    string
}

// NewClient initializes a new GenAI client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("GenAI NewClient options set", "APIKey_set", cfg.APIKey != "", "model", cfg.Model, "image_dir", cfg.ImageDir, "debug", cfg.DebugMode)
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:        completions{svc: cli.Chat.Completions},
		images:      images{svc: cli.Images},
		http:        &http.Client{Timeout: 60 * time.Second},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		imageDir:    cfg.ImageDir,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// GeneratePrompt generates a response from a system and a user prompt.
func (c *Client) GeneratePrompt(systemPrompt, userPrompt string) (string, error) {
	return c.GeneratePromptWithContext(context.Background(), systemPrompt, userPrompt)
}

// GeneratePromptWithContext is GeneratePrompt bound to ctx.
func (c *Client) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	c.debugLog("chat", params, resp, err)
	if err != nil {
		slog.Error("GenAI chat completion failed", "error", err, "model", c.model)
		return "", &ProviderError{Op: "chat", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("GenAI chat completion succeeded", "model", c.model, "duration", time.Since(start), "tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage creates one DALL·E 3 image for prompt and, when an image
// directory is configured, downloads it there under a random name.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (models.Image, error) {
	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	resp, err := c.images.Generate(ctx, params)
	c.debugLog("image", params, resp, err)
	if err != nil {
		slog.Error("GenAI image generation failed", "error", err)
		return models.Image{}, &ProviderError{Op: "image", Err: err}
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return models.Image{}, ErrNoImageReturned
	}
	img := models.Image{URL: resp.Data[0].URL}
	if c.imageDir == "" {
		return img, nil
	}
	path, err := c.download(ctx, img.URL)
	if err != nil {
		return models.Image{}, err
	}
	img.Path = path
	return img, nil
}

func (c *Client) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &ProviderError{Op: "image download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Op: "image download", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.MkdirAll(c.imageDir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	path := filepath.Join(c.imageDir, "recipe_"+uuid.NewString()+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		f.Close()
		os.Remove(path)
		return "", &ProviderError{Op: "image download", Err: err}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	slog.Debug("GenAI image downloaded", "path", path)
	return path, nil
}

// debugLog writes the call to stateDir/debug when debug mode is on.
func (c *Client) debugLog(method string, params, response any, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  response,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("GenAI debug log marshal failed", "error", err)
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("GenAI debug dir create failed", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s_%s.json", time.Now().UTC().Format("20060102T150405"), method, uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		slog.Warn("GenAI debug log write failed", "error", err)
	}
}
