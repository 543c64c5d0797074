package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Extractor interface using a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Extractor instance.
// Vision models that handle statement tables reasonably well:
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - bakllava (alternative vision model)
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 300 * time.Second, // vision models are slow on dense tables
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API.
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ExtractPage renders one page and asks the model for its transaction rows.
func (o *Ollama) ExtractPage(ctx context.Context, req Request, page int) (*PageExtraction, error) {
	pageImage, err := renderPage(req.File, req.ContentType, page)
	if err != nil {
		return nil, err
	}

	text, err := o.chat(ctx, pagePrompt(req.Regions[page], req.AmountType), [][]byte{pageImage})
	if err != nil {
		return nil, err
	}

	pe, err := parsePageJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing page %d extraction: %w", page, err)
	}
	return pe, nil
}

// ExtractAll sends every page with saved regions (or every page of the
// document when none are saved) in a single call.
func (o *Ollama) ExtractAll(ctx context.Context, req Request) (*CombinedExtraction, error) {
	pages := regionPages(req.Regions)
	if len(pages) == 0 {
		count, err := PageCount(req.File, req.ContentType)
		if err != nil {
			return nil, err
		}
		for p := 1; p <= count; p++ {
			pages = append(pages, p)
		}
	}

	images := make([][]byte, 0, len(pages))
	for _, page := range pages {
		pageImage, err := renderPage(req.File, req.ContentType, page)
		if err != nil {
			return nil, err
		}
		images = append(images, pageImage)
	}

	text, err := o.chat(ctx, combinedPrompt(req, pages), images)
	if err != nil {
		return nil, err
	}

	ce, err := parseCombinedJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing combined extraction: %w", err)
	}
	return ce, nil
}

// chat posts one chat completion with the given prompt and page images.
func (o *Ollama) chat(ctx context.Context, prompt string, images [][]byte) (string, error) {
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading transaction tables in scanned bank statements. You must carefully read all text in images and extract accurate information.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		Images: encoded,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

// Close closes the Ollama client (no-op for HTTP client).
func (o *Ollama) Close() error {
	return nil
}
