package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractPage renders one page and asks the model for its transaction rows.
func (g *Gemini) ExtractPage(ctx context.Context, req Request, page int) (*PageExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	pageImage, err := renderPage(req.File, req.ContentType, page)
	if err != nil {
		return nil, err
	}

	// renderPage always produces PNG, and genai.ImageData wants just the
	// format suffix, not the full MIME type
	parts := []genai.Part{
		genai.ImageData("png", pageImage),
		genai.Text(pagePrompt(req.Regions[page], req.AmountType)),
	}

	text, err := g.generate(ctx, parts)
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
func (g *Gemini) ExtractAll(ctx context.Context, req Request) (*CombinedExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 300*time.Second)
	defer cancel()

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

	parts := make([]genai.Part, 0, len(pages)+1)
	for _, page := range pages {
		pageImage, err := renderPage(req.File, req.ContentType, page)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.ImageData("png", pageImage))
	}
	parts = append(parts, genai.Text(combinedPrompt(req, pages)))

	text, err := g.generate(ctx, parts)
	if err != nil {
		return nil, err
	}

	ce, err := parseCombinedJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing combined extraction: %w", err)
	}
	return ce, nil
}

// generate runs the model and collects the text parts of the response.
func (g *Gemini) generate(ctx context.Context, parts []genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return strings.TrimSpace(responseText.String()), nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
