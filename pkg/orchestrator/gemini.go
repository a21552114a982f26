package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/jg-phare/gatekeep/pkg/prompt"
	"github.com/jg-phare/gatekeep/pkg/types"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiSelector selects tools with Gemini structured output. The response
// schema is an array of strings constrained to the candidate names.
type GeminiSelector struct {
	client        *genai.Client
	model         string
	vars          prompt.Vars
	historyWindow int
}

// GeminiConfig configures a GeminiSelector.
type GeminiConfig struct {
	APIKey        string
	Model         string // default DefaultGeminiModel
	BaseURL       string // overrides the Gemini API endpoint
	HTTPClient    *http.Client
	Vars          prompt.Vars
	HistoryWindow int
}

// NewGeminiSelector creates a GeminiSelector using the Gemini API.
func NewGeminiSelector(ctx context.Context, cfg GeminiConfig) (*GeminiSelector, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("orchestrator: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create gemini client: %w", err)
	}
	return &GeminiSelector{
		client:        client,
		model:         cfg.Model,
		vars:          cfg.Vars,
		historyWindow: cfg.HistoryWindow,
	}, nil
}

func (s *GeminiSelector) SelectTools(ctx context.Context, req SelectionRequest) ([]string, error) {
	vars := s.vars
	vars.Tools = req.Tools

	var contents []*genai.Content
	for _, m := range window(req.History, s.historyWindow) {
		text := renderForSelection(m)
		if text == "" {
			continue
		}
		var role genai.Role = genai.RoleModel
		if m.Role == types.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.OrchestratorPrompt(vars), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    namesSchema(req.Names()),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, nil
	}
	return decodeNames(json.RawMessage(text))
}

func namesSchema(names []string) *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString, Enum: names},
	}
}
