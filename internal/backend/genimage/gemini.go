package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultTimeout       = 60 * time.Second
)

// GeminiConfig configures the Gemini REST transformer.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiTransformer calls the Gemini generateContent endpoint with the prompt
// and the sketch as an inline data part, and expects an image part back.
type GeminiTransformer struct {
	config GeminiConfig
	client *http.Client
}

// geminiContent represents content in Gemini's format
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

// geminiPart is either a text part or an inline data (image) part
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func NewGeminiTransformer(config GeminiConfig) *GeminiTransformer {
	if config.BaseURL == "" {
		config.BaseURL = defaultGeminiBaseURL
	}
	if config.Model == "" {
		config.Model = defaultGeminiModel
	}
	return &GeminiTransformer{
		config: config,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (t *GeminiTransformer) Name() string {
	return "gemini"
}

func (t *GeminiTransformer) Transform(ctx context.Context, image []byte, mimeType, prompt string) (*Result, error) {
	request := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", t.config.BaseURL, t.config.Model, t.config.APIKey)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := t.client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("API error (status %d): %s", response.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(response.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return extractResult(&geminiResp)
}

// extractResult collects the text parts and the first inline image part of
// the leading candidate.
func extractResult(response *geminiResponse) (*Result, error) {
	if len(response.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	result := &Result{}
	for _, part := range response.Candidates[0].Content.Parts {
		if part.InlineData != nil && result.Image == nil {
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode inline image data: %w", err)
			}
			result.Image = data
			result.MimeType = part.InlineData.MimeType
			continue
		}
		if part.Text != "" {
			if result.Text != "" {
				result.Text += "\n"
			}
			result.Text += part.Text
		}
	}

	if result.Image == nil {
		return nil, fmt.Errorf("no image part in response")
	}
	return result, nil
}
