package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FallbackReply is returned when a Langflow response carries no message text.
const FallbackReply = "Sorry, I couldn't process that request."

// LangflowProvider runs a hosted Langflow chat flow.
type LangflowProvider struct {
	BaseURL    string
	LangflowID string
	FlowID     string
	Token      string
	client     *http.Client
}

// NewLangflowProvider creates a provider for the flow flowID under the
// Langflow project langflowID.
func NewLangflowProvider(baseURL, langflowID, flowID, token string, timeout time.Duration) *LangflowProvider {
	return &LangflowProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		LangflowID: langflowID,
		FlowID:     flowID,
		Token:      token,
		client:     &http.Client{Timeout: orDefault(timeout)},
	}
}

// IsConfigured reports whether the endpoint and token are set.
func (l *LangflowProvider) IsConfigured() bool {
	return l.BaseURL != "" && l.LangflowID != "" && l.FlowID != "" && l.Token != ""
}

// Endpoint returns the flow run URL.
func (l *LangflowProvider) Endpoint() string {
	return fmt.Sprintf("%s/lf/%s/api/v1/run/%s", l.BaseURL, url.PathEscape(l.LangflowID), url.PathEscape(l.FlowID))
}

// Generate runs the flow with prompt as chat input. maxTokens is set on the
// flow itself and ignored here.
func (l *LangflowProvider) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	if !l.IsConfigured() {
		return "", fmt.Errorf("Langflow not configured")
	}

	body := map[string]any{
		"input_value": prompt,
		"input_type":  "chat",
		"output_type": "chat",
		"stream":      false,
	}

	resp, err := postJSON(ctx, l.client, l.Endpoint(), body, map[string]string{"Authorization": "Bearer " + l.Token})
	if err != nil {
		return "", fmt.Errorf("Langflow API error: %w", err)
	}
	defer resp.Body.Close()

	var result langflowResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return result.text(), nil
}

type langflowMessage struct {
	Message *struct {
		Text string `json:"text"`
	} `json:"message"`
}

type langflowResponse struct {
	Outputs []struct {
		Outputs []struct {
			Outputs *struct {
				Message *langflowMessage `json:"message"`
			} `json:"outputs"`
			Results *struct {
				Message *struct {
					Text string `json:"text"`
				} `json:"message"`
			} `json:"results"`
		} `json:"outputs"`
	} `json:"outputs"`
}

// text extracts outputs[0].outputs[0].outputs.message.message.text, falling
// back to outputs[0].outputs[0].results.message.text.
func (r langflowResponse) text() string {
	if len(r.Outputs) == 0 || len(r.Outputs[0].Outputs) == 0 {
		return FallbackReply
	}
	out := r.Outputs[0].Outputs[0]
	if o := out.Outputs; o != nil && o.Message != nil && o.Message.Message != nil && o.Message.Message.Text != "" {
		return o.Message.Message.Text
	}
	if res := out.Results; res != nil && res.Message != nil && res.Message.Text != "" {
		return res.Message.Text
	}
	return FallbackReply
}
