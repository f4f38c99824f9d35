// Package anthropic labels listing text for redevelopment potential with the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/services"
)

const (
	maxTextRunes   = 6000
	maxReasonRunes = 300
)

const promptTemplate = "Classify redevelopment potential. Detect phrases like " +
	"'tear down', 'builder', 'contractor special', 'development opportunity'. " +
	`Return STRICT JSON: {"label":"HIGH|MEDIUM|LOW","reason":"..."}.` + "\n\nTEXT:\n%s"

// Oracle implements services.Oracle.
type Oracle struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// NewOracle creates an Oracle. Extra request options (base URL, retries) are
// passed through to the SDK client.
func NewOracle(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *Oracle {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Oracle{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Classify sends text at temperature 0 and parses the strict JSON verdict.
func (o *Oracle) Classify(ctx context.Context, text string) (services.Verdict, error) {
	msg, err := o.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(o.model),
		MaxTokens:   o.maxTokens,
		Temperature: sdk.Float(0),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(fmt.Sprintf(promptTemplate, truncateRunes(text, maxTextRunes)))),
		},
	})
	if err != nil {
		return services.Verdict{}, eris.Wrap(err, "anthropic: create message")
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	return ParseVerdict(reply.String())
}

// ParseVerdict extracts the {"label","reason"} object from a model reply.
// Text around the object (code fences, preamble) is ignored.
func ParseVerdict(reply string) (services.Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return services.Verdict{}, eris.Errorf("anthropic: no JSON object in reply %q", truncateRunes(reply, 80))
	}

	var raw struct {
		Label  string `json:"label"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return services.Verdict{}, eris.Wrap(err, "anthropic: decode verdict")
	}

	label, ok := models.ParseLabel(strings.ToUpper(strings.TrimSpace(raw.Label)))
	if !ok {
		return services.Verdict{}, eris.Errorf("anthropic: unknown label %q", raw.Label)
	}
	return services.Verdict{Label: label, Reason: truncateRunes(raw.Reason, maxReasonRunes)}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
