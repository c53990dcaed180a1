// Package extract turns one free-text customer turn into a structured
// Extraction via a single structured-output LLM call.
package extract

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

//go:embed template/extractor.txt
var extractorPromptRaw string

// Last history turns forwarded to the model for reference resolution.
const historyWindow = 6

var knownIntents = map[contractx.Intent]bool{
	contractx.IntentBook:          true,
	contractx.IntentInfo:          true,
	contractx.IntentChooseService: true,
	contractx.IntentClose:         true,
	contractx.IntentOther:         true,
}

var knownCorrectionFields = map[string]bool{
	"customer_name": true, "phone": true, "city": true,
	"pet_name": true, "species": true, "breed": true,
	"weight_kg": true, "age_years": true, "coat_condition": true,
	"service_name": true, "date": true, "time": true,
}

// LLMExtractor implements contract.Extractor on a compiled eino graph.
type LLMExtractor struct {
	runner       compose.Runnable[map[string]any, contractx.Extraction]
	systemPrompt string
}

var _ contractx.Extractor = (*LLMExtractor)(nil)

func NewLLMExtractor(ctx context.Context, chatModel einomodel.BaseChatModel) (*LLMExtractor, error) {
	runner, err := compileExtractorGraph(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	return &LLMExtractor{
		runner:       runner,
		systemPrompt: strings.TrimSpace(extractorPromptRaw),
	}, nil
}

// Extract parses one turn. Unparseable input degrades to an empty
// IntentOther extraction; errors mean the model collaborator failed.
func (e *LLMExtractor) Extract(ctx context.Context, text string, history []string) (contractx.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return contractx.Extraction{Intent: contractx.IntentOther}, nil
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	payload := map[string]any{
		"user_message":   text,
		"recent_history": history,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.Extraction{}, fmt.Errorf("%w: marshal extractor payload: %v", contractx.ErrValidation, err)
	}

	out, err := e.runner.Invoke(ctx, map[string]any{
		"system_prompt": e.systemPrompt,
		"input":         string(input),
	})
	if err != nil {
		return contractx.Extraction{}, fmt.Errorf("%w: extractor invoke: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return normalize(out), nil
}

// normalize trims free-text fields, canonicalizes the intent and drops
// anything the model hallucinated outside the schema. Malformed dates
// and times are dropped rather than rejected: extraction is best-effort
// and the next turn can re-ask.
func normalize(raw contractx.Extraction) contractx.Extraction {
	out := raw
	out.CustomerName = strings.TrimSpace(raw.CustomerName)
	out.Phone = strings.TrimSpace(raw.Phone)
	out.City = strings.TrimSpace(raw.City)
	out.PetName = strings.TrimSpace(raw.PetName)
	out.Species = strings.TrimSpace(raw.Species)
	out.Breed = strings.TrimSpace(raw.Breed)
	out.CoatCondition = strings.TrimSpace(raw.CoatCondition)
	out.ServiceName = strings.TrimSpace(raw.ServiceName)

	out.Intent = contractx.Intent(strings.ToLower(strings.TrimSpace(string(raw.Intent))))
	if !knownIntents[out.Intent] {
		out.Intent = contractx.IntentOther
	}

	if out.WeightKg < 0 {
		out.WeightKg = 0
	}
	if out.AgeYears < 0 {
		out.AgeYears = 0
	}

	out.Date = strings.TrimSpace(raw.Date)
	if out.Date != "" && !validDate(out.Date) {
		out.Date = ""
	}
	out.Time = strings.TrimSpace(raw.Time)
	if out.Time != "" && !validTime(out.Time) {
		out.Time = ""
	}

	out.Corrections = nil
	for _, c := range raw.Corrections {
		field := strings.ToLower(strings.TrimSpace(c))
		if knownCorrectionFields[field] {
			out.Corrections = append(out.Corrections, field)
		}
	}
	return out
}

func validDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	day := int(s[8]-'0')*10 + int(s[9]-'0')
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

func validTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for i, r := range s {
		if i == 2 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour <= 23 && minute <= 59
}
