package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/form"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/prompts"
)

// extractionSchema is the shape a field extraction must have before any of
// its values may reach the conversation.
const extractionSchema = `{
  "type": "object",
  "properties": {
    "Genre":        {"type": ["string", "null"], "maxLength": 50},
    "Ville":        {"type": ["string", "null"], "maxLength": 200},
    "Experience":   {"type": ["string", "number", "null"], "maxLength": 200},
    "Telephone":    {"type": ["string", "number", "null"], "maxLength": 40},
    "Adresse":      {"type": ["string", "null"], "maxLength": 300},
    "Code_Produit": {"type": ["string", "null"], "maxLength": 20},
    "Quantite":     {"type": ["string", "integer", "null"], "maxLength": 10, "minimum": 1, "maximum": 1000}
  }
}`

var (
	orderKeywords = []string{
		"commande", "commander", "order", "acheter", "achat", "prix", "tarif", "produit",
		"نطلب", "نشري", "شراء", "سعر", "طلبية", "كوموند", "بشحال", "منتوج",
	}
	workerKeywords = []string{
		"travail", "emploi", "recrutement", "couturier", "couturière", "couturiere", "job",
		"خدمة", "نخدم", "خياط", "خياطة", "توظيف", "عمل",
	}
	cancelKeywords = []string{
		"annuler", "annulation", "cancel", "إلغاء", "الغاء", "نلغي", "بطلت",
	}

	productCodeInText = regexp.MustCompile(`(?i)\b[a-z]{1,4}-?\d{2,5}\b`)
)

// IntentService decides which form a message belongs to and extracts the
// form fields it contains.
type IntentService struct {
	Logger         *logger.Logger
	QueryAIService Iservices.IQueryAIService
	Prompts        *prompts.Prompts
	schema         *jsonschema.Schema
}

var _ Iservices.IIntentService = (*IntentService)(nil)

func NewIntentService(queryAIService Iservices.IQueryAIService, p *prompts.Prompts, logger *logger.Logger) (*IntentService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", strings.NewReader(extractionSchema)); err != nil {
		return nil, fmt.Errorf("failed to load extraction schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
	}

	return &IntentService{
		Logger:         logger,
		QueryAIService: queryAIService,
		Prompts:        p,
		schema:         schema,
	}, nil
}

// DetectFlow returns the flow the message switches to, or currentFlow when it
// names none, and whether the user asked to cancel. An empty flow means free
// conversation with no form being collected.
func (th *IntentService) DetectFlow(text string, currentFlow string) (string, bool) {
	lower := strings.ToLower(text)

	if containsAny(lower, cancelKeywords) {
		return currentFlow, true
	}
	if containsAny(lower, orderKeywords) || productCodeInText.MatchString(text) {
		return entities.FlowOrder, false
	}
	if containsAny(lower, workerKeywords) {
		return entities.FlowWorker, false
	}
	return currentFlow, false
}

// ExtractFields asks the model for the fields of f present in text. Only
// keys of f survive, as raw strings; normalisation is left to the form.
func (th *IntentService) ExtractFields(ctx context.Context, text string, f form.Form, current string) (dto.ExtractedFields, error) {
	prompt, err := prompts.Render(th.Prompts.Extraction, map[string]string{
		"Fields":      strings.Join(f.Keys(), ", "),
		"Current":     current,
		"UserMessage": text,
	})
	if err != nil {
		return nil, err
	}

	result, err := th.QueryAIService.ExecuteQueryAI(ctx, th.Prompts.ExtractionSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("field extraction: %w", err)
	}

	fields, err := th.parseExtraction(result.Response)
	if err != nil {
		th.Logger.Warn(fmt.Sprintf("Discarding field extraction: %v", err))
		return nil, err
	}

	extracted := dto.ExtractedFields{}
	for key, value := range fields {
		if !f.Has(key) || value == "" {
			continue
		}
		extracted[key] = value
	}
	return extracted, nil
}

func (th *IntentService) parseExtraction(content string) (map[string]string, error) {
	candidate := extractJSONObject(content)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	if err := th.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("extraction does not match schema: %w", err)
	}

	values := map[string]string{}
	for key, raw := range doc.(map[string]any) {
		switch v := raw.(type) {
		case string:
			values[key] = strings.TrimSpace(v)
		case float64:
			values[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return values, nil
}

// extractJSONObject returns the outermost {...} of content, ignoring any
// prose or code fences the model wrapped around it.
func extractJSONObject(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return ""
	}
	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

// shortKeyword is the longest keyword, in runes, that must match a whole word.
// Short words like "عمل" or "job" otherwise hit inside unrelated words and
// place names.
const shortKeyword = 3

func containsAny(text string, keywords []string) bool {
	var words map[string]bool
	for _, keyword := range keywords {
		if utf8.RuneCountInString(keyword) > shortKeyword {
			if strings.Contains(text, keyword) {
				return true
			}
			continue
		}
		if words == nil {
			words = map[string]bool{}
			for _, word := range strings.FieldsFunc(text, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r)
			}) {
				words[word] = true
			}
		}
		if words[keyword] {
			return true
		}
	}
	return false
}
