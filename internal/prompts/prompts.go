// Package prompts holds the prompt texts sent to the language model and the
// fixed messages sent to users.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type Prompts struct {
	System           string            `yaml:"system"`
	Reply            string            `yaml:"reply"`
	DraftSystem      string            `yaml:"draft_system"`
	Draft            string            `yaml:"draft"`
	ExtractionSystem string            `yaml:"extraction_system"`
	Extraction       string            `yaml:"extraction"`
	SummarySystem    string            `yaml:"summary_system"`
	Summary          string            `yaml:"summary"`
	Questions        map[string]string `yaml:"questions"`
	Apology          string            `yaml:"apology"`
	TextOnly         string            `yaml:"text_only"`
	Cancelled        string            `yaml:"cancelled"`
	UnknownProduct   string            `yaml:"unknown_product"`
	OutOfStock       string            `yaml:"out_of_stock"`
	OrderConfirmed   string            `yaml:"order_confirmed"`
	WorkerRegistered string            `yaml:"worker_registered"`
}

// Default returns the embedded prompt set.
func Default() *Prompts {
	p, err := parse(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts: %v", err))
	}
	return p
}

// Load reads a prompt file and fills every key it leaves empty from the
// embedded defaults. An empty path returns the defaults.
func Load(path string) (*Prompts, error) {
	base := Default()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	if err := base.validate(); err != nil {
		return nil, fmt.Errorf("prompts file %s: %w", path, err)
	}
	return base, nil
}

// Question returns the question asked for a form field.
func (p *Prompts) Question(field string) string {
	return p.Questions[field]
}

// Render executes a prompt template with the given data.
func Render(text string, data any) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func parse(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Prompts) validate() error {
	templates := map[string]string{
		"reply":             p.Reply,
		"draft":             p.Draft,
		"extraction":        p.Extraction,
		"summary":           p.Summary,
		"unknown_product":   p.UnknownProduct,
		"out_of_stock":      p.OutOfStock,
		"order_confirmed":   p.OrderConfirmed,
		"worker_registered": p.WorkerRegistered,
	}
	for name, text := range templates {
		if text == "" {
			return fmt.Errorf("%s prompt is empty", name)
		}
		if _, err := template.New(name).Parse(text); err != nil {
			return fmt.Errorf("%s prompt: %w", name, err)
		}
	}
	if p.Apology == "" {
		return fmt.Errorf("apology message is empty")
	}
	return nil
}
