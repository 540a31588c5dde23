package extraction

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt - инструкция для одного вида запроса к модели
type Prompt struct {
	System  string `yaml:"system"`
	Clarify string `yaml:"clarify"`

	tmpl *template.Template
}

// Catalog - набор инструкций для всех видов запросов
type Catalog struct {
	Intent       Prompt `yaml:"intent"`
	Expense      Prompt `yaml:"expense"`
	Income       Prompt `yaml:"income"`
	Goal         Prompt `yaml:"goal"`
	Contribution Prompt `yaml:"contribution"`
	General      Prompt `yaml:"general"`
	Query        Prompt `yaml:"query"`
}

// LoadCatalog разбирает YAML и компилирует шаблоны инструкций
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}

	prompts := map[string]*Prompt{
		"intent":       &c.Intent,
		"expense":      &c.Expense,
		"income":       &c.Income,
		"goal":         &c.Goal,
		"contribution": &c.Contribution,
		"general":      &c.General,
		"query":        &c.Query,
	}
	for name, p := range prompts {
		if strings.TrimSpace(p.System) == "" {
			return nil, fmt.Errorf("prompt %q has no system text", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %q: %w", name, err)
		}
		p.tmpl = tmpl
	}
	for _, name := range []string{"expense", "income", "goal", "contribution"} {
		if strings.TrimSpace(prompts[name].Clarify) == "" {
			return nil, fmt.Errorf("prompt %q has no clarifying text", name)
		}
	}
	return &c, nil
}

// DefaultCatalog возвращает встроенный каталог
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultPrompts)
	if err != nil {
		panic(err)
	}
	return c
}

// Render подставляет данные в инструкцию
func (p *Prompt) Render(data any) (string, error) {
	if p.tmpl == nil {
		return p.System, nil
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", p.tmpl.Name(), err)
	}
	return b.String(), nil
}
