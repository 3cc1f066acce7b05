package targets

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TitleEngine renders destination tab titles with Sprig functions
type TitleEngine struct {
	funcMap template.FuncMap
}

// NewTitleEngine creates a new title template engine
func NewTitleEngine() *TitleEngine {
	return &TitleEngine{
		funcMap: sprig.TxtFuncMap(),
	}
}

// TabName renders the destination tab title for a target
func (e *TitleEngine) TabName(t *Target) (string, error) {
	content := t.TabTemplate
	if content == "" {
		content = DefaultTabTemplate
	}

	tmpl, err := template.New("tab").Funcs(e.funcMap).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse tab template for %s: %w", t.Name(), err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, t); err != nil {
		return "", fmt.Errorf("failed to render tab template for %s: %w", t.Name(), err)
	}

	return buf.String(), nil
}
