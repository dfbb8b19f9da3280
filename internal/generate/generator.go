package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"apidiff/internal/config"
	"apidiff/internal/core"
	"apidiff/internal/template"
)

// defaultTemplate is used when no template directory is configured. The
// engine treats payloads as opaque; this minimal body carries only the
// placeholder the decisioning mock understands.
const defaultTemplate = `{"application_id": "${appid}", "channel": "regression", "submitted_at": "${date()}"}`

// Generator produces core.Request values by rendering payload templates
// with sequentially allocated application IDs.
type Generator struct {
	templates []payloadTemplate
	alloc     Allocator
	sources   Sources
}

type payloadTemplate struct {
	name string
	text string
}

// New builds a Generator from the data configuration. Relative template
// and source paths resolve against baseDir.
func New(cfg config.DataConfig, baseDir string) (*Generator, error) {
	var alloc Allocator
	if cfg.Prequal {
		pa, err := NewPrequalAllocator(cfg.PrequalAppIDStart, cfg.PrequalAppIDIncrement)
		if err != nil {
			return nil, err
		}
		alloc = pa
	} else {
		alloc = NewAppIDAllocator(cfg.AppIDStart, cfg.AppIDIncrement)
	}

	templates, err := loadTemplates(cfg.TemplateDir, baseDir)
	if err != nil {
		return nil, err
	}

	sources := make(Sources, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		src, err := LoadFile(sc.Name, sc.Path, Mode(sc.Mode), baseDir)
		if err != nil {
			return nil, err
		}
		sources[sc.Name] = src
	}

	return &Generator{
		templates: templates,
		alloc:     alloc,
		sources:   sources,
	}, nil
}

// loadTemplates reads all .json files in dir, sorted by name so template
// rotation is deterministic. An empty dir config yields the built-in
// default template.
func loadTemplates(dir, baseDir string) ([]payloadTemplate, error) {
	if dir == "" {
		return []payloadTemplate{{name: "default", text: defaultTemplate}}, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir: %w", err)
	}

	var templates []payloadTemplate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		templates = append(templates, payloadTemplate{name: e.Name(), text: string(data)})
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no .json templates found in %s", dir)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].name < templates[j].name })
	return templates, nil
}

// Generate renders count requests, rotating through the loaded templates.
// Request IDs are the allocated application IDs; each request carries a
// fresh correlation ID.
func (g *Generator) Generate(count int) ([]core.Request, error) {
	requests := make([]core.Request, 0, count)

	for i := 0; i < count; i++ {
		appid, err := g.alloc.Next()
		if err != nil {
			return nil, fmt.Errorf("allocating appid for request %d: %w", i, err)
		}

		vars := core.NewVariables()
		vars.Set(template.AppIDVar, appid)
		g.sources.Inject(vars)

		tpl := g.templates[i%len(g.templates)]
		rendered, err := template.Substitute(tpl.text, vars)
		if err != nil {
			return nil, fmt.Errorf("rendering template %s: %w", tpl.name, err)
		}
		if !template.Valid([]byte(rendered)) {
			return nil, fmt.Errorf("template %s rendered invalid JSON for appid %s", tpl.name, appid)
		}

		var body any
		if err := json.Unmarshal([]byte(rendered), &body); err != nil {
			return nil, fmt.Errorf("decoding rendered template %s: %w", tpl.name, err)
		}

		requests = append(requests, core.Request{
			ID:            appid,
			CorrelationID: uuid.NewString(),
			Body:          body,
		})
	}

	return requests, nil
}
