package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpack/internal/assets"
	"github.com/wolfeidau/assetpack/internal/options"
	"gopkg.in/yaml.v3"
)

// Inject controls where script and style tags go.
type Inject string

const (
	InjectBody Inject = "body"
	InjectHead Inject = "head"
	InjectNone Inject = "none"
)

// UnmarshalYAML accepts true/false as well as a position.
func (i *Inject) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if value.ShortTag() == "!!bool" && value.Decode(&b) == nil {
		*i = cond(b, InjectBody, InjectNone)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Inject(s) {
	case InjectBody, InjectHead, InjectNone:
		*i = Inject(s)
		return nil
	}
	return fmt.Errorf("%w: inject must be body, head, none or a bool, got %q", options.ErrInvalidOption, s)
}

type HTMLOptions struct {
	Title      string            `yaml:"title"`
	Filename   string            `yaml:"filename"`
	Template   string            `yaml:"template"`
	Inject     Inject            `yaml:"inject"`
	Chunks     []string          `yaml:"chunks"`
	Meta       map[string]string `yaml:"meta"`
	PublicPath string            `yaml:"publicPath"`
}

const defaultHTMLTemplate = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{ .Title }}</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
{{- range $name, $content := .Meta }}
    <meta name="{{ $name }}" content="{{ $content }}">
{{- end }}
  </head>
  <body>
  </body>
</html>
`

// HTMLData is what a page template is executed with.
type HTMLData struct {
	Title      string
	Meta       map[string]string
	PublicPath string
	Scripts    []string
	Styles     []string
	// Tags are the rendered script and link tags, for templates that place them by hand
	Tags template.HTML
}

// HTML generates a page that loads the entry bundles.
type HTML struct {
	opts HTMLOptions
}

func newHTML(raw map[string]any) (assets.Plugin, error) {
	opts, err := decode[HTMLOptions](raw)
	if err != nil {
		return nil, err
	}
	if opts.Filename == "" {
		opts.Filename = "index.html"
	}
	if opts.Title == "" {
		opts.Title = "Webpack App"
	}
	if opts.Inject == "" {
		opts.Inject = InjectBody
	}
	return &HTML{opts: *opts}, nil
}

func (h *HTML) Name() string { return "html" }

func (h *HTML) Stage() int { return assets.StageAdditional }

func (h *HTML) ProcessAssets(_ context.Context, c *assets.Compilation) error {
	tmpl, err := h.template(c.Config.Context)
	if err != nil {
		return err
	}

	chunks, err := h.chunks(c)
	if err != nil {
		return err
	}

	publicPath := h.opts.PublicPath
	if publicPath == "" && c.Config.Output.PublicPath != "auto" {
		publicPath = c.Config.Output.PublicPath
	}

	data := HTMLData{Title: h.opts.Title, Meta: h.opts.Meta, PublicPath: publicPath}
	for _, ch := range chunks {
		for _, f := range ch.Scripts() {
			data.Scripts = append(data.Scripts, assetURL(publicPath, h.opts.Filename, f))
		}
		for _, f := range ch.Styles() {
			data.Styles = append(data.Styles, assetURL(publicPath, h.opts.Filename, f))
		}
	}

	head, body := tags(data)
	data.Tags = template.HTML(head + body) //nolint:gosec

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", h.opts.Filename, err)
	}

	page := buf.String()
	switch h.opts.Inject {
	case InjectHead:
		page = insertBefore(page, "</head>", head+body)
	case InjectBody:
		page = insertBefore(page, "</head>", head)
		page = insertBefore(page, "</body>", body)
	}

	log.Debug().Str("file", h.opts.Filename).Strs("scripts", data.Scripts).Msg("Generated HTML")
	return c.EmitAsset(h.opts.Filename, []byte(page), assets.AssetInfo{})
}

func (h *HTML) template(contextDir string) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	if h.opts.Template == "" {
		return template.New("default").Funcs(funcs).Parse(defaultHTMLTemplate)
	}

	p := h.opts.Template
	if !filepath.IsAbs(p) {
		p = filepath.Join(contextDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return template.New(filepath.Base(p)).Funcs(funcs).Parse(string(data))
}

func (h *HTML) chunks(c *assets.Compilation) ([]*assets.Chunk, error) {
	if len(h.opts.Chunks) == 0 {
		return c.Chunks, nil
	}
	out := make([]*assets.Chunk, 0, len(h.opts.Chunks))
	for _, name := range h.opts.Chunks {
		ch, ok := c.Chunk(name)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %q is not an entry", options.ErrInvalidOption, name)
		}
		out = append(out, ch)
	}
	return out, nil
}

// tags renders link tags for the head and script tags for the body.
func tags(data HTMLData) (head, body string) {
	var hb, bb strings.Builder
	for _, s := range data.Styles {
		fmt.Fprintf(&hb, "    <link href=\"%s\" rel=\"stylesheet\">\n", html.EscapeString(s))
	}
	for _, s := range data.Scripts {
		fmt.Fprintf(&bb, "    <script src=\"%s\"></script>\n", html.EscapeString(s))
	}
	return hb.String(), bb.String()
}

// assetURL is the URL of asset as seen from the page. Without a public path
// it is relative to the page's own directory.
func assetURL(publicPath, page, asset string) string {
	if publicPath != "" {
		return strings.TrimSuffix(publicPath, "/") + "/" + asset
	}
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(page)), filepath.FromSlash(asset))
	if err != nil {
		return asset
	}
	return filepath.ToSlash(rel)
}

func insertBefore(page, marker, snippet string) string {
	if snippet == "" {
		return page
	}
	idx := strings.LastIndex(strings.ToLower(page), marker)
	if idx < 0 {
		return page + snippet
	}
	return page[:idx] + snippet + page[idx:]
}

func marshal(value any) string {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(value); err != nil {
		return "null"
	}
	return strings.TrimSpace(buf.String())
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
