// Package render turns content-block documents into HTML, either read-only
// for the public site or as editing forms for the back office.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"foundation_site/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Mode int

const (
	Display Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "display"
}

// Options configure edit mode. Base is the URL prefix block forms post to,
// e.g. /admin/projects/<id>.
type Options struct {
	Base string
}

type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

func New() (*Renderer, error) {
	r := &Renderer{policy: bluemonday.UGCPolicy()}

	tmpl, err := template.New("blocks").Funcs(template.FuncMap{
		"sanitize":   r.sanitize,
		"videoEmbed": videoEmbed,
		"withBlank":  withBlank,
		"add":        func(a, b int) int { return a + b },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

type blockView struct {
	Block    domain.Block
	C        domain.Payload
	Base     string
	Index    int
	Count    int
	Editable bool
	Body     template.HTML
}

type addView struct {
	Base  string
	Types []domain.BlockType
}

// Document renders every block of doc in order. In edit mode an add-block
// form follows the blocks.
func (r *Renderer) Document(w io.Writer, mode Mode, doc domain.Document, opts Options) error {
	for i, b := range doc {
		if err := r.block(w, mode, b, i, len(doc), opts); err != nil {
			return err
		}
	}
	if mode == Edit {
		return r.tmpl.ExecuteTemplate(w, "edit/add", addView{Base: opts.Base, Types: domain.BlockTypes})
	}
	return nil
}

// Block renders a single block.
func (r *Renderer) Block(w io.Writer, mode Mode, b domain.Block, opts Options) error {
	return r.block(w, mode, b, 0, 1, opts)
}

func (r *Renderer) block(w io.Writer, mode Mode, b domain.Block, index, count int, opts Options) error {
	v := blockView{
		Block:    b,
		C:        content(b),
		Base:     opts.Base,
		Index:    index,
		Count:    count,
		Editable: b.Type.Valid(),
	}

	name := mode.String() + "/unknown"
	if b.Type.Valid() {
		name = mode.String() + "/" + string(b.Type)
	}

	if mode == Display {
		return r.tmpl.ExecuteTemplate(w, name, v)
	}

	var body bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&body, name, v); err != nil {
		return err
	}
	v.Body = template.HTML(body.String())
	return r.tmpl.ExecuteTemplate(w, "edit/frame", v)
}

// content returns the payload matching the block tag. A missing or
// mismatched payload renders as an empty one.
func content(b domain.Block) domain.Payload {
	if b.Content != nil && b.Content.Kind() == b.Type {
		return b.Content
	}
	return domain.NewPayload(b.Type)
}

func (r *Renderer) sanitize(s string) template.HTML {
	return template.HTML(r.policy.Sanitize(s))
}

// videoEmbed returns the player URL for YouTube and Vimeo links, or "" for
// anything else.
func videoEmbed(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return "https://www.youtube.com/embed/" + url.PathEscape(id)
		}
		if rest, ok := strings.CutPrefix(u.Path, "/embed/"); ok && rest != "" {
			return "https://www.youtube.com/embed/" + url.PathEscape(rest)
		}
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return "https://www.youtube.com/embed/" + url.PathEscape(id)
		}
	case "vimeo.com":
		if id := strings.Trim(u.Path, "/"); id != "" && !strings.Contains(id, "/") {
			return "https://player.vimeo.com/video/" + url.PathEscape(id)
		}
	}
	return ""
}

// withBlank returns the elements of a slice followed by one zero element,
// giving edit forms an empty row to fill in.
func withBlank(s any) []any {
	v := reflect.ValueOf(s)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return []any{""}
	}
	out := make([]any, 0, v.Len()+1)
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i).Interface())
	}
	return append(out, reflect.Zero(v.Type().Elem()).Interface())
}

// Page is a full HTML page around a document.
type Page struct {
	Title    string
	Lead     string
	Cover    string
	SiteName string
	Lang     string
	Content  domain.Document
	Comments []domain.Comment
	// Edit mode only.
	Base  string
	Back  string
	Flash string
}

type pageView struct {
	Page
	Body template.HTML
}

func (r *Renderer) Page(w io.Writer, mode Mode, p Page) error {
	var body bytes.Buffer
	if err := r.Document(&body, mode, p.Content, Options{Base: p.Base}); err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "page/"+mode.String(), pageView{Page: p, Body: template.HTML(body.String())})
}
