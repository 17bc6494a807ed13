// Package templates holds the embedded HTML views and email bodies.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"blog-cms/models"
	"blog-cms/oops"

	"github.com/Masterminds/sprig"
	"github.com/gin-gonic/gin/render"
)

//go:embed src
var embeddedTemplateFs embed.FS

// Templates is a set of page templates, each parsed together with the shared
// layouts and includes. It satisfies gin's render.HTMLRender.
type Templates struct {
	pages map[string]*template.Template
}

var baseFuncs = template.FuncMap{
	"articlePath": func(a models.Article) string {
		if slug := a.Slug(); slug != "" {
			return fmt.Sprintf("/articles/%d/%s", a.ID, slug)
		}
		return fmt.Sprintf("/articles/%d", a.ID)
	},
	"formatDate": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format("2 Jan 2006")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Format("2 Jan 2006")
		}
		return ""
	},
	"isPublished": func(a models.Article) bool {
		return a.IsPublished(time.Now())
	},
}

// New parses every page. extra supplies functions the pages need at parse
// time, such as the Markdown renderer.
func New(extra ...template.FuncMap) (*Templates, error) {
	return parse(embeddedTemplateFs, extra...)
}

func parse(templateFS fs.ReadDirFS, extra ...template.FuncMap) (*Templates, error) {
	files, err := templateFS.ReadDir("src")
	if err != nil {
		return nil, oops.New(err, "failed to list templates")
	}

	pages := make(map[string]*template.Template)
	var failed []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".html") {
			continue
		}
		t := template.New(f.Name()).Funcs(sprig.FuncMap()).Funcs(baseFuncs)
		for _, funcs := range extra {
			t = t.Funcs(funcs)
		}
		t, err := t.ParseFS(templateFS, "src/layouts/*", "src/include/*", "src/"+f.Name())
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", f.Name(), err))
			continue
		}
		pages[f.Name()] = t
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return nil, oops.New(nil, "failed to parse templates: %s", strings.Join(failed, "; "))
	}
	return &Templates{pages: pages}, nil
}

func (t *Templates) Lookup(name string) (*template.Template, bool) {
	page, ok := t.pages[name]
	return page, ok
}

// Instance implements render.HTMLRender. Unknown names render an error
// through gin rather than panicking.
func (t *Templates) Instance(name string, data any) render.Render {
	page, ok := t.pages[name]
	if !ok {
		page = template.Must(template.New(name).Parse(`template {{ . }} not found`))
		data = name
	}
	return render.HTML{Template: page, Name: name, Data: data}
}

func (t *Templates) Execute(w io.Writer, name string, data any) error {
	page, ok := t.pages[name]
	if !ok {
		return oops.New(nil, "template not found: %s", name)
	}
	return page.ExecuteTemplate(w, name, data)
}
