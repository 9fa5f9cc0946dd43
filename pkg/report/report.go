// Package report renders review results into browsable HTML reports.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"reviewhooks/pkg/entity"

	"github.com/russross/blackfriday/v2"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #f5f7fa; color: #2c3e50; }
header { background: #4a90e2; color: #fff; padding: 16px 32px; }
main { max-width: 960px; margin: 24px auto; background: #fff; padding: 24px 32px; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.08); }
pre { background: #f0f3f6; padding: 12px; overflow-x: auto; border-radius: 4px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #d6eaf8; padding: 6px 10px; text-align: left; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1></header>
<main>{{.Body}}</main>
</body>
</html>
`

// Renderer converts markdown review content into HTML pages and keeps them
// under a date-partitioned reports directory.
type Renderer struct {
	dir  string
	tmpl *template.Template
}

// New returns a renderer rooted at dir, creating it when missing.
func New(dir string) (*Renderer, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{dir: dir, tmpl: tmpl}, nil
}

// Render converts markdown content into a full HTML page.
func (r *Renderer) Render(title, markdown string) (string, error) {
	body := blackfriday.Run([]byte(markdown))
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		// blackfriday output is rendered as-is; review text comes from
		// the model, not from webhook senders.
		Body: template.HTML(body),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Save renders markdown and writes it under <dir>/<yyyy-mm-dd>/<name>.html.
// It returns the path relative to the reports directory.
func (r *Renderer) Save(name, title, markdown string, at time.Time) (string, error) {
	if name == "" {
		return "", errors.New("report name is required")
	}
	name = unsafeName.ReplaceAllString(name, "_")
	day := at.Format("2006-01-02")
	if err := os.MkdirAll(filepath.Join(r.dir, day), 0o755); err != nil {
		return "", err
	}
	page, err := r.Render(title, markdown)
	if err != nil {
		return "", err
	}
	rel := filepath.Join(day, name+".html")
	if err := os.WriteFile(filepath.Join(r.dir, rel), []byte(page), 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// List returns the saved report paths relative to the reports directory,
// newest day first.
func (r *Renderer) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(r.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Open reads a saved report. The path must stay inside the reports
// directory.
func (r *Renderer) Open(rel string) ([]byte, error) {
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return nil, errors.New("invalid report path")
	}
	return os.ReadFile(filepath.Join(r.dir, clean))
}

// DailyMarkdown summarizes a day of review logs as markdown, ready for
// Render or Save.
func DailyMarkdown(day time.Time, mrs []entity.MergeRequestReview, pushes []entity.PushReview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Code review report %s\n\n", day.Format("2006-01-02"))

	b.WriteString("## Merge requests\n\n")
	if len(mrs) == 0 {
		b.WriteString("No merge request reviews.\n\n")
	} else {
		b.WriteString("| Project | Author | Source | Target | Score |\n")
		b.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, item := range mrs {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %.0f |\n",
				item.ProjectName, item.Author, item.SourceBranch, item.TargetBranch, item.Score)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pushes\n\n")
	if len(pushes) == 0 {
		b.WriteString("No push reviews.\n")
	} else {
		b.WriteString("| Project | Branch | Pusher | Score |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, item := range pushes {
			fmt.Fprintf(&b, "| %s | %s | %s | %.0f |\n",
				item.ProjectName, item.Branch, item.PusherName, item.Score)
		}
	}
	return b.String()
}
