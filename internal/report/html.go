package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/maltedev/shop-compare/internal/models"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"price": models.FormatPrice,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Search {{.Report.Query}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.pass { color: #1a7f37; } .fail { color: #cf222e; }
img { max-width: 480px; display: block; margin: 8px 0; }
</style>
</head>
<body>
<h1>Search "{{.Report.Query}}"</h1>
<p class="{{if .Report.Passed}}pass{{else}}fail{{end}}">
{{if .Report.Passed}}Passed{{else}}Failed{{if .Report.Error}}: {{.Report.Error}}{{end}}{{end}}
({{.Report.StartedAt.Format "2006-01-02 15:04:05"}}, {{.Report.Duration}})
</p>
{{range .Sites}}
<h2>{{.Website}}</h2>
{{if .Error}}<p class="fail">{{.Error}}</p>{{end}}
{{if .Challenge}}<p>Challenge: {{.Challenge}} after {{.ChallengeAttempts}} attempt(s)</p>{{end}}
<p>{{len .Products}} product(s)</p>
{{if .Screenshot}}<img src="{{.Screenshot}}" alt="{{.Website}} screenshot">{{end}}
{{end}}
<h2>Results sorted by price</h2>
<table>
<tr><th>Website</th><th>Product</th><th>Price</th><th>Link</th></tr>
{{range .Report.Products}}<tr><td>{{.Website}}</td><td>{{.Name}}</td><td>${{price .Price}}</td><td><a href="{{.Link}}">{{.Link}}</a></td></tr>
{{end}}</table>
</body>
</html>
`))

// WriteHTML renders r to path. Screenshot links are made relative to the
// report's directory.
func WriteHTML(path string, r *models.RunReport) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	sites := make([]models.SiteResult, len(r.Sites))
	copy(sites, r.Sites)
	for i := range sites {
		if sites[i].Screenshot == "" {
			continue
		}
		if rel, err := filepath.Rel(dir, sites[i].Screenshot); err == nil {
			sites[i].Screenshot = filepath.ToSlash(rel)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	data := struct {
		Report *models.RunReport
		Sites  []models.SiteResult
	}{Report: r, Sites: sites}

	if err := htmlTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// ScreenshotPath names the screenshot of a site's search page.
func ScreenshotPath(dir, website string) string {
	return filepath.Join(dir, website+"_Search.png")
}

func ErrorScreenshotPath(dir, website string) string {
	return filepath.Join(dir, website+"_Error.png")
}
