package controllers

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/angelmondragon/salespulse/api/responses"
	"github.com/angelmondragon/salespulse/internal/chart"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

// ChartSource exposes the most recently published chart.
type ChartSource interface {
	Latest() (svg []byte, renderedAt time.Time, ok bool)
}

var errNoChart = pkgerrors.New(pkgerrors.CodeNotFound, "no chart has been rendered yet")

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:sans-serif;margin:24px;color:#222}img{max-width:100%;border:1px solid #ddd}</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Rendered at {{.RenderedAt}}</p>
<img src="/chart.svg" alt="{{.Title}}">
</body>
</html>
`))

// ChartPage serves an HTML page embedding the latest chart.
func ChartPage(src ChartSource, title string, logg *logger.Logger) http.HandlerFunc {
	if title == "" {
		title = chart.DefaultTitle
	}
	return func(w http.ResponseWriter, r *http.Request) {
		_, renderedAt, ok := src.Latest()
		if !ok {
			responses.WriteError(r.Context(), logg, w, errNoChart)
			return
		}

		var buf bytes.Buffer
		err := pageTemplate.Execute(&buf, map[string]string{
			"Title":      title,
			"RenderedAt": renderedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render page"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(buf.Bytes())
	}
}

// ChartSVG serves the latest chart document.
func ChartSVG(src ChartSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svg, renderedAt, ok := src.Latest()
		if !ok {
			responses.WriteError(r.Context(), logg, w, errNoChart)
			return
		}
		w.Header().Set("Content-Type", chart.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "chart.svg", renderedAt, bytes.NewReader(svg))
	}
}
