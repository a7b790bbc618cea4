package web

// views.go holds the HTML fragments returned to HTMX requests.

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/a-h/templ"
)

// maxReportRows caps the rows listed in an HTML report; the counts always
// cover the whole file.
const maxReportRows = 200

var statusLabel = map[core.RowStatus]string{
	core.StatusValid:    "Válido",
	core.StatusWarned:   "Con advertencias",
	core.StatusRejected: "Rechazado",
}

// fragment collects the first write error so components can write freely.
type fragment struct {
	w   io.Writer
	err error
}

func (f *fragment) printf(format string, args ...any) {
	if f.err != nil {
		return
	}
	_, f.err = fmt.Fprintf(f.w, format, args...)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// ErrorAlert renders a user message, with the rejection report when there is one.
func ErrorAlert(msg core.UserMessage, report *core.ImportReport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f := &fragment{w: w}
		f.printf(`<div class="alert alert-error" role="alert" data-code="%s">`, esc(msg.Code))
		f.printf(`<p class="alert-message">%s</p>`, esc(msg.Message))
		if msg.Action != "" {
			f.printf(`<p class="alert-action">%s</p>`, esc(msg.Action))
		}
		f.printf(`<p class="alert-code">Código: %s</p>`, esc(msg.Code))
		f.printf(`</div>`)
		if f.err != nil {
			return f.err
		}
		if report != nil {
			return reportTable(*report).Render(ctx, w)
		}
		return nil
	})
}

// PreviewView renders a preview: counts, the row table and, when the file
// is committable, the confirm form carrying the token.
func PreviewView(res *core.PreviewResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f := &fragment{w: w}
		f.printf(`<section class="import-preview" data-committable="%t">`, res.Committable)
		f.printf(`<h2>%s</h2>`, esc(res.FileName))
		if f.err != nil {
			return f.err
		}
		if err := reportTable(res.Report).Render(ctx, w); err != nil {
			return err
		}

		switch {
		case res.Committable && res.Token != "":
			f.printf(`<form hx-post="/api/import/confirm" hx-target="closest section" hx-swap="outerHTML">`)
			f.printf(`<input type="hidden" name="token" value="%s">`, esc(res.Token))
			f.printf(`<label><input type="checkbox" name="confirm" value="true" required> Confirmo la creación de %d items</label>`,
				res.Report.TotalRows)
			f.printf(`<button type="submit">Importar</button>`)
			f.printf(`<p class="hint">Vista previa válida hasta %s</p>`, res.ExpiresAt.Format("15:04"))
			f.printf(`</form>`)
		case !res.Committable:
			f.printf(`<p class="alert alert-error">Corrija las filas rechazadas y vuelva a subir el archivo.</p>`)
		}
		f.printf(`</section>`)
		return f.err
	})
}

// CommitSummary renders the created items after a successful commit.
func CommitSummary(res *core.CommitResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f := &fragment{w: w}
		f.printf(`<section class="import-result">`)
		f.printf(`<p class="alert alert-success">%d items creados.</p>`, res.CreatedCount)
		if res.BatchCode != "" {
			f.printf(`<p>Lote: %s</p>`, esc(res.BatchCode))
		}
		f.printf(`<table><thead><tr><th>Fila</th><th>Código</th><th>Serie</th><th>Código UTP</th><th>Nombre</th></tr></thead><tbody>`)
		for _, item := range res.Items {
			f.printf(`<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				item.RowNumber, esc(item.Code), esc(item.Serial), esc(item.Tag), esc(item.Name))
		}
		f.printf(`</tbody></table></section>`)
		return f.err
	})
}

func reportTable(r core.ImportReport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f := &fragment{w: w}
		f.printf(`<div class="import-report">`)
		f.printf(`<ul class="counts"><li>Total: %d</li><li>Válidos: %d</li><li>Con advertencias: %d</li><li>Rechazados: %d</li></ul>`,
			r.TotalRows, r.ValidCount, r.WarnedCount, r.RejectedCount)
		f.printf(`<table><thead><tr><th>Fila</th><th>Serie</th><th>Estado</th><th>Mensajes</th></tr></thead><tbody>`)

		for i, row := range r.Rows {
			if i == maxReportRows {
				f.printf(`<tr><td colspan="4">… %d filas más</td></tr>`, len(r.Rows)-maxReportRows)
				break
			}
			f.printf(`<tr class="row-%s"><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				row.Status, row.Row.RowNumber, esc(row.Row.Value(core.ColSerial)),
				statusLabel[row.Status], esc(rowMessages(row.Outcome)))
		}
		f.printf(`</tbody></table></div>`)
		return f.err
	})
}

func rowMessages(o core.ValidationOutcome) string {
	msgs := make([]string, 0, len(o.Errors)+len(o.Warnings))
	for _, e := range o.Errors {
		msgs = append(msgs, e.Error())
	}
	for _, e := range o.Warnings {
		msgs = append(msgs, "Advertencia: "+e.Error())
	}
	return strings.Join(msgs, "; ")
}

// renderHTML writes c with status. Render errors after the header is sent
// can only be logged.
func renderHTML(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logRenderError(r, err)
	}
}
