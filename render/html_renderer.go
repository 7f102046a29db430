package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="{{if .RTL}}he{{else}}en{{end}}" dir="{{.Direction}}">
<head>
  <meta charset="utf-8" />
  <title>{{.Labels.Invoice}} {{.Invoice.Number}}</title>
  <style>
    * { box-sizing: border-box; }
    @page { size: A4; margin: 18mm; }
    body {
      margin: 0;
      padding: 32px;
      font-family: "Helvetica Neue", Arial, sans-serif;
      color: #111827;
      background: #ffffff;
    }
    .invoice {
      position: relative;
      max-width: 820px;
      margin: 0 auto;
    }
    .header {
      display: flex;
      justify-content: space-between;
      align-items: flex-start;
      border-bottom: 2px solid #111827;
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    .rtl .header { flex-direction: row-reverse; }
    .brand img { max-height: 48px; }
    .meta { text-align: right; font-size: 14px; }
    .rtl .meta { text-align: left; }
    .label {
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.04em;
      font-size: 11px;
    }
    .parties {
      display: flex;
      justify-content: space-between;
      margin-bottom: 24px;
      font-size: 14px;
    }
    .rtl .parties { flex-direction: row-reverse; }
    .party.client { text-align: left; }
    .party.company { text-align: right; }
    .rtl .party.client { text-align: right; }
    .rtl .party.company { text-align: left; }
    table {
      width: 100%;
      border-collapse: collapse;
      font-size: 14px;
    }
    th, td {
      padding: 10px;
      border-bottom: 1px solid #e5e7eb;
      text-align: left;
    }
    .rtl th, .rtl td { text-align: right; }
    th {
      text-transform: uppercase;
      font-size: 11px;
      letter-spacing: 0.04em;
      color: #6b7280;
    }
    td.num, th.num { text-align: right; }
    .rtl td.num, .rtl th.num { text-align: left; }
    .item-desc { color: #6b7280; font-size: 12px; }
    .placeholder td {
      color: #9ca3af;
      font-style: italic;
      text-align: center;
      padding: 24px 10px;
    }
    .totals {
      margin-top: 12px;
      display: flex;
      justify-content: flex-end;
    }
    .rtl .totals { justify-content: flex-start; }
    .totals table { width: 280px; font-size: 14px; }
    .totals .grand { font-size: 16px; font-weight: 700; }
    .watermark {
      position: absolute;
      top: 45%;
      left: 50%;
      transform: translate(-50%, -50%) rotate(-45deg);
      font-size: 96px;
      font-weight: 800;
      letter-spacing: 0.1em;
      opacity: 0.08;
      pointer-events: none;
      user-select: none;
      white-space: nowrap;
    }
    .brand-watermark {
      position: absolute;
      top: 55%;
      left: 50%;
      transform: translate(-50%, -50%) rotate(-45deg);
      font-size: 64px;
      font-weight: 700;
      opacity: 0.05;
      pointer-events: none;
      user-select: none;
      white-space: nowrap;
    }
    .footer-block { margin-top: 24px; font-size: 12px; color: #374151; }
    .footer-block .label { margin-bottom: 4px; }
    @media print {
      .placeholder { display: none; }
    }
  </style>
</head>
<body class="{{if .RTL}}rtl{{end}}">
  <div class="invoice">
    {{- if .ShowWatermark}}
    <div class="watermark">{{.StatusLabel}}</div>
    {{- end}}
    {{- if .Profile.WatermarkText}}
    <div class="brand-watermark">{{.Profile.WatermarkText}}</div>
    {{- end}}
    <div class="header">
      <div class="brand">
        {{- if .Profile.LogoPath}}
        <img src="{{.Profile.LogoPath}}" alt="{{.Profile.CompanyName}}" />
        {{- end}}
        <div><strong>{{.Profile.CompanyName}}</strong></div>
      </div>
      <div class="meta">
        <div class="label">{{.Labels.Invoice}}</div>
        <div><strong>{{.Invoice.Number}}</strong></div>
        <div>{{.Labels.Date}}: {{formatDate .Invoice.Date}}</div>
        {{- if .ShowStatus}}
        <div>{{.Labels.Status}}: {{.StatusLabel}}</div>
        {{- end}}
      </div>
    </div>

    <div class="parties">
      <div class="party client">
        <div class="label">{{.Labels.BillTo}}</div>
        <div><strong>{{.Client.Name}}</strong></div>
        {{- if .Client.Address}}<div>{{.Client.Address}}</div>{{end}}
        {{- if .Client.Phone}}<div>{{ltr .Client.Phone}}</div>{{end}}
        {{- if .Client.Email}}<div>{{ltr .Client.Email}}</div>{{end}}
      </div>
      <div class="party company">
        <div class="label">{{.Labels.From}}</div>
        <div><strong>{{.Profile.CompanyName}}</strong></div>
        {{- if .Profile.Address}}<div>{{.Profile.Address}}</div>{{end}}
        {{- if .Profile.Phone}}<div>{{ltr .Profile.Phone}}</div>{{end}}
        {{- if .Profile.Email}}<div>{{ltr .Profile.Email}}</div>{{end}}
      </div>
    </div>

    <table>
      <thead>
        <tr>
          <th>{{.Labels.Item}}</th>
          <th class="num">{{.Labels.UnitPrice}}</th>
          <th class="num">{{.Labels.Discount}}</th>
          <th class="num">{{.Labels.Amount}}</th>
        </tr>
      </thead>
      <tbody>
        {{- range .Invoice.Items}}
        <tr>
          <td>
            <div><strong>{{.Name}}</strong>{{if ne .Quantity 1}} <span dir="ltr">&times;{{.Quantity}}</span>{{end}}</div>
            {{- if .Description}}<div class="item-desc">{{.Description}}</div>{{end}}
          </td>
          <td class="num">{{money $.CurrencySymbol .UnitPrice}}</td>
          <td class="num">{{ltr (printf "%s%%" .Discount)}}</td>
          <td class="num">{{money $.CurrencySymbol .Amount}}</td>
        </tr>
        {{- else}}
        {{- if .IsPreview}}
        <tr class="placeholder">
          <td colspan="4">{{.Labels.NoItems}}</td>
        </tr>
        {{- end}}
        {{- end}}
      </tbody>
    </table>

    <div class="totals">
      <table>
        <tr>
          <td>{{.Labels.Subtotal}}</td>
          <td class="num">{{money .CurrencySymbol .Invoice.Subtotal}}</td>
        </tr>
        <tr>
          <td>{{.Labels.Tax}} ({{ltr (printf "%s%%" .Invoice.TaxRate)}})</td>
          <td class="num">{{money .CurrencySymbol .Invoice.Tax}}</td>
        </tr>
        <tr class="grand">
          <td>{{.Labels.Total}}</td>
          <td class="num">{{money .CurrencySymbol .Invoice.Total}}</td>
        </tr>
      </table>
    </div>

    {{- if and .Profile.ShowNotes .Invoice.Notes}}
    <div class="footer-block">
      <div class="label">{{.Labels.Notes}}</div>
      <div>{{.Invoice.Notes}}</div>
    </div>
    {{- end}}
    {{- if and .Profile.ShowTerms .Invoice.Terms}}
    <div class="footer-block">
      <div class="label">{{.Labels.Terms}}</div>
      <div>{{.Invoice.Terms}}</div>
    </div>
    {{- end}}
  </div>
</body>
</html>
`

// renderData is the template payload: the document plus the output mode.
type renderData struct {
	Document
	Mode      Mode
	IsPreview bool
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatDate": formatDate,
		"money":      money,
		"ltr":        ltr,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(doc Document, mode Mode) (string, error) {
	data := renderData{
		Document:  doc,
		Mode:      mode,
		IsPreview: mode == ModePreview,
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatDate renders the date in a fixed numeric format, forced left to
// right. Without the isolation the bidi algorithm reorders the digit groups
// inside an RTL document.
func formatDate(t time.Time) template.HTML {
	return ltr(t.Format("02/01/2006"))
}

// money places the currency symbol before the amount and isolates the run so
// it reads the same in both directions. Three-letter codes get a separating
// space, single glyphs do not.
func money(symbol, amount string) template.HTML {
	if len([]rune(symbol)) > 1 {
		return ltr(symbol + " " + amount)
	}
	return ltr(symbol + amount)
}

// ltr wraps a string in a left-to-right span. Used for numbers, dates, phone
// numbers and email addresses inside RTL documents.
func ltr(s string) template.HTML {
	return template.HTML(fmt.Sprintf(`<span dir="ltr">%s</span>`, template.HTMLEscapeString(s)))
}
