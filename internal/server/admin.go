package server

import (
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

var adminFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
	"iso": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

const adminTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Painel de Doações</title></head>
<body>
<h1>Painel de Doações</h1>
<table border="1" cellpadding="5" cellspacing="0">
  <tr>
    <th>ID Pagamento</th>
    <th>Status</th>
    <th>Valor</th>
    <th>Token</th>
    <th>Data</th>
  </tr>
{{- range .intents}}
  <tr>
    <td>{{orDash .ExternalPaymentID}}</td>
    <td>{{.Status}}</td>
    <td>R$ {{money .Amount}}</td>
    <td>{{orDash .AccessToken}}</td>
    <td>{{iso .CreatedAt}}</td>
  </tr>
{{- end}}
</table>
</body>
</html>
`
