package invoice

import (
	"fmt"
	"html/template"
	"io"

	"github.com/soloflow-app/soloflow/client"
)

// documentTemplate is the printable invoice handed back by export. Browsers
// print this straight to PDF, which keeps the export path free of a PDF
// rendering dependency.
var documentTemplate = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Number }}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 0.4rem; border-bottom: 1px solid #ddd; }
.total { font-weight: bold; }
</style>
</head>
<body>
<h1>Invoice {{ .Number }}</h1>
<p>Issued {{ .Issued }}</p>
{{ if .BilledTo }}<p>Billed to: {{ .BilledTo }}</p>{{ end }}
<table>
<tr><th>Description</th><th>Minutes</th><th>Amount</th></tr>
{{ range .Lines }}
<tr><td>{{ .Description }}</td><td>{{ .Minutes }}</td><td>{{ .Amount }}</td></tr>
{{ end }}
<tr class="total"><td>Total</td><td></td><td>{{ .Total }}</td></tr>
</table>
</body>
</html>
`))

type documentLine struct {
	Description string
	Minutes     int64
	Amount      string
}

type documentData struct {
	Number   string
	Issued   string
	BilledTo string
	Lines    []documentLine
	Total    string
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}

func renderDocument(w io.Writer, inv *Invoice, c *client.Client) error {
	data := documentData{
		Number: inv.Number,
		Issued: inv.IssuedAt.Format("January 2, 2006"),
		Total:  formatCents(inv.SubtotalCents, inv.Currency),
	}
	if c != nil {
		data.BilledTo = c.Name
		if len(c.Company) > 0 {
			data.BilledTo += " (" + c.Company + ")"
		}
	}
	for _, item := range inv.Items {
		data.Lines = append(data.Lines, documentLine{
			Description: item.Description,
			Minutes:     item.Minutes,
			Amount:      formatCents(item.AmountCents, inv.Currency),
		})
	}
	return documentTemplate.Execute(w, data)
}
