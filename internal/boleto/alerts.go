package boleto

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var criticalAlertTmpl = template.Must(template.New("critical").Parse(`<h2>Erro crítico no envio de lembretes de boleto</h2>
<p>O envio via WhatsApp encontrou uma falha de infraestrutura. Verifique o gateway e a conectividade.</p>
<table>
<tr><td><b>Execução</b></td><td>{{.RunID}}</td></tr>
<tr><td><b>Tipo</b></td><td>{{.Kind}}</td></tr>
<tr><td><b>Vencimento</b></td><td>{{.DueDate}}</td></tr>
<tr><td><b>Paciente</b></td><td>{{.Name}} ({{.RecipientID}})</td></tr>
<tr><td><b>Código</b></td><td>{{.Code}}</td></tr>
<tr><td><b>Status</b></td><td>{{.Status}}</td></tr>
<tr><td><b>Mensagem</b></td><td>{{.Message}}</td></tr>
<tr><td><b>Horário</b></td><td>{{.At}}</td></tr>
</table>`))

var rateAlertTmpl = template.Must(template.New("rate").Parse(`<h2>Alta taxa de falhas no envio de lembretes de boleto</h2>
<table>
<tr><td><b>Execução</b></td><td>{{.RunID}}</td></tr>
<tr><td><b>Tipo</b></td><td>{{.Kind}}</td></tr>
<tr><td><b>Vencimento</b></td><td>{{.DueDate}}</td></tr>
<tr><td><b>Tentativas</b></td><td>{{.Attempted}}</td></tr>
<tr><td><b>Falhas</b></td><td>{{.Failed}}</td></tr>
<tr><td><b>Taxa de falha</b></td><td>{{.Rate}}</td></tr>
</table>
{{if .Samples}}<h3>Exemplos</h3>
<ul>{{range .Samples}}
<li>{{.Name}} ({{.RecipientID}}): {{.Code}} {{.Error}}</li>{{end}}
</ul>{{end}}`))

const maxRateSamples = 10

type criticalFailure struct {
	outcome RecipientOutcome
	status  int
	message string
}

func criticalAlert(res *BatchResult, f criticalFailure, at time.Time) (string, string, error) {
	subject := fmt.Sprintf("[CRM] Erro crítico no envio de boletos (%s)", res.Kind)
	var buf bytes.Buffer
	err := criticalAlertTmpl.Execute(&buf, map[string]any{
		"RunID":       res.RunID,
		"Kind":        res.Kind,
		"DueDate":     res.DueDate,
		"Name":        f.outcome.Name,
		"RecipientID": f.outcome.RecipientID,
		"Code":        f.outcome.Code,
		"Status":      f.status,
		"Message":     f.message,
		"At":          at.Format(time.RFC3339),
	})
	return subject, buf.String(), err
}

func rateAlert(res *BatchResult) (string, string, error) {
	subject := fmt.Sprintf("[CRM] Alta taxa de falhas no envio de boletos (%s)", res.Kind)
	var samples []RecipientOutcome
	for _, o := range res.Outcomes {
		if o.Status == OutcomeFailed {
			samples = append(samples, o)
			if len(samples) == maxRateSamples {
				break
			}
		}
	}
	var buf bytes.Buffer
	err := rateAlertTmpl.Execute(&buf, map[string]any{
		"RunID":     res.RunID,
		"Kind":      res.Kind,
		"DueDate":   res.DueDate,
		"Attempted": res.Attempted,
		"Failed":    res.Failed,
		"Rate":      fmt.Sprintf("%.0f%%", res.FailureRate*100),
		"Samples":   samples,
	})
	return subject, buf.String(), err
}
