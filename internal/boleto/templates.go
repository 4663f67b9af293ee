package boleto

import (
	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	"github.com/Neskrux/CrmInvest-sub003/internal/templates"
)

// Template variables, in approved-template slot order.
const (
	VarName    = "nome"
	VarAmount  = "valor"
	VarDueDate = "data_vencimento"
)

var templateVariables = []string{VarName, VarAmount, VarDueDate}

var templateBodies = map[Kind]string{
	KindThreeDays: "Olá {nome}! Lembramos que seu boleto no valor de {valor} vence em 3 dias, no dia {data_vencimento}. Em caso de dúvidas, estamos à disposição.",
	KindOneDay:    "Olá {nome}! Seu boleto no valor de {valor} vence amanhã, dia {data_vencimento}. Evite juros e multa pagando em dia.",
	KindDueToday:  "Olá {nome}! Seu boleto no valor de {valor} vence hoje, {data_vencimento}. Se o pagamento já foi feito, por favor desconsidere esta mensagem.",
}

// NewTemplateRegistry seeds one template per reminder kind. Approved content
// SIDs come from configuration; kinds without one go out as free text.
func NewTemplateRegistry(cfg *config.Config) (*templates.Registry, error) {
	sids := map[Kind]string{
		KindThreeDays: cfg.WhatsApp.Template3DaysSID,
		KindOneDay:    cfg.WhatsApp.Template1DaySID,
		KindDueToday:  cfg.WhatsApp.TemplateDueTodaySID,
	}
	reg := templates.NewRegistry()
	for _, kind := range Kinds() {
		err := reg.Register(templates.Template{
			Kind:       string(kind),
			Variables:  templateVariables,
			ContentSID: sids[kind],
			Body:       templateBodies[kind],
			PlainText:  cfg.WhatsApp.ForcePlainText,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}
