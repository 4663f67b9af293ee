package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap/zaptest"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

type fakeCreator struct {
	calls []*api.CreateMessageParams
	err   error
	// echo returns the gateway's channel-prefixed addresses on the message
	echo bool
}

func (f *fakeCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	status := "queued"
	created := "Mon, 13 Oct 2025 12:00:00 +0000"
	msg := &api.ApiV2010Message{Sid: &sid, Status: &status, DateCreated: &created}
	if f.echo {
		msg.To, msg.From = params.To, params.From
	}
	return msg, nil
}

func TestReceiptCarriesCanonicalAddresses(t *testing.T) {
	fake := &fakeCreator{echo: true}
	c, err := newClient(fake, config.WhatsApp{
		AccountSID: "AC1",
		AuthToken:  "t",
		FromNumber: "5541999990000",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	receipt, err := c.Send(context.Background(), "whatsapp:+55 (41) 99123-4567", "olá")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if str(fake.calls[0].To) != "whatsapp:+5541991234567" {
		t.Fatalf("gateway address %q", str(fake.calls[0].To))
	}
	if receipt.To != "+5541991234567" || receipt.From != "+5541999990000" {
		t.Fatalf("receipt addresses to=%q from=%q", receipt.To, receipt.From)
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestSendUsesMessagingServiceInProduction(t *testing.T) {
	fake := &fakeCreator{}
	c, err := newClient(fake, config.WhatsApp{
		AccountSID:          "AC1",
		AuthToken:           "t",
		FromNumber:          "+5541999990000",
		MessagingServiceSID: "MG1",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if c.Sandbox() {
		t.Fatal("expected production mode")
	}

	receipt, err := c.Send(context.Background(), "41991234567", "olá")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	p := fake.calls[0]
	if str(p.MessagingServiceSid) != "MG1" || p.From != nil {
		t.Fatalf("expected messaging service sender, got from=%q mg=%q", str(p.From), str(p.MessagingServiceSid))
	}
	if str(p.To) != "whatsapp:+5541991234567" {
		t.Fatalf("unexpected to %q", str(p.To))
	}
	if receipt.SID != "SM123" || receipt.Status != "queued" || receipt.To != "+5541991234567" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.CreatedAt.Year() != 2025 {
		t.Fatalf("created at not parsed: %v", receipt.CreatedAt)
	}
}

func TestSandboxAlwaysUsesFromNumber(t *testing.T) {
	fake := &fakeCreator{}
	c, err := newClient(fake, config.WhatsApp{
		FromNumber:          "whatsapp:" + config.SandboxNumber,
		MessagingServiceSID: "MG1",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if !c.Sandbox() {
		t.Fatal("expected sandbox mode")
	}
	if _, err := c.Send(context.Background(), "+5541991234567", "oi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	p := fake.calls[0]
	if str(p.From) != "whatsapp:"+config.SandboxNumber || p.MessagingServiceSid != nil {
		t.Fatalf("unexpected sender from=%q mg=%q", str(p.From), str(p.MessagingServiceSid))
	}
}

func TestSendTemplateEncodesVariables(t *testing.T) {
	fake := &fakeCreator{}
	c, err := newClient(fake, config.WhatsApp{FromNumber: "+5541999990000"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	vars := map[string]string{"1": "Maria", "2": "R$ 150,00"}
	if _, err := c.SendTemplate(context.Background(), "+5541991234567", "HX1", vars); err != nil {
		t.Fatalf("send template: %v", err)
	}
	p := fake.calls[0]
	if str(p.ContentSid) != "HX1" || p.Body != nil {
		t.Fatalf("unexpected template params sid=%q body=%q", str(p.ContentSid), str(p.Body))
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(str(p.ContentVariables)), &got); err != nil {
		t.Fatalf("content variables not json: %v", err)
	}
	if got["1"] != "Maria" || got["2"] != "R$ 150,00" {
		t.Fatalf("unexpected variables %v", got)
	}
}

func TestNoSenderIdentityIsConfigurationError(t *testing.T) {
	_, err := newClient(&fakeCreator{}, config.WhatsApp{}, zaptest.NewLogger(t))
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	_, err = NewClient(&config.Config{}, zaptest.NewLogger(t))
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError from NewClient, got %v", err)
	}
}

func TestSendClassifiesGatewayErrors(t *testing.T) {
	fake := &fakeCreator{err: &twilioclient.TwilioRestError{Code: CodeRateLimited, Status: 429, Message: "Too many requests"}}
	c, err := newClient(fake, config.WhatsApp{FromNumber: "+5541999990000"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	_, err = c.Send(context.Background(), "+5541991234567", "oi")
	var gw *Error
	if !errors.As(err, &gw) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gw.Code != CodeRateLimited || gw.Status != 429 || gw.Message != "Limite de taxa excedido" {
		t.Fatalf("unexpected classification %+v", gw)
	}
	if IsCritical(err) {
		t.Fatal("rate limit must not be critical")
	}
}

func TestSendRejectsInvalidAddressWithoutCalling(t *testing.T) {
	fake := &fakeCreator{}
	c, _ := newClient(fake, config.WhatsApp{FromNumber: "+5541999990000"}, zaptest.NewLogger(t))
	if _, err := c.Send(context.Background(), "123", "oi"); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 0 {
		t.Fatalf("gateway called %d times", len(fake.calls))
	}
}
