package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	"github.com/Neskrux/CrmInvest-sub003/internal/phone"
)

// Receipt describes an accepted outbound message. From and To hold canonical
// +E.164 numbers without the channel prefix.
type Receipt struct {
	SID       string    `json:"sid"`
	Status    string    `json:"status"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

// messageCreator is the part of the Twilio API service the client uses.
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Client sends WhatsApp messages through Twilio. It never touches storage.
type Client struct {
	api                 messageCreator
	sandbox             bool
	from                string
	messagingServiceSID string
	log                 *zap.Logger
}

// NewClient validates the sender configuration and builds a Twilio-backed
// client. Configuration problems are returned before anything is sent.
func NewClient(cfg *config.Config, log *zap.Logger) (*Client, error) {
	if err := cfg.WhatsApp.Validate(); err != nil {
		return nil, err
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.WhatsApp.AccountSID,
		Password: cfg.WhatsApp.AuthToken,
	})
	return newClient(rest.Api, cfg.WhatsApp, log)
}

func newClient(creator messageCreator, cfg config.WhatsApp, log *zap.Logger) (*Client, error) {
	c := &Client{
		api:     creator,
		sandbox: cfg.IsSandbox(),
		log:     log.Named("whatsapp"),
	}
	if !c.sandbox {
		c.messagingServiceSID = cfg.MessagingServiceSID
	}
	if cfg.FromNumber != "" {
		from, err := phone.Normalize(cfg.FromNumber)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "WHATSAPP_FROM_NUMBER", Reason: err.Error()}
		}
		c.from = phone.ChannelAddress(from)
	}
	if c.messagingServiceSID == "" && c.from == "" {
		return nil, &config.ConfigurationError{Field: "WHATSAPP_FROM_NUMBER", Reason: "no sender identity configured"}
	}
	c.log.Info("whatsapp client ready",
		zap.Bool("sandbox", c.sandbox),
		zap.Bool("messaging_service", c.messagingServiceSID != ""),
	)
	return c, nil
}

// Sandbox reports whether the client talks to the Twilio sandbox.
func (c *Client) Sandbox() bool { return c.sandbox }

// Send delivers a free-text message to a canonical address.
func (c *Client) Send(ctx context.Context, to, body string) (*Receipt, error) {
	params, err := c.baseParams(to)
	if err != nil {
		return nil, err
	}
	params.SetBody(body)
	return c.create(ctx, params)
}

// SendTemplate delivers an approved template with positional variables.
func (c *Client) SendTemplate(ctx context.Context, to, contentSID string, vars map[string]string) (*Receipt, error) {
	params, err := c.baseParams(to)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("encode content variables: %w", err)
	}
	params.SetContentSid(contentSID)
	params.SetContentVariables(string(payload))
	return c.create(ctx, params)
}

func (c *Client) baseParams(to string) (*api.CreateMessageParams, error) {
	canonical, err := phone.Normalize(to)
	if err != nil {
		return nil, err
	}
	params := &api.CreateMessageParams{}
	params.SetTo(phone.ChannelAddress(canonical))
	if c.messagingServiceSID != "" {
		params.SetMessagingServiceSid(c.messagingServiceSID)
	} else {
		params.SetFrom(c.from)
	}
	return params, nil
}

func (c *Client) create(ctx context.Context, params *api.CreateMessageParams) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	msg, err := c.api.CreateMessage(params)
	if err != nil {
		return nil, Classify(err)
	}
	receipt := &Receipt{
		SID:       deref(msg.Sid),
		Status:    deref(msg.Status),
		From:      deref(msg.From),
		To:        deref(msg.To),
		CreatedAt: time.Now().UTC(),
	}
	if receipt.From == "" {
		receipt.From = deref(params.From)
	}
	if receipt.To == "" {
		receipt.To = deref(params.To)
	}
	receipt.From = strings.TrimPrefix(receipt.From, phone.ChannelPrefix)
	receipt.To = strings.TrimPrefix(receipt.To, phone.ChannelPrefix)
	if created := deref(msg.DateCreated); created != "" {
		if t, err := time.Parse(time.RFC1123Z, created); err == nil {
			receipt.CreatedAt = t.UTC()
		}
	}
	c.log.Debug("message accepted", zap.String("sid", receipt.SID), zap.String("status", receipt.Status))
	return receipt, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
