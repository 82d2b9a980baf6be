package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gsoultan/gsmail"
	"github.com/gsoultan/gsmail/smtp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/user/courier"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Provider names the message relay used.
type Provider string

const (
	ProviderWebhook  Provider = "webhook"
	ProviderSlack    Provider = "slack"
	ProviderDiscord  Provider = "discord"
	ProviderTelegram Provider = "telegram"
	ProviderEmail    Provider = "email"
)

type SMTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	SSL      bool   `json:"ssl" yaml:"ssl"`
}

type Config struct {
	Provider Provider
	// URL is the webhook URL for webhook, slack and discord.
	URL            string
	TelegramToken  string
	TelegramChatID string
	// TelegramAPI overrides the Bot API base URL.
	TelegramAPI string
	SMTP        SMTPConfig
	Client      *http.Client
}

// Channel relays the form metadata to a human. It never transmits the file,
// so a success here is never a delivery.
type Channel struct {
	cfg    Config
	client *http.Client
	logger courier.Logger
}

func NewNotificationChannel(cfg Config) (*Channel, error) {
	switch cfg.Provider {
	case ProviderWebhook, ProviderSlack, ProviderDiscord:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%s notification requires a url", cfg.Provider)
		}
	case ProviderTelegram:
		if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
			return nil, fmt.Errorf("telegram notification requires token and chat id")
		}
		if cfg.TelegramAPI == "" {
			cfg.TelegramAPI = defaultTelegramAPI
		}
	case ProviderEmail:
		if cfg.SMTP.Host == "" || cfg.SMTP.To == "" {
			return nil, fmt.Errorf("email notification requires smtp host and recipient")
		}
	default:
		return nil, fmt.Errorf("unknown notification provider: %q", cfg.Provider)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Channel{cfg: cfg, client: client}, nil
}

func (c *Channel) SetLogger(logger courier.Logger) {
	c.logger = logger
}

func (c *Channel) Delivery() courier.Delivery {
	return courier.DeliveryNotification
}

func (c *Channel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Channel) Attempt(ctx context.Context, p *courier.Payload, timeout time.Duration) courier.Outcome {
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	title := "Upload attempt could not be delivered"
	text := Summary(p)

	switch c.cfg.Provider {
	case ProviderEmail:
		return c.sendEmail(ctx, title, text)
	case ProviderTelegram:
		body, err := sjson.SetBytes(nil, "chat_id", c.cfg.TelegramChatID)
		if err == nil {
			body, err = sjson.SetBytes(body, "text", fmt.Sprintf("*%s*\n%s", title, text))
		}
		if err == nil {
			body, err = sjson.SetBytes(body, "parse_mode", "Markdown")
		}
		if err != nil {
			return courier.Failed(courier.FailureUnsupported, "failed to build body: %v", err)
		}
		apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.cfg.TelegramAPI, "/"), c.cfg.TelegramToken)
		return c.post(ctx, apiURL, body)
	case ProviderSlack:
		body, err := sjson.SetBytes(nil, "text", fmt.Sprintf("*%s*\n%s", title, text))
		if err != nil {
			return courier.Failed(courier.FailureUnsupported, "failed to build body: %v", err)
		}
		return c.post(ctx, c.cfg.URL, body)
	case ProviderDiscord:
		body, err := sjson.SetBytes(nil, "content", fmt.Sprintf("**%s**\n%s", title, text))
		if err != nil {
			return courier.Failed(courier.FailureUnsupported, "failed to build body: %v", err)
		}
		return c.post(ctx, c.cfg.URL, body)
	default:
		body, err := WebhookBody(p)
		if err != nil {
			return courier.Failed(courier.FailureUnsupported, "failed to build body: %v", err)
		}
		return c.post(ctx, c.cfg.URL, body)
	}
}

// Summary is the human readable text relayed in place of the file.
func Summary(p *courier.Payload) string {
	f := p.Fields()
	file := p.File()
	return fmt.Sprintf("%s <%s> (+%s %s) tried to upload %s (%d bytes, %s). The file itself was not delivered.\nSubmission: %s",
		f.Username, f.Email, strings.TrimPrefix(strings.TrimSpace(f.PhoneCountryCode), "+"), f.PhoneNumber,
		file.Name(), file.Size(), file.ContentType(), p.ID())
}

// WebhookBody is the JSON document posted to a generic webhook.
func WebhookBody(p *courier.Payload) ([]byte, error) {
	f := p.Fields()
	file := p.File()
	values := []struct {
		path  string
		value interface{}
	}{
		{"event", "submission.undelivered"},
		{"submission_id", p.ID()},
		{"submitted_at", p.CreatedAt().UTC().Format(time.RFC3339)},
		{"fields.username", f.Username},
		{"fields.email", f.Email},
		{"fields.phoneCode", f.PhoneCountryCode},
		{"fields.phone", f.PhoneNumber},
		{"file.name", file.Name()},
		{"file.size", file.Size()},
		{"file.content_type", file.ContentType()},
	}

	var body []byte
	var err error
	for _, v := range values {
		body, err = sjson.SetBytes(body, v.path, v.value)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (c *Channel) post(ctx context.Context, url string, body []byte) courier.Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return courier.Failed(courier.FailureUnsupported, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return courier.FailureFromError(ctxErr)
		}
		return courier.FailureFromError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := resp.Status
		if desc := gjson.GetBytes(respBody, "description"); desc.Exists() {
			msg = desc.String()
		}
		return courier.Rejected(resp.StatusCode, msg)
	}
	return courier.Succeeded("")
}

func (c *Channel) sendEmail(ctx context.Context, title, text string) courier.Outcome {
	s := c.cfg.SMTP
	sender := smtp.NewSender(s.Host, s.Port, s.User, s.Password, s.SSL)

	email := gsmail.Email{
		From:    s.From,
		To:      []string{s.To},
		Subject: title,
		Body:    []byte(text),
	}
	if err := sender.Send(ctx, email); err != nil {
		if c.logger != nil {
			c.logger.Warn("Notification email failed", "host", s.Host, "error", err)
		}
		return courier.FailureFromError(err)
	}
	return courier.Succeeded("")
}
