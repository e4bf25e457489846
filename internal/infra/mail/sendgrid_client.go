// internal/infra/mail/sendgrid_client.go
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	ErrAPIKeyEmpty = errors.New("mail: sendgrid api key is empty")
	ErrFromEmpty   = errors.New("mail: from address is empty")
	ErrToEmpty     = errors.New("mail: to address is empty")
)

// EmailClient は通知メール送信の最小インターフェースです。
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// sender は sendgrid.Client の送信部分（テストで差し替える）
type sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridClient implements EmailClient.
type SendGridClient struct {
	apiKey string
	client sender
	log    zerolog.Logger
}

func NewSendGridClient(apiKey string, log zerolog.Logger) *SendGridClient {
	c := &SendGridClient{
		apiKey: apiKey,
		log:    log.With().Str("component", "sendgrid").Logger(),
	}
	if apiKey != "" {
		c.client = sendgrid.NewSendClient(apiKey)
	}
	return c
}

func (c *SendGridClient) Send(ctx context.Context, from, to, subject, body string) error {
	if c.apiKey == "" || c.client == nil {
		return ErrAPIKeyEmpty
	}
	if from == "" {
		return ErrFromEmpty
	}
	if to == "" {
		return ErrToEmpty
	}

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail("candymint", from),
		subject,
		sgmail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("mail: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		c.log.Error().Int("status", response.StatusCode).Str("body", response.Body).Msg("send failed")
		return fmt.Errorf("mail: sendgrid send failed: status=%d body=%s", response.StatusCode, response.Body)
	}

	c.log.Info().Int("status", response.StatusCode).Str("to", to).Str("subject", subject).Msg("mail sent")
	return nil
}
