package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/resilience"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	Retries    int
	Backoff    time.Duration
}

// SMS sends each message as a text through Twilio.
type SMS struct {
	cfg    SMSConfig
	client messageCreator
	retry  resilience.RetryPolicy
	log    *slog.Logger
}

func NewSMS(cfg SMSConfig, log *slog.Logger) *SMS {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &SMS{cfg: cfg, retry: resilience.NewRetryPolicy(cfg.Retries, cfg.Backoff), log: log}
}

func (s *SMS) Write(ctx context.Context, text string) error {
	if s.cfg.To == "" || s.cfg.From == "" {
		return errors.New("sms: to/from required")
	}
	if s.cfg.AccountSID == "" || s.cfg.AuthToken == "" {
		return errors.New("sms: missing twilio credentials")
	}
	client := s.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: s.cfg.AccountSID,
			Password: s.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateMessageParams{}
	params.SetTo(s.cfg.To)
	params.SetFrom(s.cfg.From)
	params.SetBody(text)
	var sid string
	err := s.retry.Do(ctx, func() error {
		resp, err := client.CreateMessage(params)
		if err != nil {
			return err
		}
		if resp == nil || resp.Sid == nil {
			return fmt.Errorf("missing message sid")
		}
		sid = *resp.Sid
		return nil
	})
	if err != nil {
		s.log.Warn("sms_send_failed", "error", err)
		return errorsx.Wrap(fmt.Errorf("sms: %w", err), errorsx.ReasonSMSSend)
	}
	s.log.Info("sms_sent", "message_sid", sid)
	return nil
}
