package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTwilioBaseURL = "https://api.twilio.com"

	sendAttempts = 3
	pageSize     = 100
)

var tracer = otel.Tracer("smscampaign.internal.client.twilio")

// Delivery is the provider's answer to a send or status request.
type Delivery struct {
	MessageID string
	Status    string
}

// Inbound is a message received on the sender number.
type Inbound struct {
	ID     string
	From   string
	Body   string
	SentAt time.Time
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// APIKey and APISecret take precedence over AuthToken when both are set.
	APIKey    string
	APISecret string

	From    string
	BaseURL string
	Timeout time.Duration
}

// TwilioClient talks to the Twilio Messages REST resource.
type TwilioClient struct {
	accountSID string
	user       string
	pass       string
	from       string
	baseURL    string
	client     *http.Client

	backoff func(attempt int) time.Duration
}

func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	user, pass := cfg.AccountSID, cfg.AuthToken
	if cfg.APIKey != "" && cfg.APISecret != "" {
		user, pass = cfg.APIKey, cfg.APISecret
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultTwilioBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioClient{
		accountSID: cfg.AccountSID,
		user:       user,
		pass:       pass,
		from:       cfg.From,
		baseURL:    base,
		client:     &http.Client{Timeout: timeout},
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
}

type twilioMessage struct {
	SID      string `json:"sid"`
	From     string `json:"from"`
	To       string `json:"to"`
	Body     string `json:"body"`
	Status   string `json:"status"`
	DateSent string `json:"date_sent"`
}

type twilioPage struct {
	Messages    []twilioMessage `json:"messages"`
	NextPageURI string          `json:"next_page_uri"`
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// Send creates an outbound message. Creating a message is not idempotent, so
// only 429 responses and failures to connect are retried. Any other error,
// including a timeout or 5xx after the request went out, fails immediately.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (Delivery, error) {
	if c.accountSID == "" || c.user == "" || c.pass == "" {
		return Delivery{}, errors.New("twilio: credentials missing")
	}
	if c.from == "" {
		return Delivery{}, errors.New("twilio: from number required")
	}
	if to == "" {
		return Delivery{}, errors.New("twilio: to required")
	}
	if strings.TrimSpace(body) == "" {
		return Delivery{}, errors.New("twilio: body required")
	}

	ctx, span := tracer.Start(ctx, "twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("sms.to", to))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)
	payload := form.Encode()

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), strings.NewReader(payload))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(c.user, c.pass)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if !isDialError(err) {
				break
			}
		} else {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var m twilioMessage
				if err := json.Unmarshal(raw, &m); err != nil {
					lastErr = fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
					break
				}
				if m.SID == "" {
					lastErr = fmt.Errorf("missing sid in response body=%q", string(raw))
					break
				}
				return Delivery{MessageID: m.SID, Status: m.Status}, nil
			}

			lastErr = fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, raw))
			if resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < sendAttempts {
			if err := sleep(ctx, c.backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	span.RecordError(lastErr)
	return Delivery{}, lastErr
}

// isDialError reports whether err happened while connecting, before any
// part of the request reached the server.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Status fetches the current status of a sent message.
func (c *TwilioClient) Status(ctx context.Context, messageID string) (string, error) {
	ctx, span := tracer.Start(ctx, "twilio.status")
	defer span.End()

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json", c.baseURL, c.accountSID, url.PathEscape(messageID))

	var m twilioMessage
	if err := c.getJSON(ctx, endpoint, &m); err != nil {
		span.RecordError(err)
		return "", err
	}
	return m.Status, nil
}

// ListInbound returns messages sent to the configured number since the given
// time, following pagination.
func (c *TwilioClient) ListInbound(ctx context.Context, since time.Time) ([]Inbound, error) {
	ctx, span := tracer.Start(ctx, "twilio.list_inbound")
	defer span.End()

	q := url.Values{}
	q.Set("To", c.from)
	q.Set("DateSent>", since.UTC().Format("2006-01-02"))
	q.Set("PageSize", fmt.Sprint(pageSize))
	next := c.messagesURL() + "?" + q.Encode()

	var out []Inbound
	for next != "" {
		var page twilioPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, m := range page.Messages {
			sentAt, _ := time.Parse(time.RFC1123Z, m.DateSent)
			if !sentAt.IsZero() && sentAt.Before(since) {
				continue
			}
			out = append(out, Inbound{ID: m.SID, From: m.From, Body: m.Body, SentAt: sentAt})
		}

		next = ""
		if page.NextPageURI != "" {
			next = c.baseURL + page.NextPageURI
		}
	}
	span.SetAttributes(attribute.Int("sms.inbound_count", len(out)))
	return out, nil
}

func (c *TwilioClient) messagesURL() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
}

func (c *TwilioClient) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twilio request failed: %s", formatTwilioError(resp.StatusCode, raw))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode json: %w body=%q", err, string(raw))
	}
	return nil
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
