package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/client"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/segment"
)

type SendClient interface {
	Send(ctx context.Context, to, body string) (client.Delivery, error)
}

// StatusFetcher is implemented by clients that can refresh a message status
// after the initial send.
type StatusFetcher interface {
	Status(ctx context.Context, messageID string) (string, error)
}

// Outbound is one message to deliver. Index lets hooks find the originating
// recipient.
type Outbound struct {
	Index int
	Phone string
	Body  string
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Success   bool
	Status    model.Status
	MessageID string
	Err       error
	Duration  time.Duration
}

type Stats struct {
	Sent          int     `json:"total_sent"`
	Failed        int     `json:"total_failed"`
	Total         int     `json:"total_messages"`
	SuccessRate   float64 `json:"success_rate"`
	EstimatedCost float64 `json:"estimated_cost"`
	DryRun        bool    `json:"dry_run"`
}

// Sender delivers messages one at a time, pausing between sends to respect
// the provider's rate limit.
type Sender struct {
	client SendClient
	delay  time.Duration
	dryRun bool

	onSent   func(ctx context.Context, m Outbound, o Outcome) error
	onFailed func(ctx context.Context, m Outbound, o Outcome) error

	mu    sync.Mutex
	stats Stats
}

func NewSender(c SendClient, delay time.Duration, dryRun bool) *Sender {
	if delay < 0 {
		delay = 0
	}
	return &Sender{
		client: c,
		delay:  delay,
		dryRun: dryRun,
		stats:  Stats{DryRun: dryRun},
	}
}

func (s *Sender) WithHooks(
	onSent func(ctx context.Context, m Outbound, o Outcome) error,
	onFailed func(ctx context.Context, m Outbound, o Outcome) error,
) *Sender {
	s.onSent = onSent
	s.onFailed = onFailed
	return s
}

// Deliver sends one message. After a live send it waits the rate-limit delay
// and, when the client supports it, refreshes the status before judging the
// outcome.
func (s *Sender) Deliver(ctx context.Context, to, body string) Outcome {
	start := time.Now()

	d, err := s.client.Send(ctx, to, body)
	if err != nil {
		s.record(false, body)
		return Outcome{Status: model.Failed, Err: err, Duration: time.Since(start)}
	}

	status := model.Status(d.Status)
	if !s.dryRun {
		if err := wait(ctx, s.delay); err == nil {
			if f, ok := s.client.(StatusFetcher); ok && d.MessageID != "" {
				if st, err := f.Status(ctx, d.MessageID); err == nil && st != "" {
					status = model.Status(st)
				}
			}
		}
	}

	o := Outcome{
		Success:   status.Succeeded(),
		Status:    status,
		MessageID: d.MessageID,
		Duration:  time.Since(start),
	}
	if !o.Success {
		o.Err = fmt.Errorf("message status: %s", status)
	}
	s.record(o.Success, body)
	return o
}

// ProcessBatch delivers msgs in order and stops early when ctx is done.
func (s *Sender) ProcessBatch(ctx context.Context, msgs []Outbound) (sent int, failed int) {
	for _, m := range msgs {
		if ctx.Err() != nil {
			break
		}

		o := s.Deliver(ctx, m.Phone, m.Body)
		if o.Success {
			sent++
			if s.onSent != nil {
				_ = s.onSent(ctx, m, o)
			}
			continue
		}

		failed++
		if s.onFailed != nil {
			_ = s.onFailed(ctx, m, o)
		}
	}
	return sent, failed
}

func (s *Sender) record(ok bool, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok {
		s.stats.Sent++
		s.stats.EstimatedCost += segment.Analyze(body).Cost
	} else {
		s.stats.Failed++
	}
}

func (s *Sender) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Total = st.Sent + st.Failed
	if st.Total > 0 {
		st.SuccessRate = float64(st.Sent) / float64(st.Total) * 100
	}
	return st
}

func (s *Sender) ResetStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{DryRun: s.dryRun}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
