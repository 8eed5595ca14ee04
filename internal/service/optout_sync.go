package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/client"
	"github.com/LeventeLantos/sms-campaign/internal/metrics"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/optout"
	"github.com/LeventeLantos/sms-campaign/internal/roster"
	"github.com/LeventeLantos/sms-campaign/internal/sheet"
)

type InboundLister interface {
	ListInbound(ctx context.Context, since time.Time) ([]client.Inbound, error)
}

type SyncResult struct {
	Messages    int  `json:"messages"`
	OptOuts     int  `json:"opt_outs"`
	OptIns      int  `json:"opt_ins"`
	NetOptedOut int  `json:"net_opted_out"`
	Saved       bool `json:"saved"`
	Skipped     bool `json:"skipped"`
}

// OptOutSyncer pulls recent replies from the provider and records STOP and
// START keywords in the customer roster.
type OptOutSyncer struct {
	lister     InboundLister
	merger     *roster.Merger
	rosterPath string
	lookback   time.Duration
	dryRun     bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOptOutSyncer(lister InboundLister, cols model.CustomerColumns, rosterPath string, lookback time.Duration, dryRun bool) *OptOutSyncer {
	return &OptOutSyncer{
		lister:     lister,
		merger:     roster.NewMerger(cols),
		rosterPath: rosterPath,
		lookback:   lookback,
		dryRun:     dryRun,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

func (s *OptOutSyncer) WithLogger(l *slog.Logger) *OptOutSyncer {
	s.logger = l
	return s
}

func (s *OptOutSyncer) WithMetrics(m *metrics.Metrics) *OptOutSyncer {
	s.metrics = m
	return s
}

func (s *OptOutSyncer) WithClock(now func() time.Time) *OptOutSyncer {
	s.now = now
	return s
}

func (s *OptOutSyncer) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	if s.dryRun {
		s.logger.Info("dry run: skipping opt-out sync")
		res.Skipped = true
		return res, nil
	}
	if !sheet.Exists(s.rosterPath) {
		s.logger.Warn("customer list not found, skipping opt-out sync", "file", s.rosterPath)
		res.Skipped = true
		return res, nil
	}

	now := s.now()
	inbound, err := s.lister.ListInbound(ctx, now.Add(-s.lookback))
	if err != nil {
		return res, fmt.Errorf("fetch inbound messages: %w", err)
	}
	res.Messages = len(inbound)

	msgs := make([]optout.Message, len(inbound))
	for i, in := range inbound {
		msgs[i] = optout.Message{From: in.From, Body: in.Body, SentAt: in.SentAt}
	}
	changes := optout.Collect(msgs)
	res.OptOuts = len(changes.OptOut)
	res.OptIns = len(changes.OptIn)
	if changes.Empty() {
		s.logger.Info("no opt-out or opt-in replies found", "messages", res.Messages)
		return res, nil
	}

	current, err := sheet.Read(s.rosterPath)
	if err != nil {
		return res, err
	}
	before := s.merger.CountOptedOut(current)
	updated, applied := s.merger.ApplyConsent(current, changes, now)
	res.NetOptedOut = s.merger.CountOptedOut(updated) - before

	if applied.OptedOut == 0 && applied.OptedIn == 0 {
		s.logger.Info("consent replies matched no customers",
			"opt_outs", res.OptOuts, "opt_ins", res.OptIns)
		return res, nil
	}

	if err := sheet.Write(s.rosterPath, updated); err != nil {
		return res, fmt.Errorf("save customers: %w", err)
	}
	res.Saved = true
	s.metrics.AddConsentChanges(applied.OptedOut, applied.OptedIn)

	s.logger.Info("opt-out sync finished",
		"messages", res.Messages,
		"opted_out", applied.OptedOut,
		"opted_in", applied.OptedIn,
		"net_opted_out", res.NetOptedOut,
	)
	return res, nil
}
