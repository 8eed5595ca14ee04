package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/sms-campaign/internal/archive"
	"github.com/LeventeLantos/sms-campaign/internal/cache"
	"github.com/LeventeLantos/sms-campaign/internal/campaign"
	"github.com/LeventeLantos/sms-campaign/internal/dates"
	"github.com/LeventeLantos/sms-campaign/internal/eligibility"
	"github.com/LeventeLantos/sms-campaign/internal/events"
	"github.com/LeventeLantos/sms-campaign/internal/metrics"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/phone"
	"github.com/LeventeLantos/sms-campaign/internal/render"
	"github.com/LeventeLantos/sms-campaign/internal/repo"
	"github.com/LeventeLantos/sms-campaign/internal/roster"
	"github.com/LeventeLantos/sms-campaign/internal/segment"
	"github.com/LeventeLantos/sms-campaign/internal/sheet"
)

var (
	ErrNewRosterMissing = errors.New("new customer list not found")
	ErrRunInProgress    = errors.New("a campaign run is already in progress")
)

const (
	StatusInterrupted = "interrupted"

	progressEvery = 10
)

type RunnerConfig struct {
	OldRosterPath string
	NewRosterPath string
	CampaignPath  string

	// TestNumbers, when non-empty, restricts every campaign to these numbers.
	TestNumbers []string

	CustomerColumns model.CustomerColumns
	CampaignColumns model.CampaignColumns
	DryRun          bool
}

// CampaignResult is the outcome of one campaign within a run.
type CampaignResult struct {
	Row      int                    `json:"row"`
	Kind     model.Kind             `json:"kind"`
	Label    string                 `json:"label"`
	Eligible int                    `json:"eligible"`
	Sent     int                    `json:"sent"`
	Failed   int                    `json:"failed"`
	Skipped  int                    `json:"skipped"`
	Status   string                 `json:"status"`
	Sample   *segment.Analysis      `json:"sample,omitempty"`
	Report   segment.CampaignReport `json:"report"`
}

type RunSummary struct {
	RunID              string           `json:"run_id"`
	StartedAt          time.Time        `json:"started_at"`
	Duration           time.Duration    `json:"duration"`
	CampaignsProcessed int              `json:"campaigns_processed"`
	TotalSent          int              `json:"total_sent"`
	TotalFailed        int              `json:"total_failed"`
	DryRun             bool             `json:"dry_run"`
	Sender             Stats            `json:"sender"`
	Campaigns          []CampaignResult `json:"campaigns"`
}

type Option func(*Runner)

func WithLedger(l cache.SentLedger) Option { return func(r *Runner) { r.ledger = l } }
func WithSendLog(l repo.SendLog) Option { return func(r *Runner) { r.sendLog = l } }
func WithPublisher(p events.Publisher) Option { return func(r *Runner) { r.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// Runner executes the campaign run loop: merge snapshots, select recipients
// per campaign, send, record, and archive.
type Runner struct {
	cfg      RunnerConfig
	merger   *roster.Merger
	filter   *eligibility.Filter
	renderer *render.Renderer
	sender   *Sender
	archiver archive.Archiver

	ledger    cache.SentLedger
	sendLog   repo.SendLog
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	last    *RunSummary
}

func NewRunner(cfg RunnerConfig, sender *Sender, archiver archive.Archiver, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		merger:   roster.NewMerger(cfg.CustomerColumns),
		filter:   eligibility.NewFilter(cfg.CustomerColumns),
		renderer: render.New(cfg.CustomerColumns),
		sender:   sender,
		archiver: archiver,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// LastSummary returns the summary of the most recent completed run, or nil.
func (r *Runner) LastSummary() *RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// CheckFiles reports on the three input files.
func (r *Runner) CheckFiles() (map[string]sheet.FileInfo, error) {
	out := make(map[string]sheet.FileInfo, 3)
	var errs []error
	for name, path := range map[string]string{
		"customers_old": r.cfg.OldRosterPath,
		"customers_new": r.cfg.NewRosterPath,
		"campaigns":     r.cfg.CampaignPath,
	} {
		fi, err := sheet.Info(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		out[name] = fi
	}
	return out, errors.Join(errs...)
}

// Run performs one full pass. It refuses to start while another pass is in
// flight.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := r.now()
	sum := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: start,
		DryRun:    r.cfg.DryRun,
	}
	log := r.logger.With("run_id", sum.RunID)
	r.sender.ResetStatistics()

	err := r.run(ctx, log, sum)

	sum.Duration = r.now().Sub(start)
	sum.Sender = r.sender.Statistics()

	result := "success"
	if err != nil {
		result = "error"
		log.Error("campaign run failed", "err", err)
	} else {
		log.Info("campaign run finished",
			"campaigns", sum.CampaignsProcessed,
			"sent", sum.TotalSent,
			"failed", sum.TotalFailed,
			"duration", sum.Duration.String(),
		)
	}
	r.metrics.ObserveRun(result, sum.Duration)

	r.mu.Lock()
	r.last = sum
	r.mu.Unlock()

	return sum, err
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, sum *RunSummary) error {
	customers, err := r.loadCustomers(ctx, log)
	if err != nil {
		return err
	}

	if !sheet.Exists(r.cfg.CampaignPath) {
		return fmt.Errorf("%w: %s", campaign.ErrNoCampaignFile, r.cfg.CampaignPath)
	}
	campaignSheet, err := sheet.Read(r.cfg.CampaignPath)
	if err != nil {
		return err
	}
	all := campaign.Load(campaignSheet, r.cfg.CampaignColumns)
	pending := campaign.Pending(all)
	campaign.SortByRank(pending)
	log.Info("campaigns loaded", "total", len(all), "pending", len(pending))

	for i := range pending {
		c := &pending[i]
		res := r.processCampaign(ctx, log, sum.RunID, customers, c)
		sum.Campaigns = append(sum.Campaigns, res)
		sum.TotalSent += res.Sent
		sum.TotalFailed += res.Failed

		if res.Status == campaign.StatusCompleted {
			campaign.MarkProcessed(campaignSheet, r.cfg.CampaignColumns, c, r.now(), res.Status)
			sum.CampaignsProcessed++
		}

		if err := sheet.Write(r.cfg.OldRosterPath, customers); err != nil {
			return fmt.Errorf("save customers: %w", err)
		}
		if err := sheet.Write(r.cfg.CampaignPath, campaignSheet); err != nil {
			return fmt.Errorf("save campaigns: %w", err)
		}

		r.publish(ctx, log, sum.RunID, res)

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if len(pending) == 0 {
		log.Warn("no pending campaigns to process")
		if err := sheet.Write(r.cfg.OldRosterPath, customers); err != nil {
			return fmt.Errorf("save customers: %w", err)
		}
	}

	if sheet.Exists(r.cfg.NewRosterPath) {
		dst, err := r.archiver.Move(ctx, r.cfg.NewRosterPath)
		if err != nil {
			return err
		}
		log.Info("archived processed customer list", "to", dst)
	}
	return nil
}

// loadCustomers reads both snapshots, merges them and removes duplicate phone
// keys. The previous snapshot is archived before anything overwrites it.
func (r *Runner) loadCustomers(ctx context.Context, log *slog.Logger) (*model.Roster, error) {
	var previous *model.Roster
	if sheet.Exists(r.cfg.OldRosterPath) {
		old, err := sheet.Read(r.cfg.OldRosterPath)
		if err != nil {
			return nil, err
		}
		log.Info("loaded previous customer list", "file", r.cfg.OldRosterPath, "count", old.Len())

		dst, err := r.archiver.Copy(ctx, r.cfg.OldRosterPath)
		if err != nil {
			return nil, err
		}
		log.Info("archived previous customer list", "to", dst)

		previous, _, err = r.merger.Normalize(old)
		if err != nil {
			return nil, fmt.Errorf("previous customer list: %w", err)
		}
	}

	if !sheet.Exists(r.cfg.NewRosterPath) {
		return nil, fmt.Errorf("%w: %s", ErrNewRosterMissing, r.cfg.NewRosterPath)
	}
	fresh, err := sheet.Read(r.cfg.NewRosterPath)
	if err != nil {
		return nil, err
	}
	log.Info("loaded new customer list", "file", r.cfg.NewRosterPath, "count", fresh.Len())

	incoming, dropped, err := r.merger.Normalize(fresh)
	if err != nil {
		return nil, fmt.Errorf("new customer list: %w", err)
	}
	if dropped > 0 {
		log.Warn("dropped rows without a usable phone number", "count", dropped)
	}

	merged, err := r.merger.Merge(previous, incoming)
	if err != nil {
		return nil, err
	}
	merged, removed := r.merger.Deduplicate(merged)
	if removed > 0 {
		log.Warn("removed duplicate phone numbers", "count", removed)
	}
	log.Info("active customer list", "count", merged.Len(), "opted_out", r.merger.CountOptedOut(merged))
	return merged, nil
}

func (r *Runner) processCampaign(ctx context.Context, log *slog.Logger, runID string, customers *model.Roster, c *model.Campaign) CampaignResult {
	log = log.With("campaign_row", c.Row, "kind", string(c.Kind))
	res := CampaignResult{Row: c.Row, Kind: c.Kind, Label: c.Label, Status: campaign.StatusCompleted}

	now := r.now()
	eligible := r.filter.Eligible(customers, *c, now)
	log.Info("campaign filters applied", "pool", customers.Len(), "eligible", len(eligible))

	if len(r.cfg.TestNumbers) > 0 {
		before := len(eligible)
		eligible = r.restrictToTestNumbers(eligible)
		log.Warn("test mode: restricting recipients to test numbers",
			"test_numbers", len(r.cfg.TestNumbers), "before", before, "after", len(eligible))
	}

	res.Eligible = len(eligible)
	r.metrics.SetEligible(strconv.Itoa(c.Row), string(c.Kind), res.Eligible)
	if res.Eligible == 0 {
		log.Warn("no eligible customers for this campaign")
		return res
	}

	bodies := make([]string, len(eligible))
	for i, rec := range eligible {
		bodies[i] = r.renderer.Render(*c, rec)
	}

	sample := segment.Analyze(bodies[0])
	res.Sample = &sample
	res.Report = segment.AnalyzeCampaign(bodies)
	r.logAnalysis(log, sample, res.Report)

	ledgerKey := fmt.Sprintf("%d:%s", c.Row, now.Format(dates.DayLayout))
	phoneCol := r.cfg.CustomerColumns.Phone

	var batch []Outbound
	for i, rec := range eligible {
		to := rec[phoneCol]
		if r.ledger != nil {
			done, err := r.ledger.WasSent(ctx, ledgerKey, to)
			if err != nil {
				log.Warn("sent ledger lookup failed", "phone", to, "err", err)
			} else if done {
				res.Skipped++
				continue
			}
		}
		batch = append(batch, Outbound{Index: i, Phone: to, Body: bodies[i]})
	}
	if res.Skipped > 0 {
		log.Info("skipping recipients already messaged today", "count", res.Skipped)
	}

	record := func(ctx context.Context, m Outbound, o Outcome) {
		rec := eligible[m.Index]
		at := r.now()
		rec[r.cfg.CustomerColumns.LastSMSSent] = at.Format(dates.StampLayout)
		rec[r.cfg.CustomerColumns.LastSMSStatus] = string(o.Status)

		a := segment.Analyze(m.Body)
		outcome := "sent"
		if !o.Success {
			outcome = "failed"
			log.Error("failed to send", "phone", m.Phone, "status", string(o.Status), "err", o.Err)
		} else {
			r.metrics.AddSegments(string(c.Kind), string(a.Encoding), a.Segments, a.Cost)
			if r.ledger != nil {
				if err := r.ledger.StoreSent(ctx, ledgerKey, m.Phone, o.MessageID, at); err != nil {
					log.Warn("sent ledger write failed", "phone", m.Phone, "err", err)
				}
			}
		}
		r.metrics.ObserveSend(string(c.Kind), outcome, o.Duration)

		if r.sendLog != nil {
			entry := &model.SendRecord{
				RunID:        runID,
				CampaignRow:  c.Row,
				CampaignKind: c.Kind,
				Phone:        m.Phone,
				Body:         m.Body,
				Status:       o.Status,
				Segments:     a.Segments,
				SentAt:       at,
			}
			if o.MessageID != "" {
				id := o.MessageID
				entry.MessageID = &id
			}
			if o.Err != nil {
				msg := o.Err.Error()
				entry.LastError = &msg
			}
			if o.Success {
				entry.Cost = a.Cost
			}
			if err := r.sendLog.Insert(ctx, entry); err != nil {
				log.Warn("send log insert failed", "phone", m.Phone, "err", err)
			}
		}
	}

	var progress int
	r.sender.WithHooks(
		func(ctx context.Context, m Outbound, o Outcome) error {
			record(ctx, m, o)
			progress++
			if progress%progressEvery == 0 {
				log.Info("progress", "sent", progress, "of", len(batch))
			}
			return nil
		},
		func(ctx context.Context, m Outbound, o Outcome) error {
			record(ctx, m, o)
			return nil
		},
	)

	log.Info("sending messages", "count", len(batch))
	res.Sent, res.Failed = r.sender.ProcessBatch(ctx, batch)

	if ctx.Err() != nil {
		res.Status = StatusInterrupted
	}
	log.Info("campaign finished", "sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped, "status", res.Status)
	return res
}

func (r *Runner) restrictToTestNumbers(eligible []model.Record) []model.Record {
	allowed := make(map[string]struct{}, len(r.cfg.TestNumbers))
	for _, n := range phone.NormalizeAll(r.cfg.TestNumbers) {
		allowed[n] = struct{}{}
	}

	out := eligible[:0:0]
	for _, rec := range eligible {
		if _, ok := allowed[rec[r.cfg.CustomerColumns.Phone]]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Runner) logAnalysis(log *slog.Logger, a segment.Analysis, rep segment.CampaignReport) {
	log.Info("message cost analysis",
		"length", a.Length,
		"effective_length", a.EffectiveLength,
		"encoding", string(a.Encoding),
		"segments", a.Segments,
		"cost_per_message", a.CostFormatted(),
		"chars_remaining", a.CharsRemaining,
		"recipients", rep.TotalMessages,
		"total_segments", rep.TotalSegments,
		"total_cost", rep.TotalCostFormatted(),
	)
	for _, w := range a.Warnings {
		log.Warn(w)
	}
	for _, rec := range a.Recommendations {
		log.Info(rec)
	}
	if !a.Optimal {
		log.Warn("campaign costs more than single-segment messages",
			"current_cost", fmt.Sprintf("$%.2f", rep.TotalCost),
			"optimal_cost", fmt.Sprintf("$%.2f", rep.OptimalCost),
			"extra_cost", fmt.Sprintf("$%.2f", rep.ExtraCost),
		)
	}
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, runID string, res CampaignResult) {
	if r.publisher == nil {
		return
	}
	ev := events.CampaignCompleted{
		RunID:       runID,
		CampaignRow: res.Row,
		Kind:        string(res.Kind),
		Eligible:    res.Eligible,
		Sent:        res.Sent,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
		Status:      res.Status,
		DryRun:      r.cfg.DryRun,
		CompletedAt: r.now(),
	}
	if err := r.publisher.PublishCampaignCompleted(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("publish campaign event failed", "err", err)
	}
}
