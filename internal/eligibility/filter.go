package eligibility

import (
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/dates"
	"github.com/LeventeLantos/sms-campaign/internal/model"
)

// Filter selects the customers a campaign should reach today.
type Filter struct {
	cols model.CustomerColumns
}

func NewFilter(cols model.CustomerColumns) *Filter {
	return &Filter{cols: cols}
}

type candidate struct {
	rec           model.Record
	lastVisit     *time.Time
	lastSMS       *time.Time
	birthday      *time.Time
	customerSince *time.Time
}

// Eligible returns the roster records that pass every stage for campaign c,
// in roster order. Returned records are the roster's own records.
//
// Stages run in order: consent, date parsing, last visit, last SMS (skipped
// for birthday, anniversary and announce campaigns), birthday match,
// anniversary match. Unreadable dates count as unknown, which passes the
// recency stages and fails the date matches.
func (f *Filter) Eligible(r *model.Roster, c model.Campaign, now time.Time) []model.Record {
	if r == nil {
		return nil
	}

	working := make([]candidate, 0, len(r.Records))
	for _, rec := range r.Records {
		if model.IsOptedOut(rec[f.cols.OptOut]) {
			continue
		}
		working = append(working, candidate{rec: rec})
	}

	loc := now.Location()
	for i := range working {
		cand := &working[i]
		cand.lastVisit = parse(cand.rec, f.cols.LastVisit, loc)
		cand.lastSMS = parse(cand.rec, f.cols.LastSMSSent, loc)
		cand.birthday = parse(cand.rec, f.cols.Birthday, loc)
		cand.customerSince = parse(cand.rec, f.cols.CustomerSince, loc)
	}

	if c.LastVisitDays != nil {
		threshold := now.AddDate(0, 0, -*c.LastVisitDays)
		working = keep(working, func(cand candidate) bool {
			return cand.lastVisit == nil || !cand.lastVisit.After(threshold)
		})
	}

	if c.LastSMSDays != nil && !c.Kind.DateExempt() {
		threshold := now.AddDate(0, 0, -*c.LastSMSDays)
		working = keep(working, func(cand candidate) bool {
			return cand.lastSMS == nil || !cand.lastSMS.After(threshold)
		})
	}

	if c.Kind == model.KindBirthday {
		target := now.AddDate(0, 0, c.BirthdayOffset())
		working = keep(working, func(cand candidate) bool {
			return cand.birthday != nil && dates.SameMonthDay(*cand.birthday, target)
		})
	}

	if c.Kind == model.KindAnniversary {
		working = keep(working, func(cand candidate) bool {
			return cand.customerSince != nil && dates.SameMonthDay(*cand.customerSince, now)
		})
	}

	out := make([]model.Record, len(working))
	for i, cand := range working {
		out[i] = cand.rec
	}
	return out
}

func parse(rec model.Record, col string, loc *time.Location) *time.Time {
	t, ok := dates.Parse(rec[col], loc)
	if !ok {
		return nil
	}
	return &t
}

func keep(in []candidate, pred func(candidate) bool) []candidate {
	out := in[:0]
	for _, c := range in {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}
