// Package campaign turns the campaign sheet into campaign definitions and
// records which of them have run.
package campaign

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/dates"
	"github.com/LeventeLantos/sms-campaign/internal/model"
)

var ErrNoCampaignFile = errors.New("campaign file not found")

const (
	StatusCompleted = "completed"

	// fallbackCharLimit applies when the character limit cell holds
	// something that is not a number.
	fallbackCharLimit = 160
)

// Load builds one campaign per sheet row. Row holds the zero-based index into
// t.Records so the row can be stamped later.
func Load(t *model.Table, cols model.CampaignColumns) []model.Campaign {
	if t == nil {
		return nil
	}

	out := make([]model.Campaign, 0, len(t.Records))
	for i, rec := range t.Records {
		label, _ := rec.Value(cols.Kind)
		if label == "" {
			label = "Campaign"
		}

		c := model.Campaign{
			Row:             i,
			Template:        rec[cols.Template],
			Kind:            model.ParseKind(label),
			Label:           label,
			Rank:            model.DefaultRank,
			LastVisitDays:   optionalInt(rec, cols.LastVisitDays),
			LastSMSDays:     optionalInt(rec, cols.LastSMSDays),
			ProcessedDate:   rec[cols.ProcessDate],
			ProcessedStatus: rec[cols.ProcessStatus],
		}
		if cols.BirthdayOffsetDays != "" {
			c.BirthdayOffsetDays = optionalInt(rec, cols.BirthdayOffsetDays)
		}

		if v, ok := rec.Value(cols.Rank); ok {
			if n, ok := parseInt(v); ok {
				c.Rank = n
			}
		}
		if v, ok := rec.Value(cols.CharacterLimit); ok {
			if n, ok := parseInt(v); ok {
				c.CharLimit = n
			} else {
				c.CharLimit = fallbackCharLimit
			}
		}

		out = append(out, c)
	}
	return out
}

// Pending returns the campaigns to run this time. Announcements run once;
// every other kind runs on each invocation and relies on its filters.
func Pending(campaigns []model.Campaign) []model.Campaign {
	out := make([]model.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.Kind == model.KindAnnounce && c.IsProcessed() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SortByRank orders campaigns by ascending rank, keeping sheet order for ties.
func SortByRank(campaigns []model.Campaign) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].Rank < campaigns[j].Rank
	})
}

// MarkProcessed stamps the campaign's row with the run time and status.
func MarkProcessed(t *model.Table, cols model.CampaignColumns, c *model.Campaign, now time.Time, status string) {
	if t == nil || c.Row < 0 || c.Row >= len(t.Records) {
		return
	}
	t.EnsureColumn(cols.ProcessDate)
	t.EnsureColumn(cols.ProcessStatus)

	stamp := now.Format(dates.StampLayout)
	rec := t.Records[c.Row]
	rec[cols.ProcessDate] = stamp
	rec[cols.ProcessStatus] = status

	c.ProcessedDate = stamp
	c.ProcessedStatus = status
}

// Reset clears the processed markers on every row and returns how many rows
// had one.
func Reset(t *model.Table, cols model.CampaignColumns) int {
	if t == nil {
		return 0
	}
	t.EnsureColumn(cols.ProcessDate)
	t.EnsureColumn(cols.ProcessStatus)

	n := 0
	for _, rec := range t.Records {
		_, hasDate := rec.Value(cols.ProcessDate)
		_, hasStatus := rec.Value(cols.ProcessStatus)
		if hasDate || hasStatus {
			n++
		}
		rec[cols.ProcessDate] = ""
		rec[cols.ProcessStatus] = ""
	}
	return n
}

func optionalInt(rec model.Record, col string) *int {
	v, ok := rec.Value(col)
	if !ok {
		return nil
	}
	n, ok := parseInt(v)
	if !ok {
		return nil
	}
	return &n
}

// parseInt accepts spreadsheet numerics such as "30" or "30.0" and truncates
// toward zero.
func parseInt(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
