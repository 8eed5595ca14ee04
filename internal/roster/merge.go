package roster

import (
	"errors"
	"fmt"

	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/phone"
)

var ErrMissingPhoneColumn = errors.New("phone column not found")

type Merger struct {
	cols model.CustomerColumns
}

func NewMerger(cols model.CustomerColumns) *Merger {
	return &Merger{cols: cols}
}

// Normalize replaces every phone value with its key and drops records that
// have none. The input roster is not modified.
func (m *Merger) Normalize(r *model.Roster) (*model.Roster, int, error) {
	if !r.HasColumn(m.cols.Phone) {
		return nil, 0, fmt.Errorf("%w: %q", ErrMissingPhoneColumn, m.cols.Phone)
	}

	out := model.NewRoster(r.Columns)
	out.Records = make([]model.Record, 0, len(r.Records))
	dropped := 0
	for _, rec := range r.Records {
		key, ok := phone.Normalize(rec[m.cols.Phone])
		if !ok {
			dropped++
			continue
		}
		c := rec.Clone()
		c[m.cols.Phone] = key
		out.Records = append(out.Records, c)
	}
	return out, dropped, nil
}

// Merge combines the previous snapshot with the incoming one. Incoming values
// win, blanks are filled from the previous record, and keys only present in
// previous are carried over. An opt-out recorded in previous always survives.
func (m *Merger) Merge(previous, incoming *model.Roster) (*model.Roster, error) {
	if !incoming.HasColumn(m.cols.Phone) {
		return nil, fmt.Errorf("%w in incoming roster: %q", ErrMissingPhoneColumn, m.cols.Phone)
	}

	if previous == nil || previous.Len() == 0 {
		out := incoming.Clone()
		m.ensureTrackingColumns(out)
		return out, nil
	}
	if !previous.HasColumn(m.cols.Phone) {
		return nil, fmt.Errorf("%w in previous roster: %q", ErrMissingPhoneColumn, m.cols.Phone)
	}

	prevByKey := make(map[string]model.Record, len(previous.Records))
	for _, rec := range previous.Records {
		key, ok := rec.Value(m.cols.Phone)
		if !ok {
			continue
		}
		if _, seen := prevByKey[key]; !seen {
			prevByKey[key] = rec
		}
	}

	out := model.NewRoster(incoming.Columns)
	for _, col := range previous.Columns {
		out.EnsureColumn(col)
	}
	out.Records = make([]model.Record, 0, len(incoming.Records)+len(previous.Records))

	incomingKeys := make(map[string]struct{}, len(incoming.Records))
	for _, rec := range incoming.Records {
		key, ok := rec.Value(m.cols.Phone)
		if !ok {
			continue
		}
		incomingKeys[key] = struct{}{}

		merged := rec.Clone()
		merged[m.cols.Phone] = key
		if prev, ok := prevByKey[key]; ok {
			fillGaps(merged, prev)
			m.keepOptOut(merged, prev)
		}
		out.Records = append(out.Records, merged)
	}

	for _, rec := range previous.Records {
		key, ok := rec.Value(m.cols.Phone)
		if !ok {
			continue
		}
		if _, dup := incomingKeys[key]; dup {
			continue
		}
		out.Records = append(out.Records, rec.Clone())
	}

	m.ensureTrackingColumns(out)
	return out, nil
}

// Deduplicate keeps the first record for every phone key and reports how many
// were dropped.
func (m *Merger) Deduplicate(r *model.Roster) (*model.Roster, int) {
	out := model.NewRoster(r.Columns)
	out.Records = make([]model.Record, 0, len(r.Records))

	seen := make(map[string]struct{}, len(r.Records))
	removed := 0
	for _, rec := range r.Records {
		key := rec[m.cols.Phone]
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out.Records = append(out.Records, rec.Clone())
	}
	return out, removed
}

func (m *Merger) keepOptOut(merged, prev model.Record) {
	if !model.IsOptedOut(prev[m.cols.OptOut]) {
		return
	}
	merged[m.cols.OptOut] = model.OptedOut
	if d, ok := prev.Value(m.cols.OptOutDate); ok {
		merged[m.cols.OptOutDate] = d
	}
}

func (m *Merger) ensureTrackingColumns(r *model.Roster) {
	for _, col := range []string{m.cols.OptOut, m.cols.OptOutDate, m.cols.LastSMSSent, m.cols.LastSMSStatus} {
		r.EnsureColumn(col)
	}
}

func fillGaps(dst, src model.Record) {
	for col, v := range src {
		if _, ok := dst.Value(col); ok {
			continue
		}
		dst[col] = v
	}
}
