package roster

import (
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/dates"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/phone"
)

type ConsentChanges struct {
	OptOut []string
	OptIn  []string
}

func (c ConsentChanges) Empty() bool {
	return len(c.OptOut) == 0 && len(c.OptIn) == 0
}

type ConsentResult struct {
	OptedOut int
	OptedIn  int
}

// ApplyConsent records explicit opt-outs and opt-ins. Opt-outs are applied
// first, so a number present in both lists ends up opted in.
//
// An opt-out keeps an existing opt-out date and stamps today's date otherwise;
// an opt-in clears the date.
func (m *Merger) ApplyConsent(r *model.Roster, changes ConsentChanges, now time.Time) (*model.Roster, ConsentResult) {
	out := r.Clone()
	if changes.Empty() {
		return out, ConsentResult{}
	}

	out.EnsureColumn(m.cols.OptOut)
	out.EnsureColumn(m.cols.OptOutDate)

	optOut := keySet(changes.OptOut)
	optIn := keySet(changes.OptIn)

	var res ConsentResult
	for _, rec := range out.Records {
		key, ok := phone.Normalize(rec[m.cols.Phone])
		if !ok {
			continue
		}
		if _, hit := optOut[key]; hit {
			rec[m.cols.OptOut] = model.OptedOut
			if _, has := rec.Value(m.cols.OptOutDate); !has {
				rec[m.cols.OptOutDate] = now.Format(dates.DayLayout)
			}
			res.OptedOut++
		}
	}
	for _, rec := range out.Records {
		key, ok := phone.Normalize(rec[m.cols.Phone])
		if !ok {
			continue
		}
		if _, hit := optIn[key]; hit {
			rec[m.cols.OptOut] = model.OptedIn
			rec[m.cols.OptOutDate] = ""
			res.OptedIn++
		}
	}
	return out, res
}

// CountOptedOut counts records whose consent cell holds an opted-out value.
func (m *Merger) CountOptedOut(r *model.Roster) int {
	n := 0
	for _, rec := range r.Records {
		if model.IsOptedOut(rec[m.cols.OptOut]) {
			n++
		}
	}
	return n
}

func keySet(raw []string) map[string]struct{} {
	out := make(map[string]struct{}, len(raw))
	for _, k := range phone.NormalizeAll(raw) {
		out[k] = struct{}{}
	}
	return out
}
