// Package segment models how a carrier splits an SMS body into billable
// segments and what that costs.
package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Encoding string

const (
	GSM7    Encoding = "GSM-7"
	Unicode Encoding = "Unicode (UCS-2)"
)

const (
	GSMSingleLimit      = 160
	GSMMultiSegment     = 153
	UnicodeSingleLimit  = 70
	UnicodeMultiSegment = 67

	// CostPerSegment is the approximate US price of one outbound segment.
	CostPerSegment = 0.0079

	maxListedChars = 5
)

// Analysis is the cost profile of a single message.
type Analysis struct {
	Length            int      `json:"length"`
	EffectiveLength   int      `json:"effective_length"`
	Encoding          Encoding `json:"encoding"`
	Segments          int      `json:"segments"`
	Cost              float64  `json:"cost"`
	Optimal           bool     `json:"is_optimal"`
	Warnings          []string `json:"warnings"`
	Recommendations   []string `json:"recommendations"`
	UnicodeCharacters []string `json:"unicode_characters"`
	CharsRemaining    int      `json:"chars_remaining"`
}

// CostFormatted renders the per-message cost to four decimals.
func (a Analysis) CostFormatted() string {
	return fmt.Sprintf("$%.4f", a.Cost)
}

func Analyze(message string) Analysis {
	if message == "" {
		return Analysis{
			Encoding:          GSM7,
			Optimal:           true,
			Warnings:          []string{},
			Recommendations:   []string{},
			UnicodeCharacters: []string{},
			CharsRemaining:    GSMSingleLimit,
		}
	}

	enc, chars, hasEmoji := detectEncoding(message)
	eff := effectiveLength(message, enc)
	segs := Segments(eff, enc)

	return Analysis{
		Length:            utf8.RuneCountInString(message),
		EffectiveLength:   eff,
		Encoding:          enc,
		Segments:          segs,
		Cost:              float64(segs) * CostPerSegment,
		Optimal:           enc == GSM7 && eff <= GSMSingleLimit,
		Warnings:          warnings(enc, segs, chars, hasEmoji),
		Recommendations:   recommendations(enc, eff, segs, chars, hasEmoji),
		UnicodeCharacters: chars,
		CharsRemaining:    charsRemaining(eff, enc),
	}
}

// detectEncoding returns the encoding and the characters that forced Unicode,
// in first-seen order. Emoji runs short-circuit the per-character scan.
func detectEncoding(message string) (Encoding, []string, bool) {
	if runs := emojiPattern.FindAllString(message, -1); len(runs) > 0 {
		return Unicode, dedupe(runs), true
	}

	var found []string
	for _, r := range message {
		if isGSM(r) || r <= 127 {
			continue
		}
		found = append(found, string(r))
	}
	if len(found) > 0 {
		return Unicode, dedupe(found), false
	}
	return GSM7, []string{}, false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func effectiveLength(message string, enc Encoding) int {
	n := utf8.RuneCountInString(message)
	if enc != GSM7 {
		return n
	}
	for _, r := range message {
		if isExtended(r) {
			n++
		}
	}
	return n
}

// Segments returns how many segments a message of the given effective length
// occupies.
func Segments(effective int, enc Encoding) int {
	if effective <= 0 {
		return 0
	}
	single, multi := limits(enc)
	if effective <= single {
		return 1
	}
	return (effective-1)/multi + 1
}

func limits(enc Encoding) (single, multi int) {
	if enc == GSM7 {
		return GSMSingleLimit, GSMMultiSegment
	}
	return UnicodeSingleLimit, UnicodeMultiSegment
}

func charsRemaining(effective int, enc Encoding) int {
	single, multi := limits(enc)
	if effective <= single {
		return single - effective
	}
	in := effective % multi
	if in == 0 {
		in = multi
	}
	return multi - in
}

func warnings(enc Encoding, segs int, chars []string, hasEmoji bool) []string {
	out := []string{}

	if hasEmoji {
		out = append(out, "⚠️ EMOJIS DETECTED: Message uses expensive Unicode encoding")
	}
	if enc != GSM7 && len(chars) > 0 && !hasEmoji {
		out = append(out, fmt.Sprintf("⚠️ UNICODE CHARACTERS: %s trigger expensive encoding", listChars(chars)))
	}
	if segs > 1 {
		out = append(out, fmt.Sprintf("⚠️ MULTI-SEGMENT: Message will be sent as %d SMS segments", segs))
	}
	if segs >= 2 {
		out = append(out, fmt.Sprintf("💰 EXPENSIVE: Each message costs $%.4f (%dx segments)", float64(segs)*CostPerSegment, segs))
	}
	if segs >= 3 {
		out = append(out, fmt.Sprintf("🚨 VERY EXPENSIVE: %d segments = 3x+ normal cost!", segs))
	}
	return out
}

func listChars(chars []string) string {
	shown := chars
	if len(shown) > maxListedChars {
		shown = shown[:maxListedChars]
	}
	quoted := make([]string, len(shown))
	for i, c := range shown {
		quoted[i] = "'" + c + "'"
	}
	s := strings.Join(quoted, ", ")
	if extra := len(chars) - maxListedChars; extra > 0 {
		s += fmt.Sprintf(", ... (+%d more)", extra)
	}
	return s
}

func recommendations(enc Encoding, eff, segs int, chars []string, hasEmoji bool) []string {
	out := []string{}

	if hasEmoji {
		out = append(out, "✂️ Remove emojis to reduce cost by ~60% (Unicode→GSM-7)")
	}
	if enc != GSM7 && len(chars) > 0 && !hasEmoji {
		out = append(out, replacementHints(chars)...)
	}

	single, multi := limits(enc)
	over := eff - single
	switch {
	case segs == 2:
		out = append(out, fmt.Sprintf("✂️ Shorten by %d characters to fit in 1 segment (save 50%% cost)", over))
	case segs >= 3:
		out = append(out, fmt.Sprintf(
			"✂️ Shorten by %d characters to reduce from %d to %d segments (save %.0f%% cost)",
			eff-(segs-1)*multi, segs, segs-1, 100/float64(segs)))
		saving := float64(segs-1) / float64(segs) * 100
		out = append(out, fmt.Sprintf(
			"✂️ HIGHLY RECOMMENDED: Shorten by %d characters to reduce from %d segments to 1 segment (save %.0f%% cost)",
			over, segs, saving))
	}

	if enc == GSM7 && eff <= GSMSingleLimit {
		out = append(out, "✅ OPTIMAL: Message uses cheapest encoding and fits in 1 segment")
	}
	return out
}

func replacementHints(chars []string) []string {
	has := func(cs ...string) bool {
		for _, c := range cs {
			for _, x := range chars {
				if x == c {
					return true
				}
			}
		}
		return false
	}

	var out []string
	if has("“", "”") {
		out = append(out, `✂️ Use straight quotes " instead of curly quotes`)
	}
	if has("‘", "’") {
		out = append(out, "✂️ Use straight apostrophe ' instead of curly")
	}
	if has("—", "–") {
		out = append(out, "✂️ Use hyphen - instead of em/en dash")
	}
	return out
}

// CampaignReport aggregates the analyses of every message in a campaign.
type CampaignReport struct {
	TotalMessages     int     `json:"total_messages"`
	TotalSegments     int     `json:"total_segments"`
	TotalCost         float64 `json:"total_cost"`
	AvgLength         float64 `json:"avg_length"`
	AvgSegments       float64 `json:"avg_segments"`
	UnicodeCount      int     `json:"unicode_count"`
	UnicodePercent    float64 `json:"unicode_percentage"`
	MultiSegmentCount int     `json:"multi_segment_count"`
	MultiSegmentPct   float64 `json:"multi_segment_percentage"`
	OptimalCount      int     `json:"optimal_count"`

	// OptimalCost is what the campaign would cost at one GSM-7 segment per
	// message; ExtraCost is the difference to TotalCost.
	OptimalCost float64 `json:"optimal_cost"`
	ExtraCost   float64 `json:"extra_cost"`
}

func (r CampaignReport) TotalCostFormatted() string {
	return fmt.Sprintf("$%.2f", r.TotalCost)
}

func AnalyzeCampaign(messages []string) CampaignReport {
	if len(messages) == 0 {
		return CampaignReport{}
	}

	var rep CampaignReport
	var totalLen int
	for _, m := range messages {
		a := Analyze(m)
		rep.TotalSegments += a.Segments
		rep.TotalCost += a.Cost
		totalLen += a.Length
		if a.Encoding != GSM7 {
			rep.UnicodeCount++
		}
		if a.Segments > 1 {
			rep.MultiSegmentCount++
		}
		if a.Optimal {
			rep.OptimalCount++
		}
	}

	n := float64(len(messages))
	rep.TotalMessages = len(messages)
	rep.AvgLength = float64(totalLen) / n
	rep.AvgSegments = float64(rep.TotalSegments) / n
	rep.UnicodePercent = float64(rep.UnicodeCount) / n * 100
	rep.MultiSegmentPct = float64(rep.MultiSegmentCount) / n * 100
	rep.OptimalCost = n * CostPerSegment
	rep.ExtraCost = rep.TotalCost - rep.OptimalCost
	return rep
}
