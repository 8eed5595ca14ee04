// Package optout reads consent keywords out of inbound replies.
package optout

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/LeventeLantos/sms-campaign/internal/phone"
	"github.com/LeventeLantos/sms-campaign/internal/roster"
)

type Action int

const (
	None Action = iota
	OptOut
	OptIn
)

func (a Action) String() string {
	switch a {
	case OptOut:
		return "opt_out"
	case OptIn:
		return "opt_in"
	default:
		return "none"
	}
}

var (
	optOutWords = []string{"stop", "stopall", "unsubscribe", "cancel", "end", "quit"}
	optInWords  = []string{"start", "yes", "unstop"}

	optOutRe = keywordPattern(optOutWords)
	optInRe  = keywordPattern(optInWords)
)

// keywordPattern matches a reply made of a single keyword, optionally led by
// "please" and followed by punctuation.
func keywordPattern(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:` + strings.Join(words, "|") + `)[\s[:punct:]]*$`)
}

// Classify maps a reply body to a consent action. Only whole-body keywords
// count; "please stop texting me so much" is not an opt-out.
func Classify(body string) Action {
	switch {
	case optOutRe.MatchString(body):
		return OptOut
	case optInRe.MatchString(body):
		return OptIn
	default:
		return None
	}
}

// Message is one inbound reply.
type Message struct {
	From   string
	Body   string
	SentAt time.Time
}

// Collect reduces replies to consent changes. For each number the newest
// keyword reply decides; replies without a keyword are ignored, so "thanks"
// after a STOP does not undo it.
func Collect(msgs []Message) roster.ConsentChanges {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.After(sorted[j].SentAt)
	})

	seen := make(map[string]struct{}, len(sorted))
	var out roster.ConsentChanges
	for _, m := range sorted {
		key, ok := phone.Normalize(m.From)
		if !ok {
			continue
		}
		if _, done := seen[key]; done {
			continue
		}

		switch Classify(m.Body) {
		case OptOut:
			out.OptOut = append(out.OptOut, key)
		case OptIn:
			out.OptIn = append(out.OptIn, key)
		default:
			continue
		}
		seen[key] = struct{}{}
	}
	return out
}
