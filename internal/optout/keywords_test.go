package optout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want Action
	}{
		{"STOP", OptOut},
		{"stop", OptOut},
		{"  Stop.  ", OptOut},
		{"STOPALL", OptOut},
		{"unsubscribe!", OptOut},
		{"Please stop", OptOut},
		{"cancel", OptOut},
		{"END", OptOut},
		{"quit", OptOut},
		{"START", OptIn},
		{"yes", OptIn},
		{"Unstop", OptIn},
		{"please start!!", OptIn},
		{"please stop texting me so much", None},
		{"stopping by later", None},
		{"", None},
		{"ok thanks", None},
		{"yesterday", None},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.body), "body=%q", tt.body)
	}
}

func TestActionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "opt_out", OptOut.String())
	assert.Equal(t, "opt_in", OptIn.String())
	assert.Equal(t, "none", None.String())
}

func TestCollect_NewestKeywordWins(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{From: "5551110000", Body: "STOP", SentAt: base},
		{From: "+15551110000", Body: "START", SentAt: base.Add(time.Hour)},
		{From: "+15552220000", Body: "start", SentAt: base},
		{From: "+15552220000", Body: "stop", SentAt: base.Add(2 * time.Hour)},
		{From: "+15553330000", Body: "STOP", SentAt: base},
		{From: "+15553330000", Body: "thanks", SentAt: base.Add(time.Hour)},
		{From: "+15554440000", Body: "hello", SentAt: base},
		{From: "", Body: "STOP", SentAt: base},
	}

	got := Collect(msgs)
	assert.ElementsMatch(t, []string{"+15552220000", "+15553330000"}, got.OptOut)
	assert.Equal(t, []string{"+15551110000"}, got.OptIn)
}

func TestCollect_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, Collect(nil).Empty())
}
