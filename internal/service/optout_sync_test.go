package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/sms-campaign/internal/client"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/service"
	"github.com/LeventeLantos/sms-campaign/internal/sheet"
)

type fakeLister struct {
	msgs  []client.Inbound
	err   error
	since time.Time
	calls int
}

func (f *fakeLister) ListInbound(ctx context.Context, since time.Time) ([]client.Inbound, error) {
	f.calls++
	f.since = since
	return f.msgs, f.err
}

func seedRoster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers_old.csv")
	writeFile(t, path,
		"phone_number,first_name,SMS_Opt_Out,Opt_Out_Date",
		"+15550000001,Ann,,",
		"+15550000002,Bob,Yes,2025-01-02",
		"+15550000003,Cara,No,",
	)
	return path
}

func newSyncer(l service.InboundLister, path string, dryRun bool) *service.OptOutSyncer {
	return service.NewOptOutSyncer(l, model.DefaultCustomerColumns(), path, 7*24*time.Hour, dryRun).
		WithClock(func() time.Time { return runNow })
}

func TestOptOutSync_AppliesKeywords(t *testing.T) {
	t.Parallel()

	path := seedRoster(t)
	lister := &fakeLister{msgs: []client.Inbound{
		{From: "+15550000001", Body: "STOP", SentAt: runNow.Add(-2 * time.Hour)},
		{From: "+15550000002", Body: "start", SentAt: runNow.Add(-time.Hour)},
		{From: "+15550000003", Body: "thanks!", SentAt: runNow.Add(-time.Hour)},
	}}

	res, err := newSyncer(lister, path, false).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runNow.Add(-7*24*time.Hour), lister.since)
	assert.Equal(t, 3, res.Messages)
	assert.Equal(t, 1, res.OptOuts)
	assert.Equal(t, 1, res.OptIns)
	assert.Equal(t, 0, res.NetOptedOut)
	assert.True(t, res.Saved)

	saved, err := sheet.Read(path)
	require.NoError(t, err)
	byName := map[string]model.Record{}
	for _, rec := range saved.Records {
		byName[rec["first_name"]] = rec
	}
	assert.Equal(t, "Yes", byName["Ann"]["SMS_Opt_Out"])
	assert.Equal(t, "2025-03-14", byName["Ann"]["Opt_Out_Date"])
	assert.Equal(t, "No", byName["Bob"]["SMS_Opt_Out"])
	assert.Empty(t, byName["Bob"]["Opt_Out_Date"])
	assert.Equal(t, "No", byName["Cara"]["SMS_Opt_Out"])
}

func TestOptOutSync_NewestKeywordWins(t *testing.T) {
	t.Parallel()

	path := seedRoster(t)
	lister := &fakeLister{msgs: []client.Inbound{
		{From: "(555) 000-0003", Body: "Stop", SentAt: runNow.Add(-3 * time.Hour)},
		{From: "+15550000003", Body: "unstop", SentAt: runNow.Add(-2 * time.Hour)},
		{From: "+15550000003", Body: "ok thanks", SentAt: runNow.Add(-time.Hour)},
	}}

	res, err := newSyncer(lister, path, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.OptOuts)
	assert.Equal(t, 1, res.OptIns)
}

func TestOptOutSync_NoKeywordsLeavesFileAlone(t *testing.T) {
	t.Parallel()

	path := seedRoster(t)
	lister := &fakeLister{msgs: []client.Inbound{
		{From: "+15550000001", Body: "see you soon", SentAt: runNow},
	}}

	res, err := newSyncer(lister, path, false).Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Saved)
}

func TestOptOutSync_UnknownNumberNotSaved(t *testing.T) {
	t.Parallel()

	path := seedRoster(t)
	lister := &fakeLister{msgs: []client.Inbound{
		{From: "+15559999999", Body: "STOP", SentAt: runNow},
	}}

	res, err := newSyncer(lister, path, false).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.OptOuts)
	assert.False(t, res.Saved)
}

func TestOptOutSync_DryRunSkips(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{}
	res, err := newSyncer(lister, seedRoster(t), true).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, lister.calls)
}

func TestOptOutSync_MissingRosterSkips(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{}
	res, err := newSyncer(lister, filepath.Join(t.TempDir(), "missing.csv"), false).Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, lister.calls)
}

func TestOptOutSync_FetchErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("provider down")
	_, err := newSyncer(&fakeLister{err: boom}, seedRoster(t), false).Sync(context.Background())
	require.ErrorIs(t, err, boom)
}
