package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/LeventeLantos/sms-campaign/internal/client"
	"github.com/LeventeLantos/sms-campaign/internal/model"
	"github.com/LeventeLantos/sms-campaign/internal/service"
)

func TestSender_CallsSentHookOnSuccess(t *testing.T) {
	t.Parallel()

	c := &fakeClient{status: "queued"}
	sender := service.NewSender(c, 0, false)

	var (
		mu   sync.Mutex
		sent []service.Outbound
		ids  []string
	)

	sender.WithHooks(
		func(ctx context.Context, m service.Outbound, o service.Outcome) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, m)
			ids = append(ids, o.MessageID)
			return nil
		},
		func(ctx context.Context, m service.Outbound, o service.Outcome) error {
			t.Fatalf("did not expect failure hook, got %+v err=%v", m, o.Err)
			return nil
		},
	)

	ok, failed := sender.ProcessBatch(context.Background(), []service.Outbound{
		{Index: 3, Phone: "+15551234567", Body: "hello"},
	})

	if failed != 0 {
		t.Fatalf("expected failed=0, got %d", failed)
	}
	if ok != 1 {
		t.Fatalf("expected sent=1, got %d", ok)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(sent) != 1 || sent[0].Index != 3 {
		t.Fatalf("expected sent hook for index 3, got %+v", sent)
	}
	if len(ids) != 1 || ids[0] != "SM1" {
		t.Fatalf("expected message id SM1, got %+v", ids)
	}
}

func TestSender_ClientErrorIsFailure(t *testing.T) {
	t.Parallel()

	c := &fakeClient{err: errors.New("boom")}
	sender := service.NewSender(c, 0, false)

	var reasons []error
	sender.WithHooks(
		func(ctx context.Context, m service.Outbound, o service.Outcome) error {
			t.Fatalf("did not expect sent hook")
			return nil
		},
		func(ctx context.Context, m service.Outbound, o service.Outcome) error {
			if o.Status != model.Failed {
				t.Fatalf("expected status failed, got %q", o.Status)
			}
			reasons = append(reasons, o.Err)
			return nil
		},
	)

	ok, failed := sender.ProcessBatch(context.Background(), []service.Outbound{
		{Phone: "+15551234567", Body: "abcd"},
	})

	if ok != 0 || failed != 1 {
		t.Fatalf("expected 0/1, got %d/%d", ok, failed)
	}
	if len(reasons) != 1 || reasons[0] == nil {
		t.Fatalf("expected a reason, got %+v", reasons)
	}
}

func TestSender_RefreshedStatusDecidesOutcome(t *testing.T) {
	t.Parallel()

	c := &fetchingClient{fakeClient: fakeClient{status: "queued"}, refreshed: "undelivered"}
	sender := service.NewSender(c, 0, false)

	o := sender.Deliver(context.Background(), "+15551234567", "hi")
	if o.Success {
		t.Fatalf("expected failure after refreshed status, got %+v", o)
	}
	if o.Status != "undelivered" {
		t.Fatalf("expected undelivered, got %q", o.Status)
	}
	if o.Err == nil {
		t.Fatalf("expected an error describing the status")
	}
	if c.lookups != 1 {
		t.Fatalf("expected one status lookup, got %d", c.lookups)
	}
}

func TestSender_DryRunSkipsStatusRefresh(t *testing.T) {
	t.Parallel()

	c := &fetchingClient{fakeClient: fakeClient{status: "sent"}, refreshed: "failed"}
	sender := service.NewSender(c, 0, true)

	o := sender.Deliver(context.Background(), "+15551234567", "hi")
	if !o.Success || o.Status != model.Sent {
		t.Fatalf("expected sent, got %+v", o)
	}
	if c.lookups != 0 {
		t.Fatalf("expected no status lookups in dry run, got %d", c.lookups)
	}
}

func TestSender_StatisticsAndReset(t *testing.T) {
	t.Parallel()

	c := &fakeClient{status: "sent", failEvery: 2}
	sender := service.NewSender(c, 0, false)

	sender.ProcessBatch(context.Background(), []service.Outbound{
		{Phone: "+15550000001", Body: "a"},
		{Phone: "+15550000002", Body: "b"},
		{Phone: "+15550000003", Body: "c"},
		{Phone: "+15550000004", Body: "d"},
	})

	st := sender.Statistics()
	if st.Sent != 2 || st.Failed != 2 || st.Total != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.SuccessRate != 50 {
		t.Fatalf("expected success rate 50, got %v", st.SuccessRate)
	}
	if st.EstimatedCost != 2*0.0079 {
		t.Fatalf("expected cost of two single segments, got %v", st.EstimatedCost)
	}

	sender.ResetStatistics()
	if st := sender.Statistics(); st.Total != 0 || st.SuccessRate != 0 {
		t.Fatalf("expected zeroed stats, got %+v", st)
	}
}

func TestSender_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	c := &fakeClient{status: "sent", onSend: cancel}
	sender := service.NewSender(c, 0, false)

	ok, failed := sender.ProcessBatch(ctx, []service.Outbound{
		{Phone: "+15550000001", Body: "a"},
		{Phone: "+15550000002", Body: "b"},
	})

	if ok+failed != 1 {
		t.Fatalf("expected a single attempt before stopping, got %d/%d", ok, failed)
	}
}

type fakeClient struct {
	mu        sync.Mutex
	status    string
	err       error
	failEvery int
	onSend    func()
	calls     int
	bodies    []string
}

func (f *fakeClient) Send(ctx context.Context, to, body string) (client.Delivery, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return client.Delivery{}, f.err
	}
	if f.failEvery > 0 && n%f.failEvery == 0 {
		return client.Delivery{}, errors.New("rejected")
	}
	return client.Delivery{MessageID: "SM" + strconv.Itoa(n), Status: f.status}, nil
}

func (f *fakeClient) sentBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

type fetchingClient struct {
	fakeClient
	refreshed string
	lookups   int
}

func (f *fetchingClient) Status(ctx context.Context, messageID string) (string, error) {
	f.lookups++
	return f.refreshed, nil
}
