package reminder

import (
	"context"
	"errors"
	"testing"
)

type staticLister struct {
	ids []string
	err error
}

func (s staticLister) ListIdentities(context.Context) ([]string, error) { return s.ids, s.err }

type flakySender struct {
	fail map[string]bool
	sent []string
}

func (f *flakySender) SendMessage(_ context.Context, to, body string) error {
	if f.fail[to] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, to+":"+body)
	return nil
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	out := &flakySender{fail: map[string]bool{"3": true}}
	d := NewDispatcher(staticLister{ids: []string{"1", "2", "3", "4", "5"}}, out, "drink water")

	tally, err := d.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if tally != (Tally{Sent: 4, Failed: 1}) {
		t.Errorf("expected 4 sent / 1 failed, got %+v", tally)
	}
	want := []string{"1:drink water", "2:drink water", "4:drink water", "5:drink water"}
	if len(out.sent) != len(want) {
		t.Fatalf("expected %v, got %v", want, out.sent)
	}
	for i := range want {
		if out.sent[i] != want[i] {
			t.Errorf("delivery %d: expected %q, got %q", i, want[i], out.sent[i])
		}
	}
}

func TestSweepEmptyStore(t *testing.T) {
	d := NewDispatcher(staticLister{}, &flakySender{}, "x")
	if tally, err := d.Sweep(context.Background()); err != nil || tally != (Tally{}) {
		t.Errorf("expected empty tally, got %+v, %v", tally, err)
	}
}

func TestSweepListFailure(t *testing.T) {
	d := NewDispatcher(staticLister{err: errors.New("db down")}, &flakySender{}, "x")
	if _, err := d.Sweep(context.Background()); err == nil {
		t.Error("expected list failure to be returned")
	}
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &flakySender{}
	d := NewDispatcher(staticLister{ids: []string{"1", "2"}}, out, "x")
	if _, err := d.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(out.sent) != 0 {
		t.Errorf("nothing should be sent after cancellation, got %v", out.sent)
	}
}
