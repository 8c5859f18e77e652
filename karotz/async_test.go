package karotz

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGo_ReturnsBeforeReplyAndToleratesNilCallbacks(t *testing.T) {
	release := make(chan struct{})
	served := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"return":"0"}`))
		close(served)
	})

	done := make(chan struct{})
	go func() {
		Go(context.Background(), c, c.Reboot, nil, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Go blocked waiting for the device")
	}

	close(release)
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("request never reached the device")
	}
}

func TestGo_InvokesExactlyOneCallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cgi-bin/sleep" {
			_, _ = w.Write([]byte(`{"return":"0","msg":"sleeping"}`))
			return
		}
		_, _ = w.Write([]byte(`{"return":"1","msg":"no way"}`))
	})

	type outcome struct {
		resp *Response
		err  error
	}
	run := func(call func(context.Context) (*Response, error)) []outcome {
		var mu sync.Mutex
		var got []outcome
		var wg sync.WaitGroup
		wg.Add(1)
		Go(context.Background(), c, call,
			func(r *Response) {
				mu.Lock()
				got = append(got, outcome{resp: r})
				mu.Unlock()
				wg.Done()
			},
			func(err error) {
				mu.Lock()
				got = append(got, outcome{err: err})
				mu.Unlock()
				wg.Done()
			})
		wg.Wait()
		// Leave room for a stray second callback to show up.
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		return got
	}

	got := run(c.Sleep)
	if len(got) != 1 || got[0].resp == nil || got[0].resp.Msg != "sleeping" {
		t.Fatalf("Sleep outcomes = %#v, want one success", got)
	}
	if !c.State().Sleep {
		t.Fatalf("Sleep = false after successful async Sleep")
	}

	got = run(c.Wakeup)
	if len(got) != 1 || got[0].err == nil || Message(got[0].err) != "no way" {
		t.Fatalf("Wakeup outcomes = %#v, want one failure with msg", got)
	}
}

func TestGo_CallbacksNeverOverlap(t *testing.T) {
	c, _ := newTestClient(t, reply(`{"return":"0"}`))

	const calls = 8
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	wg.Add(calls)
	for i := 0; i < calls; i++ {
		Go(context.Background(), c, c.EarsReset, func(*Response) {
			defer wg.Done()
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}, func(err error) {
			defer wg.Done()
			t.Errorf("unexpected failure: %v", err)
		})
	}
	wg.Wait()
	if got := maxActive.Load(); got != 1 {
		t.Fatalf("max concurrent callbacks = %d, want 1", got)
	}
}

func TestGo_StatusDeliversState(t *testing.T) {
	c, _ := newTestClient(t, reply(`{"version":"201","sleep":0}`))
	states := make(chan State, 1)
	Go(context.Background(), c, c.Status, func(s State) { states <- s }, nil)
	select {
	case s := <-states:
		if s.Version != "201" || s.Sleep {
			t.Fatalf("state = %#v, want version 201 awake", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("status callback never fired")
	}
}

func TestGo_PanicReachesFailureCallback(t *testing.T) {
	c, err := NewClient("karotz")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	errs := make(chan error, 1)
	Go(context.Background(), c, func(context.Context) (*Response, error) {
		panic("boom")
	}, nil, func(err error) { errs <- err })

	select {
	case err := <-errs:
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("error = %v, want ErrTransport", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("failure callback never fired")
	}
}

func TestAsync_DeliversOneResult(t *testing.T) {
	c, _ := newTestClient(t, reply(`{"return":"0","filename":"snapshot_1.jpg","thumb":"snapshot_1.thumb.gif"}`))

	ch := Async(context.Background(), func(ctx context.Context) (*Response, error) {
		return c.Snapshot(ctx, true)
	})
	res, ok := <-ch
	if !ok {
		t.Fatalf("channel closed without a result")
	}
	if res.Err != nil {
		t.Fatalf("Snapshot returned error: %v", res.Err)
	}
	info, err := res.Value.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot payload error: %v", err)
	}
	if info.Filename != "snapshot_1.jpg" || info.Thumbnail != "snapshot_1.thumb.gif" {
		t.Fatalf("snapshot info = %#v", info)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel delivered a second result")
	}
}
