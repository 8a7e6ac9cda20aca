package delivery

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testDispatcher(policy Policy) *Dispatcher {
	return NewDispatcher(policy, nil, zerolog.Nop(), 1)
}

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := testDispatcher(Policy{InitialInterval: time.Millisecond, MaxAttempts: 5})
	d.deliver(context.Background(), Job{ID: "j1", URL: srv.URL, Body: "{}"})

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("server saw %d attempts, expected 3", attempts)
	}
}

func TestDeliverExhaustsAfterAttemptCeiling(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := testDispatcher(Policy{InitialInterval: 30 * time.Millisecond, MaxAttempts: 3})
	d.deliver(context.Background(), Job{ID: "j2", URL: srv.URL, Body: "{}"})

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("server saw %d attempts, expected exactly 3", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if first < 25*time.Millisecond {
		t.Fatalf("first delay %v, expected at least the initial interval", first)
	}
	if second <= first {
		t.Fatalf("delays %v then %v, expected exponential growth", first, second)
	}
}

func TestDeliverSendsBodyAndHeaders(t *testing.T) {
	got := make(chan *http.Request, 1)
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		got <- r
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := testDispatcher(Policy{InitialInterval: time.Millisecond, MaxAttempts: 2})
	d.deliver(context.Background(), Job{
		ID:      "j3",
		URL:     srv.URL,
		Body:    `{"text":"hello"}`,
		Headers: `{"X-Token":"s3cret","Content-Type":"text/plain"}`,
	})

	select {
	case r := <-got:
		if r.Header.Get("X-Token") != "s3cret" {
			t.Fatalf("X-Token=%q", r.Header.Get("X-Token"))
		}
		if r.Header.Get("Content-Type") != "text/plain" {
			t.Fatalf("Content-Type=%q, blob must override the default", r.Header.Get("Content-Type"))
		}
		if string(body) != `{"text":"hello"}` {
			t.Fatalf("body=%q", body)
		}
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
}

func TestDeliverDefaultsContentType(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	d := testDispatcher(Policy{InitialInterval: time.Millisecond, MaxAttempts: 1})
	d.deliver(context.Background(), Job{ID: "j4", URL: srv.URL, Body: "{}"})

	select {
	case ct := <-got:
		if ct != "application/json" {
			t.Fatalf("Content-Type=%q", ct)
		}
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
}

func TestDeliverWaitsForConnectivity(t *testing.T) {
	requests := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
	}))
	defer srv.Close()

	monitor := NewMonitor()
	monitor.SetOnline(false)
	d := NewDispatcher(Policy{InitialInterval: time.Millisecond, MaxAttempts: 1}, monitor, zerolog.Nop(), 1)

	done := make(chan struct{})
	go func() {
		d.deliver(context.Background(), Job{ID: "j5", URL: srv.URL, Body: "{}"})
		close(done)
	}()

	select {
	case <-requests:
		t.Fatal("attempt ran while offline")
	case <-time.After(50 * time.Millisecond):
	}

	monitor.SetOnline(true)
	select {
	case <-requests:
	case <-time.After(time.Second):
		t.Fatal("attempt did not run after going online")
	}
	<-done
}

func TestSubmitAndRun(t *testing.T) {
	requests := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDispatcher(Policy{InitialInterval: time.Millisecond, MaxAttempts: 2}, nil, zerolog.Nop(), 2)
	go func() { _ = d.Run(ctx) }()

	d.Submit(Job{ID: "j6", URL: srv.URL, Body: "{}"})

	select {
	case <-requests:
	case <-time.After(time.Second):
		t.Fatal("submitted job was never delivered")
	}
}

func TestParseHeaders(t *testing.T) {
	d := testDispatcher(Policy{})

	if got := d.parseHeaders(Job{Headers: ""}); got != nil {
		t.Fatalf("empty blob parsed to %v", got)
	}
	if got := d.parseHeaders(Job{Headers: "not json"}); got != nil {
		t.Fatalf("invalid blob parsed to %v", got)
	}
	got := d.parseHeaders(Job{Headers: `{"A":"1","B":"2"}`})
	if got["A"] != "1" || got["B"] != "2" {
		t.Fatalf("parsed %v", got)
	}
}
