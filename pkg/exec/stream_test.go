package exec

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corvidlabs/rawcore/pkg/wire"
)

func TestStreamDeliversEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("ResponseWriter does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: first\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: second\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	e := newTestExecutor()
	origin := serverOrigin(t, server)
	req := wire.NewRequest("GET", origin)

	var got []string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := e.Stream(ctx, req, func(ev wire.SSEEvent) bool {
		got = append(got, ev.Data)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("got events %v, want [first second]", got)
	}
}

func TestStreamStopsEarlyOnFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: one\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: two\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	e := newTestExecutor()
	origin := serverOrigin(t, server)
	req := wire.NewRequest("GET", origin)

	count := 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.Stream(ctx, req, func(ev wire.SSEEvent) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("count = %d, want 1 (stream should have stopped after first event)", count)
	}
}
