package http

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"pulseboard/internal/platform/config"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	s := NewServer(config.FromMap(map[string]string{"PORT": "127.0.0.1:0"}))
	if s.Addr() != "127.0.0.1:0" {
		t.Fatalf("addr = %q", s.Addr())
	}
	s.Router().Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunBadAddr(t *testing.T) {
	t.Parallel()

	s := NewServer(config.FromMap(map[string]string{"PORT": "127.0.0.1:abc"}))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("want listen error")
	}
}

func TestNewServer_Addr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{"": ":4000", "8080": ":8080", ":9000": ":9000", "0.0.0.0:1": "0.0.0.0:1"}
	for in, want := range tests {
		m := map[string]string{}
		if in != "" {
			m["PORT"] = in
		}
		if got := NewServer(config.FromMap(m)).Addr(); got != want {
			t.Fatalf("PORT=%q: addr = %q want %q", in, got, want)
		}
	}
}
