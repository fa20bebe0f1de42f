package main

import (
	"net/http"
	"testing"
	"time"

	appconfig "github.com/wolfman30/askstuart/internal/config"
)

func TestNewServer(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090"}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected :9090, got %s", srv.Addr)
	}
	if srv.WriteTimeout != 0 {
		t.Fatalf("expected no write timeout for live feed sockets, got %s", srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("unexpected read header timeout %s", srv.ReadHeaderTimeout)
	}
}
