package staticmap_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-ayari03/POOL-AI/internal/adapters/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

func TestClient_Fetch_OK(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maptype") != "satellite" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	c := staticmap.NewClient(5*time.Second, 1<<20)
	data, ct, err := c.Fetch(context.Background(), srv.URL+"/staticmap?format=png&maptype=satellite&key=k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, png) || ct != "image/png" {
		t.Errorf("unexpected result %q %q", data, ct)
	}
}

func TestClient_Fetch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("The provided API key is invalid."))
	}))
	defer srv.Close()

	c := staticmap.NewClient(5*time.Second, 1<<20)
	_, _, err := c.Fetch(context.Background(), srv.URL+"/?key=supersecret")

	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if uerr.Status != http.StatusForbidden || !strings.Contains(uerr.Body, "invalid") {
		t.Errorf("unexpected upstream error %+v", uerr)
	}
	if strings.Contains(err.Error(), "supersecret") {
		t.Errorf("api key leaked in error: %v", err)
	}
}

func TestClient_Fetch_WrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>quota</html>"))
	}))
	defer srv.Close()

	c := staticmap.NewClient(5*time.Second, 1<<20)
	if _, _, err := c.Fetch(context.Background(), srv.URL); !errors.Is(err, domain.ErrUnexpectedContent) {
		t.Fatalf("expected ErrUnexpectedContent, got %v", err)
	}
}

func TestClient_Fetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{0}, 2048))
	}))
	defer srv.Close()

	c := staticmap.NewClient(5*time.Second, 1024)
	if _, _, err := c.Fetch(context.Background(), srv.URL); !errors.Is(err, domain.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := staticmap.NewClient(20*time.Millisecond, 1024)
	_, _, err := c.Fetch(context.Background(), srv.URL+"/?key=supersecret")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if strings.Contains(err.Error(), "supersecret") {
		t.Errorf("api key leaked in error: %v", err)
	}
}
