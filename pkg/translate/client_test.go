package translate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranslateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tl"); got != "ar" {
			t.Errorf("target language = %q, want ar", got)
		}
		if got := r.URL.Query().Get("sl"); got != "auto" {
			t.Errorf("source language = %q, want auto", got)
		}
		w.Write([]byte(`[[["مرحبا ","Hello ",null],["بالعالم","world",null]],null,"en"]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	got, ok := c.Translate(context.Background(), "Hello world", "ar")
	if !ok {
		t.Fatal("expected translation to succeed")
	}
	if got != "مرحبا بالعالم" {
		t.Errorf("translated = %q, want concatenated fragments", got)
	}
}

func TestTranslateNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	if _, ok := c.Translate(context.Background(), "Hello", "ar"); ok {
		t.Error("expected failure on non-200 status")
	}
}

func TestTranslateMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"the shape we expect"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	if _, ok := c.Translate(context.Background(), "Hello", "ar"); ok {
		t.Error("expected failure on malformed response")
	}
}

func TestTranslateEmptyFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[],null,"en"]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	if _, ok := c.Translate(context.Background(), "Hello", "ar"); ok {
		t.Error("expected failure when no fragments are returned")
	}
}

func TestTranslateTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := NewClient(server.URL, &http.Client{Timeout: 50 * time.Millisecond})
	if _, ok := c.Translate(context.Background(), "Hello", "ar"); ok {
		t.Error("expected failure on timeout")
	}
}

func TestTranslateEmptyInput(t *testing.T) {
	c := NewClient("", nil)
	if _, ok := c.Translate(context.Background(), "   ", "ar"); ok {
		t.Error("expected failure on blank input without issuing a request")
	}
}
