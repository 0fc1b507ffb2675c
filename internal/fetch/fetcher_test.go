package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devindudeman/kto/internal/store"
)

func testWatch(url string) *store.Watch {
	w := store.NewWatch("w1", "test", url)
	return w
}

func TestFetchHTTPReturnsBodyAndHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: func(string) error { return nil }})
	res, err := f.Fetch(context.Background(), testWatch(srv.URL), "", "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Body) != "hello world" {
		t.Errorf("body: got %q", res.Body)
	}
	if !res.Changed {
		t.Error("first fetch should be Changed")
	}
	if res.ETag != `"abc"` {
		t.Errorf("etag: got %q", res.ETag)
	}
}

func TestFetchHTTPConditionalGetReturns304Unchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: func(string) error { return nil }})
	res, err := f.Fetch(context.Background(), testWatch(srv.URL), `"v1"`, "", "somehash")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Changed {
		t.Error("304 response should report Changed=false")
	}
}

func TestFetchHTTPUnchangedHashShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stable content"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: func(string) error { return nil }})
	res, err := f.Fetch(context.Background(), testWatch(srv.URL), "", "", hashBytes([]byte("stable content")))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Changed {
		t.Error("identical body hash should report Changed=false")
	}
}

func TestFetchHTTPNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{URLValidator: func(string) error { return nil }})
	_, err := f.Fetch(context.Background(), testWatch(srv.URL), "", "", "")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != KindHTTP {
		t.Errorf("got %v, want a KindHTTP *Error", err)
	}
}

func TestFetchHTTPOversizedBodyIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: func(string) error { return nil }, MaxBytes: 10})
	_, err := f.Fetch(context.Background(), testWatch(srv.URL), "", "", "")
	if err == nil {
		t.Fatal("expected an error for an oversized body")
	}
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != KindTooLarge {
		t.Errorf("got %v, want a KindTooLarge *Error", err)
	}
}

func TestFetchShellCapturesStdout(t *testing.T) {
	w := testWatch(ShellPrefix + "echo -n shell-output")
	w.Engine = store.EngineShell

	f := New(Config{})
	res, err := f.Fetch(context.Background(), w, "", "", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Body) != "shell-output" {
		t.Errorf("body: got %q", res.Body)
	}
}

func TestFetchShellNonZeroExitIsSubprocessFailedError(t *testing.T) {
	w := testWatch(ShellPrefix + "exit 1")
	w.Engine = store.EngineShell

	f := New(Config{})
	_, err := f.Fetch(context.Background(), w, "", "", "")
	if err == nil {
		t.Fatal("expected an error for a failing shell command")
	}
	ferr, ok := err.(*Error)
	if !ok || ferr.Kind != KindSubprocessFailed {
		t.Errorf("got %v, want a KindSubprocessFailed *Error", err)
	}
}

func TestFetchRejectsBlockedURL(t *testing.T) {
	blocked := func(string) error { return &Error{Kind: KindTransport} }
	f := New(Config{URLValidator: blocked})
	_, err := f.Fetch(context.Background(), testWatch("http://169.254.169.254/"), "", "", "")
	if err == nil {
		t.Fatal("expected the URL validator rejection to surface as an error")
	}
}
