package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"webcal://example.com/cal.ics": "http://example.com/cal.ics",
		"WEBCAL://example.com/cal.ics": "http://example.com/cal.ics",
		"example.com/cal.ics":          "http://example.com/cal.ics",
		"http://example.com/cal.ics":   "http://example.com/cal.ics",
		"https://example.com/cal.ics":  "https://example.com/cal.ics",
		"  http://example.com  ":       "http://example.com",
		"":                             "",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFetcherRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestAgent/1.0" {
			t.Errorf("Unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("calendar content"))
	}))
	defer server.Close()

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	data, err := f.Read(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "calendar content" {
		t.Errorf("Unexpected body: %q", data)
	}
}

func TestFetcherReadUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	_, err := f.Read(context.Background(), server.URL)
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("Expected ErrAuthRequired, got %v", err)
	}
}

func TestFetcherReadBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("private calendar"))
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	u.User = url.UserPassword("alice", "secret")

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	data, err := f.Read(context.Background(), u.String())
	if err != nil {
		t.Fatalf("Read with credentials failed: %v", err)
	}
	if string(data) != "private calendar" {
		t.Errorf("Unexpected body: %q", data)
	}
}

func TestFetcherReadErrorRedactsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	u.User = url.UserPassword("alice", "hunter2")

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	_, err := f.Read(context.Background(), u.String())
	if err == nil {
		t.Fatal("Expected error")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("Error message leaks the password: %v", err)
	}
}

func TestFetcherReadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	_, err := f.Read(context.Background(), server.URL)
	if err == nil {
		t.Error("Expected error for HTTP 500")
	}
}

func TestFetcherReadTranscodesCharset(t *testing.T) {
	// "Jose" with an accented e, encoded as Latin-1.
	latin1, err := charmap.ISO8859_1.NewEncoder().String("José")
	if err != nil {
		t.Fatalf("Failed to build Latin-1 fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar; charset=iso-8859-1")
		w.Write([]byte(latin1))
	}))
	defer server.Close()

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	data, err := f.Read(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "José" {
		t.Errorf("Expected UTF-8 transcoded body, got %q", data)
	}
}

func TestFetcherReadLocalFile(t *testing.T) {
	path := t.TempDir() + "/cal.ics"
	if err := os.WriteFile(path, []byte("BEGIN:VCALENDAR"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	f := NewFetcher(5*time.Second, "TestAgent/1.0")
	data, err := f.Read(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "BEGIN:VCALENDAR" {
		t.Errorf("Unexpected body: %q", data)
	}
}
