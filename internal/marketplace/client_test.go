package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const wellFormedResponse = `{
	"results": [{
		"extensions": [{
			"publisher": {"publisherName": "golang", "domain": "go.dev"},
			"extensionName": "go",
			"displayName": "Go",
			"lastUpdated": "2025-01-15T10:30:00.000+00:00",
			"shortDescription": "Rich Go language support",
			"versions": [{
				"version": "0.46.1",
				"files": [
					{"assetType": "Microsoft.VisualStudio.Services.Icons.Default", "source": "https://example.com/icon.png"},
					{"assetType": "Microsoft.VisualStudio.Services.VSIXPackage", "source": "https://example.com/go.vsix"}
				]
			}]
		}]
	}]
}`

func newTestClient(url string) *Client {
	opts := DefaultOptions()
	opts.Endpoint = url
	opts.RetryAttempts = 0
	return NewClient(opts)
}

func TestSearchRequestShape(t *testing.T) {
	var got queryPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", ct)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json;api-version=3.0-preview.1" {
			t.Errorf("unexpected Accept header: %q", accept)
		}

		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal request body: %v", err)
		}
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Search(context.Background(), Query{Text: "gopls", PageSize: 25, PageNumber: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.Flags != 514 {
		t.Errorf("expected flags 514, got %d", got.Flags)
	}
	if len(got.Filters) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(got.Filters))
	}
	filter := got.Filters[0]
	if filter.PageSize != 25 || filter.PageNumber != 3 {
		t.Errorf("expected page 3 size 25, got page %d size %d", filter.PageNumber, filter.PageSize)
	}
	if filter.SortBy != 0 || filter.SortOrder != 0 {
		t.Errorf("expected sortBy/sortOrder 0, got %d/%d", filter.SortBy, filter.SortOrder)
	}
	if len(filter.Criteria) != 1 {
		t.Fatalf("expected 1 criterion, got %d", len(filter.Criteria))
	}
	if filter.Criteria[0].FilterType != 10 {
		t.Errorf("expected filterType 10 for name search, got %d", filter.Criteria[0].FilterType)
	}
	if filter.Criteria[0].Value != "gopls" {
		t.Errorf("expected value 'gopls', got %q", filter.Criteria[0].Value)
	}
}

func TestSearchFilterTypes(t *testing.T) {
	// The same literal query must produce requests differing only in
	// criteria[0].filterType.
	var payloads []queryPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p queryPayload
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &p)
		payloads = append(payloads, p)
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Search(context.Background(), Query{Text: "golang"}); err != nil {
		t.Fatalf("name search: %v", err)
	}
	if _, err := client.Search(context.Background(), Query{Text: "golang", ByPublisher: true}); err != nil {
		t.Fatalf("publisher search: %v", err)
	}

	if len(payloads) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(payloads))
	}

	byName := payloads[0].Filters[0].Criteria[0]
	byPublisher := payloads[1].Filters[0].Criteria[0]
	if byName.FilterType != 10 {
		t.Errorf("name search filterType = %d, want 10", byName.FilterType)
	}
	if byPublisher.FilterType != 4 {
		t.Errorf("publisher search filterType = %d, want 4", byPublisher.FilterType)
	}
	if byName.Value != byPublisher.Value {
		t.Errorf("criterion values differ: %q vs %q", byName.Value, byPublisher.Value)
	}

	payloads[0].Filters[0].Criteria[0].FilterType = 4
	a, _ := json.Marshal(payloads[0])
	b, _ := json.Marshal(payloads[1])
	if string(a) != string(b) {
		t.Errorf("requests differ beyond filterType:\n%s\n%s", a, b)
	}
}

func TestSearchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	exts, err := client.Search(context.Background(), Query{Text: "go"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(exts) != 1 {
		t.Fatalf("expected 1 extension, got %d", len(exts))
	}
	ext := exts[0]
	if ext.Name != "go" || ext.Publisher != "golang" || ext.Version != "0.46.1" {
		t.Errorf("unexpected record: %+v", ext)
	}
	if ext.DownloadURL != "https://example.com/go.vsix" {
		t.Errorf("expected VSIX download URL, got %q", ext.DownloadURL)
	}
}

func TestSearchStopped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL)
	go func() {
		<-started
		client.Stop()
		release <- struct{}{}
	}()

	exts, err := client.Search(context.Background(), Query{Text: "go"})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if len(exts) != 0 {
		t.Errorf("expected no records after stop, got %d", len(exts))
	}
}

func TestSearchRearmsAfterStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.Stop()

	// A Stop before the call must not poison the next search.
	exts, err := client.Search(context.Background(), Query{Text: "go"})
	if err != nil {
		t.Fatalf("Search after Stop: %v", err)
	}
	if len(exts) != 1 {
		t.Errorf("expected 1 extension, got %d", len(exts))
	}
}

func TestSearchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Search(context.Background(), Query{Text: "go"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected code 429, got %d", statusErr.Code)
	}
}

func TestSearchRetryOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Endpoint = server.URL
	opts.RetryAttempts = 3
	opts.RetryBackoff = 10 * time.Millisecond
	opts.RetryMaxBackoff = 50 * time.Millisecond

	client := NewClient(opts)
	exts, err := client.Search(context.Background(), Query{Text: "go"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(exts) != 1 {
		t.Errorf("expected 1 extension, got %d", len(exts))
	}
}

func TestSearchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		io.WriteString(w, wellFormedResponse)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(server.URL)
	_, err := client.Search(ctx, Query{Text: "go"})
	if err == nil {
		t.Error("expected error due to context cancellation")
	}
}
