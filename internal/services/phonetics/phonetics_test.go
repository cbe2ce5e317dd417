package phonetics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"coursepipe/internal/services/phonetics"
	"coursepipe/internal/textutil"
)

func newDictionary(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		word := strings.TrimPrefix(r.URL.Path, "/")
		switch word {
		case "hello":
			_, _ = w.Write([]byte(`[{"phonetic":"/həˈloʊ/"}]`))
		case "world":
			_, _ = w.Write([]byte(`[{"phonetic":"","phonetics":[{"text":""},{"text":"/wɜːld/"}]}]`))
		default:
			http.Error(w, `{"title":"No Definitions Found"}`, http.StatusNotFound)
		}
	}))
}

func TestWordIPAMemoizesHitsAndMisses(t *testing.T) {
	var hits atomic.Int32
	server := newDictionary(t, &hits)
	defer server.Close()

	client := phonetics.NewClient(phonetics.Config{Endpoint: server.URL})
	ctx := context.Background()
	if got := client.WordIPA(ctx, "Hello"); got != "/həˈloʊ/" {
		t.Fatalf("unexpected ipa %q", got)
	}
	if got := client.WordIPA(ctx, "hello"); got != "/həˈloʊ/" {
		t.Fatalf("unexpected cached ipa %q", got)
	}
	if got := client.WordIPA(ctx, "zzz"); got != "" {
		t.Fatalf("expected miss, got %q", got)
	}
	client.WordIPA(ctx, "zzz")
	if hits.Load() != 2 {
		t.Fatalf("expected 2 dictionary requests, got %d", hits.Load())
	}
}

func TestSentenceIPA(t *testing.T) {
	var hits atomic.Int32
	server := newDictionary(t, &hits)
	defer server.Close()

	client := phonetics.NewClient(phonetics.Config{Endpoint: server.URL})
	ctx := context.Background()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mixed", "Hello, big world!", "/həˈloʊ/ big /wɜːld/"},
		{"no words resolve", "zzz qqq", textutil.PendingMarker},
		{"empty", "   ", textutil.PendingMarker},
		{"non words kept", "hello 42", "/həˈloʊ/ 42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.SentenceIPA(ctx, tt.in); got != tt.want {
				t.Fatalf("SentenceIPA(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
