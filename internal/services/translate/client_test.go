package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"coursepipe/internal/services/translate"
)

type fakeGTX struct {
	mu         sync.Mutex
	gets       int
	posts      int
	postSizes  []int
	getQueries []string
	breakPost  bool
	// breakPostN breaks only the Nth batch request (1-based).
	breakPostN int
	getPrefix  string
}

func gtxBody(t *testing.T, text string) []byte {
	t.Helper()
	payload := []any{
		[]any{[]any{text, "source", nil, nil}},
		nil,
		"en",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func (f *fakeGTX) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("client"); got != "gtx" {
			t.Errorf("client query = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			f.gets++
			q := r.URL.Query().Get("q")
			f.getQueries = append(f.getQueries, q)
			prefix := f.getPrefix
			if prefix == "" {
				prefix = "译:"
			}
			_, _ = w.Write(gtxBody(t, prefix+q))
		case http.MethodPost:
			f.posts++
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
				return
			}
			q := r.PostForm.Get("q")
			sep := "|||__CPSEP__|||"
			parts := strings.Split(q, sep)
			f.postSizes = append(f.postSizes, len(parts))
			if f.breakPost || f.posts == f.breakPostN {
				_, _ = w.Write(gtxBody(t, "merged"))
				return
			}
			for i := range parts {
				parts[i] = "译:" + strings.TrimSpace(parts[i])
			}
			_, _ = w.Write(gtxBody(t, strings.Join(parts, sep)))
		}
	})
}

func TestTranslateSingle(t *testing.T) {
	fake := &fakeGTX{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL})
	got, err := client.Translate(context.Background(), " Hello ")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "译:Hello" {
		t.Fatalf("unexpected translation %q", got)
	}
}

func TestBatchTranslateDedupesAndSkipsPending(t *testing.T) {
	fake := &fakeGTX{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL})
	input := []string{"Hello", "", "Bye", "Hello", "[ASR pending] Please replace with real transcript."}
	got := client.BatchTranslate(context.Background(), input)
	want := []string{"译:Hello", "", "译:Bye", "译:Hello", ""}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if fake.posts != 1 || fake.gets != 0 {
		t.Fatalf("expected one batch request, got posts=%d gets=%d", fake.posts, fake.gets)
	}
	if fake.postSizes[0] != 2 {
		t.Fatalf("expected deduplicated chunk of 2, got %d", fake.postSizes[0])
	}
}

func TestBatchTranslateChunksByItemCount(t *testing.T) {
	fake := &fakeGTX{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL, MaxItems: 2})
	got := client.BatchTranslate(context.Background(), []string{"a", "b", "c", "d", "e"})
	if fake.posts != 3 {
		t.Fatalf("expected 3 chunks, got %d (%v)", fake.posts, fake.postSizes)
	}
	if got[4] != "译:e" {
		t.Fatalf("unexpected last result %q", got[4])
	}
}

func TestBatchTranslateFallsBackOnCountMismatch(t *testing.T) {
	fake := &fakeGTX{breakPost: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL})
	got := client.BatchTranslate(context.Background(), []string{"One", "Two"})
	if got[0] != "译:One" || got[1] != "译:Two" {
		t.Fatalf("unexpected fallback results %v", got)
	}
	if fake.gets != 2 {
		t.Fatalf("expected 2 single requests, got %d", fake.gets)
	}
}

func TestBatchTranslateServerErrorLeavesBlanks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL})
	got := client.BatchTranslate(context.Background(), []string{"One"})
	if got[0] != "" {
		t.Fatalf("expected blank result, got %q", got[0])
	}
	if _, err := client.Translate(context.Background(), "One"); err == nil {
		t.Fatal("expected error from single translate")
	}
}

func TestBatchTranslateFallbackIsScopedToFailedChunk(t *testing.T) {
	fake := &fakeGTX{breakPostN: 2, getPrefix: "单:"}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := translate.NewClient(translate.Config{Endpoint: server.URL, MaxItems: 2})
	got := client.BatchTranslate(context.Background(), []string{"a", "b", "c", "d", "c", "a"})
	want := []string{"译:a", "译:b", "单:c", "单:d", "单:c", "译:a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result[%d] = %q, want %q (all %v)", i, got[i], want[i], got)
		}
	}
	if fake.posts != 2 {
		t.Fatalf("expected 2 batch requests, got %d", fake.posts)
	}
	if strings.Join(fake.getQueries, ",") != "c,d" {
		t.Fatalf("single requests should cover only the failed chunk, got %v", fake.getQueries)
	}
}

func TestBatchTranslateChunksByCharacterBudget(t *testing.T) {
	fake := &fakeGTX{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := make([]string, 5)
	for i := range input {
		input[i] = strings.Repeat(string(rune('a'+i)), 120)
	}
	client := translate.NewClient(translate.Config{Endpoint: server.URL, MaxChars: 250})
	got := client.BatchTranslate(context.Background(), input)

	if len(fake.postSizes) != 3 || fake.postSizes[0] != 2 || fake.postSizes[1] != 2 || fake.postSizes[2] != 1 {
		t.Fatalf("expected chunks of 2,2,1 under the character budget, got %v", fake.postSizes)
	}
	for i := range input {
		if got[i] != "译:"+input[i] {
			t.Fatalf("result[%d] = %q", i, got[i])
		}
	}
	if fake.gets != 0 {
		t.Fatalf("no fallback expected, got %d single requests", fake.gets)
	}
}
