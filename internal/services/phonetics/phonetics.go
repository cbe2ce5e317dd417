// Package phonetics resolves IPA transcriptions for English words through a
// dictionary API and composes sentence-level transcriptions from them.
package phonetics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"coursepipe/internal/textutil"
)

const (
	defaultHTTPTimeout = 8 * time.Second
	defaultEndpoint    = "https://api.dictionaryapi.dev/api/v2/entries/en"
	tokenPunctuation   = ".,!?;:\"()[]{}"
)

var wordPattern = regexp.MustCompile(`^[A-Za-z]+(?:'[A-Za-z]+)?$`)

// Cache memoizes word lookups. Misses are cached as empty strings.
type Cache interface {
	Get(word string) (string, bool)
	Set(word, ipa string)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

// Get implements Cache.
func (m *MemoryCache) Get(word string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[word]
	return value, ok
}

// Set implements Cache.
func (m *MemoryCache) Set(word, ipa string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[word] = ipa
}

// Config captures the dictionary endpoint settings.
type Config struct {
	Endpoint       string
	TimeoutSeconds int
}

// Client looks up word pronunciations.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      Cache
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// NewClient constructs a phonetics client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      NewMemoryCache(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.endpoint == "" {
		client.endpoint = defaultEndpoint
	}
	return client
}

type dictionaryEntry struct {
	Phonetic  string `json:"phonetic"`
	Phonetics []struct {
		Text string `json:"text"`
	} `json:"phonetics"`
}

// WordIPA returns the transcription for a single word, or "" when the
// dictionary has none. Lookup failures are cached as misses.
func (c *Client) WordIPA(ctx context.Context, word string) string {
	key := strings.ToLower(strings.TrimSpace(word))
	if key == "" {
		return ""
	}
	if value, ok := c.cache.Get(key); ok {
		return value
	}
	value, err := c.lookup(ctx, key)
	if err != nil {
		value = ""
	}
	if ctx.Err() == nil {
		c.cache.Set(key, value)
	}
	return value
}

func (c *Client) lookup(ctx context.Context, word string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+url.PathEscape(word), nil)
	if err != nil {
		return "", fmt.Errorf("build dictionary request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dictionary request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("dictionary request: http %d", resp.StatusCode)
	}
	var entries []dictionaryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return "", fmt.Errorf("decode dictionary response: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	if phonetic := strings.TrimSpace(entries[0].Phonetic); phonetic != "" {
		return phonetic, nil
	}
	for _, item := range entries[0].Phonetics {
		if text := strings.TrimSpace(item.Text); text != "" {
			return text, nil
		}
	}
	return "", nil
}

// SentenceIPA replaces each English word of text with its transcription and
// leaves other tokens untouched. When no word resolves, the pending marker
// is returned instead.
func (c *Client) SentenceIPA(ctx context.Context, text string) string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return textutil.PendingMarker
	}
	out := make([]string, 0, len(tokens))
	resolved := false
	for _, token := range tokens {
		word := strings.Trim(token, tokenPunctuation)
		if !wordPattern.MatchString(word) {
			out = append(out, token)
			continue
		}
		ipa := c.WordIPA(ctx, word)
		if ipa == "" {
			out = append(out, token)
			continue
		}
		resolved = true
		out = append(out, ipa)
	}
	if !resolved {
		return textutil.PendingMarker
	}
	return strings.Join(out, " ")
}
