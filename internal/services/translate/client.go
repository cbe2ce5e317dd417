package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coursepipe/internal/logging"
	"coursepipe/internal/textutil"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	defaultEndpoint    = "https://translate.googleapis.com/translate_a/single"
	defaultMaxItems    = 40
	defaultMaxChars    = 4500
	minMaxChars        = 200
	chunkSeparator     = "|||__CPSEP__|||"
	userAgent          = "Mozilla/5.0"
)

// Config captures the runtime settings for the translate endpoint.
type Config struct {
	Endpoint       string
	SourceLang     string
	TargetLang     string
	TimeoutSeconds int
	MaxItems       int
	MaxChars       int
}

// Client wraps the gtx translate API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
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

// WithLogger attaches a logger for chunk fallback diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a translate client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Endpoint:       strings.TrimSpace(cfg.Endpoint),
			SourceLang:     strings.TrimSpace(cfg.SourceLang),
			TargetLang:     strings.TrimSpace(cfg.TargetLang),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxItems:       max(cfg.MaxItems, 1),
			MaxChars:       max(cfg.MaxChars, minMaxChars),
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	if cfg.MaxItems <= 0 {
		client.cfg.MaxItems = defaultMaxItems
	}
	if cfg.MaxChars <= 0 {
		client.cfg.MaxChars = defaultMaxChars
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Endpoint == "" {
		client.cfg.Endpoint = defaultEndpoint
	}
	if client.cfg.SourceLang == "" {
		client.cfg.SourceLang = "en"
	}
	if client.cfg.TargetLang == "" {
		client.cfg.TargetLang = "zh-CN"
	}
	client.logger = logging.NewComponentLogger(client.logger, "translate")
	return client
}

// Translate translates a single line. Blank input yields an empty result.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	query := c.baseQuery()
	query.Set("q", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	return c.do(req)
}

// BatchTranslate translates every entry of texts and returns a slice of the
// same length. Blank or placeholder inputs, and lines that failed to
// translate, come back as empty strings.
func (c *Client) BatchTranslate(ctx context.Context, texts []string) []string {
	results := make([]string, len(texts))
	unique := make([]string, 0, len(texts))
	positions := make(map[string][]int)
	for idx, raw := range texts {
		text := strings.TrimSpace(raw)
		if text == "" || textutil.IsPendingText(text) {
			continue
		}
		if _, seen := positions[text]; !seen {
			unique = append(unique, text)
		}
		positions[text] = append(positions[text], idx)
	}
	if len(unique) == 0 {
		return results
	}

	translated := make(map[string]string, len(unique))
	for _, chunk := range c.chunk(unique) {
		if ctx.Err() != nil {
			break
		}
		out, err := c.translateChunk(ctx, chunk)
		if err != nil {
			c.logger.Warn("translate chunk failed; falling back to single requests",
				logging.Int("chunk_size", len(chunk)),
				logging.Error(err),
			)
			for _, text := range chunk {
				value, singleErr := c.Translate(ctx, text)
				if singleErr != nil {
					c.logger.Debug("single translate failed", logging.Error(singleErr))
					continue
				}
				translated[text] = value
			}
			continue
		}
		for i, text := range chunk {
			translated[text] = out[i]
		}
	}

	for text, idxs := range positions {
		value := strings.TrimSpace(translated[text])
		for _, idx := range idxs {
			results[idx] = value
		}
	}
	return results
}

func (c *Client) chunk(items []string) [][]string {
	var chunks [][]string
	var current []string
	chars := 0
	for _, item := range items {
		if len(current) > 0 && (len(current) >= c.cfg.MaxItems || chars+len(item) > c.cfg.MaxChars) {
			chunks = append(chunks, current)
			current = nil
			chars = 0
		}
		current = append(current, item)
		chars += len(item)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func separatorFor(texts []string) string {
	sep := chunkSeparator
	for {
		clash := false
		for _, text := range texts {
			if strings.Contains(text, sep) {
				clash = true
				break
			}
		}
		if !clash {
			return sep
		}
		sep += "_"
	}
}

func (c *Client) translateChunk(ctx context.Context, texts []string) ([]string, error) {
	sep := separatorFor(texts)
	form := url.Values{}
	form.Set("q", strings.Join(texts, "\n"+sep+"\n"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"?"+c.baseQuery().Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	joined, err := c.do(req)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(joined, sep)
	if len(parts) != len(texts) {
		return nil, fmt.Errorf("translate chunk: expected %d lines, got %d", len(texts), len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func (c *Client) baseQuery() url.Values {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", c.cfg.SourceLang)
	query.Set("tl", c.cfg.TargetLang)
	query.Set("dt", "t")
	return query
}

func (c *Client) do(req *http.Request) (string, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseGTX(body)
}

// parseGTX concatenates the translated segments of a gtx response, whose
// first element is a list of [translated, original, ...] rows.
func parseGTX(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("decode translate response: empty payload")
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(payload[0], &rows); err != nil {
		return "", fmt.Errorf("decode translate rows: %w", err)
	}
	var b strings.Builder
	for _, row := range rows {
		var cells []json.RawMessage
		if err := json.Unmarshal(row, &cells); err != nil || len(cells) == 0 {
			continue
		}
		var segment string
		if err := json.Unmarshal(cells[0], &segment); err != nil {
			continue
		}
		b.WriteString(segment)
	}
	return b.String(), nil
}
