// Package brain talks to the local model backend. It streams chat
// completions, extracts structured replies while bytes are still
// arriving, and degrades through a cache, a non-streaming retry, and a
// circuit breaker so a slow or dead backend never takes the companion
// down with it.
package brain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/metrics"
)

// Role values for chat turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one turn of conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PartialFunc receives best-effort partial reply text during streaming.
type PartialFunc func(partial string)

// Options tune the model request.
type Options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// Config configures the chat client.
type Config struct {
	BaseURL         string
	Model           string
	Options         Options
	HistoryTurns    int           // turns of history sent with each request, default 4
	StreamTimeout   time.Duration // default 120s
	FallbackTimeout time.Duration // shorter non-streaming retry, default 30s
	Cache           *Cache        // optional; nil disables caching
	Breaker         *CircuitBreaker
}

// Client is the streaming chat client for the Ollama-style backend.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *Cache
	breaker *CircuitBreaker

	// mu guards the live-tunable subset: model name and options can be
	// swapped by a config reload while requests are in flight.
	mu      sync.RWMutex
	model   string
	options Options
}

// ErrBackendUnavailable is returned when the circuit is open.
var ErrBackendUnavailable = errors.New("model backend unavailable")

// NewClient creates a chat client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 4
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 120 * time.Second
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 30 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{}, // per-request deadlines via context
		cache:   cfg.Cache,
		breaker: cfg.Breaker,
		model:   cfg.Model,
		options: cfg.Options,
	}
}

// SetModel swaps the model name and options for subsequent requests.
// Used by config hot reload; in-flight requests keep their settings.
func (c *Client) SetModel(model string, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	c.options = opts
	if c.cache != nil {
		// Cached replies came from the old model.
		c.cache.Clear()
	}
}

func (c *Client) modelSettings() (string, Options) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model, c.options
}

// Ping probes backend reachability without a model invocation.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}

// StreamChat runs one chat invocation. The flow is: cache check (only
// when no partial callback is supplied, since a cache hit cannot be
// streamed), then a streaming request with incremental partial
// extraction, then on failure a single non-streaming retry with a
// shorter timeout.
func (c *Client) StreamChat(ctx context.Context, systemPrompt, userText string, history []ChatTurn, onPartial PartialFunc) (string, emotion.Tag, error) {
	fingerprint := Fingerprint(history)

	if c.cache != nil && onPartial == nil {
		if hit, ok := c.cache.Get(fingerprint, userText); ok {
			metrics.CacheHits.Inc()
			return hit.Reply, hit.Emotion, nil
		}
		metrics.CacheMisses.Inc()
	}

	if !c.breaker.Allow() {
		return "", emotion.TagNeutral, ErrBackendUnavailable
	}

	start := time.Now()
	streamCtx, cancel := context.WithTimeout(ctx, c.cfg.StreamTimeout)
	raw, err := c.stream(streamCtx, systemPrompt, userText, history, onPartial)
	cancel()

	if err != nil {
		// A canceled caller means this invocation was superseded, not
		// that the backend failed. No fallback, no breaker penalty.
		if ctx.Err() != nil {
			return "", emotion.TagNeutral, ctx.Err()
		}

		// One retry via the non-streaming path with a shorter deadline.
		// Detached from the caller's cancellation so a stream timeout
		// still gets its quick retry.
		fallbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FallbackTimeout)
		defer cancel()
		raw, err = c.request(fallbackCtx, systemPrompt, userText, history)
		if err != nil {
			c.breaker.RecordFailure()
			metrics.ChatFailures.Inc()
			return "", emotion.TagNeutral, fmt.Errorf("chat failed after fallback: %w", err)
		}
	}

	c.breaker.RecordSuccess()
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())

	reply, emo := ParseReply(raw)
	if c.cache != nil {
		c.cache.Set(fingerprint, userText, reply, emo)
	}
	return reply, emo, nil
}

// Chat runs one non-streaming chat invocation with the same caching and
// breaker behavior as StreamChat.
func (c *Client) Chat(ctx context.Context, systemPrompt, userText string, history []ChatTurn) (string, emotion.Tag, error) {
	fingerprint := Fingerprint(history)

	if c.cache != nil {
		if hit, ok := c.cache.Get(fingerprint, userText); ok {
			metrics.CacheHits.Inc()
			return hit.Reply, hit.Emotion, nil
		}
		metrics.CacheMisses.Inc()
	}

	if !c.breaker.Allow() {
		return "", emotion.TagNeutral, ErrBackendUnavailable
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.FallbackTimeout)
	defer cancel()

	raw, err := c.request(reqCtx, systemPrompt, userText, history)
	if err != nil {
		c.breaker.RecordFailure()
		metrics.ChatFailures.Inc()
		return "", emotion.TagNeutral, err
	}

	c.breaker.RecordSuccess()
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())

	reply, emo := ParseReply(raw)
	if c.cache != nil {
		c.cache.Set(fingerprint, userText, reply, emo)
	}
	return reply, emo, nil
}

// chatRequest is the request format for the backend chat API.
type chatRequest struct {
	Model    string     `json:"model"`
	Stream   bool       `json:"stream"`
	Messages []ChatTurn `json:"messages"`
	Options  Options    `json:"options,omitempty"`
}

// chatChunk is one newline-delimited JSON chunk of a streaming reply,
// and also the whole body of a non-streaming one.
type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// partialInterval bounds how often partial text reaches the UI.
const partialInterval = 100 * time.Millisecond

// stream issues the streaming request and accumulates chunks,
// forwarding best-effort partial replies as they form.
func (c *Client) stream(ctx context.Context, systemPrompt, userText string, history []ChatTurn, onPartial PartialFunc) (string, error) {
	model, opts := c.modelSettings()
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Stream:   true,
		Messages: c.messages(systemPrompt, userText, history),
		Options:  opts,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("backend error %d: %s", resp.StatusCode, string(respBody))
	}

	var buf strings.Builder
	lastPartial := time.Time{}
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk chatChunk
		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("stream decode failed: %w", err)
		}

		buf.WriteString(chunk.Message.Content)

		if onPartial != nil {
			hasSpace := strings.ContainsAny(chunk.Message.Content, " \t\n")
			if hasSpace || time.Since(lastPartial) >= partialInterval {
				if partial, ok := ExtractPartialReply(buf.String()); ok {
					onPartial(partial)
					lastPartial = time.Now()
				}
			}
		}

		if chunk.Done {
			break
		}
	}

	return buf.String(), nil
}

// request issues a single non-streaming call.
func (c *Client) request(ctx context.Context, systemPrompt, userText string, history []ChatTurn) (string, error) {
	model, opts := c.modelSettings()
	body, err := json.Marshal(chatRequest{
		Model:    model,
		Stream:   false,
		Messages: c.messages(systemPrompt, userText, history),
		Options:  opts,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("backend error %d: %s", resp.StatusCode, string(respBody))
	}

	var chunk chatChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return chunk.Message.Content, nil
}

// messages assembles system prompt, trimmed history, and the new user
// turn.
func (c *Client) messages(systemPrompt, userText string, history []ChatTurn) []ChatTurn {
	trimmed := history
	if len(trimmed) > c.cfg.HistoryTurns {
		trimmed = trimmed[len(trimmed)-c.cfg.HistoryTurns:]
	}

	msgs := make([]ChatTurn, 0, len(trimmed)+2)
	msgs = append(msgs, ChatTurn{Role: RoleSystem, Content: systemPrompt})
	msgs = append(msgs, trimmed...)
	msgs = append(msgs, ChatTurn{Role: RoleUser, Content: userText})
	return msgs
}

// fingerprintTurns and fingerprintPrefix bound how much history feeds
// the cache key.
const (
	fingerprintTurns  = 3
	fingerprintPrefix = 64
)

// Fingerprint hashes the tail of the conversation so semantically
// distinct contexts never share cache entries.
func Fingerprint(history []ChatTurn) string {
	tail := history
	if len(tail) > fingerprintTurns {
		tail = tail[len(tail)-fingerprintTurns:]
	}

	h := sha256.New()
	for _, turn := range tail {
		content := turn.Content
		if len(content) > fingerprintPrefix {
			content = content[:fingerprintPrefix]
		}
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
