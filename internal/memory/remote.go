package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chatmindhq/chatmind/internal/observability"
	"github.com/chatmindhq/chatmind/internal/reliability"
)

const defaultRemoteTimeout = 4 * time.Second

// RemoteStore serves the Store contract from an external memory service
// over HTTP. Any classified failure of a remote call is absorbed by
// delegating the same call to the local fallback store; callers never
// observe which backend answered.
type RemoteStore struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	fallback Store
	metrics  *observability.Metrics
}

func NewRemoteStore(baseURL, apiKey string, timeout time.Duration, fallback Store, metrics *observability.Metrics) *RemoteStore {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteStore{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		metrics:  metrics,
	}
}

// RemoteConfigured reports whether both the endpoint and the credential
// are present. With either absent the factory wires the local store
// directly and no network attempt is ever made.
func RemoteConfigured(baseURL, apiKey string) bool {
	return strings.TrimSpace(baseURL) != "" && strings.TrimSpace(apiKey) != ""
}

func (s *RemoteStore) Save(ctx context.Context, userID, text string, metadata map[string]any) (string, error) {
	id, kind, err := s.remoteSave(ctx, userID, text, metadata)
	if err != nil {
		s.noteFallback("save", kind, err)
		return s.fallback.Save(ctx, userID, text, metadata)
	}
	return id, nil
}

func (s *RemoteStore) Search(ctx context.Context, userID string, k int, query string) ([]Turn, error) {
	if k <= 0 {
		return nil, nil
	}
	turns, kind, err := s.remoteSearch(ctx, userID, k, query)
	if err != nil {
		s.noteFallback("search", kind, err)
		return s.fallback.Search(ctx, userID, k, query)
	}
	return turns, nil
}

func (s *RemoteStore) Close() error {
	return s.fallback.Close()
}

func (s *RemoteStore) remoteSave(ctx context.Context, userID, text string, metadata map[string]any) (string, reliability.FailureKind, error) {
	payload, err := json.Marshal(map[string]any{
		"user_id":  userID,
		"text":     text,
		"metadata": metadata,
	})
	if err != nil {
		return "", reliability.FailureDecode, fmt.Errorf("marshal save request: %w", err)
	}

	body, kind, err := s.do(ctx, http.MethodPost, s.baseURL+"/memories", nil, payload)
	if err != nil {
		return "", kind, err
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", reliability.FailureDecode, fmt.Errorf("decode save response: %w", err)
	}
	id := coerceID(obj["id"])
	if id == "" {
		return "", reliability.FailureDecode, fmt.Errorf("save response missing id")
	}
	return id, "", nil
}

func (s *RemoteStore) remoteSearch(ctx context.Context, userID string, k int, query string) ([]Turn, reliability.FailureKind, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("q", query)
	params.Set("k", strconv.Itoa(k))

	body, kind, err := s.do(ctx, http.MethodGet, s.baseURL+"/memories/search", params, nil)
	if err != nil {
		return nil, kind, err
	}

	var items []remoteTurn
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, reliability.FailureDecode, fmt.Errorf("decode search response: %w", err)
	}
	if len(items) > k {
		items = items[:k]
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		turns = append(turns, Turn{
			ID: coerceID(item.ID),
			// Never trust the remote service to scope results; the caller's
			// identity wins.
			UserID:    userID,
			Text:      item.Text,
			Metadata:  item.Metadata,
			CreatedAt: parseRemoteTime(item.CreatedAt),
		})
	}
	return turns, "", nil
}

// do performs one remote call and classifies every failure mode once:
// transport/timeout from the client, non-2xx from the service, and read
// errors as decode failures. Body interpretation stays with the caller.
func (s *RemoteStore) do(ctx context.Context, method, rawURL string, params url.Values, payload []byte) ([]byte, reliability.FailureKind, error) {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, reliability.FailureTransport, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, reliability.ClassifyTransportError(err), fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if !reliability.IsSuccessHTTPStatus(res.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.FailureStatus, fmt.Errorf("remote memory status %d: %s", res.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, reliability.FailureDecode, fmt.Errorf("read response: %w", err)
	}
	return body, "", nil
}

func (s *RemoteStore) noteFallback(op string, kind reliability.FailureKind, err error) {
	log.Printf("remote memory %s failed (%s), serving from local store: %v", op, kind, err)
	if s.metrics != nil {
		s.metrics.RemoteFallbacks.WithLabelValues(op, string(kind)).Inc()
		s.metrics.ObserveIndicator("remote_memory_fallback")
	}
}

// remoteTurn is the lenient wire shape of a search result item. Missing
// fields coerce to zero values rather than erroring.
type remoteTurn struct {
	ID        any            `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

func coerceID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

func parseRemoteTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
