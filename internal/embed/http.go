package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/georag/georag/internal/errs"
)

// HTTPConfig configures the HTTP embedder adapter.
type HTTPConfig struct {
	Endpoint       string // base URL, e.g. "http://localhost:11434"
	Model          string
	Dimensions     int // 0 = auto-detect from first response
	Timeout        time.Duration
	MaxRetries     int
	PoolSize       int // 0 = 2*GOMAXPROCS
	SkipProbe      bool
	CircuitMaxFail int
	CircuitReset   time.Duration
}

// DefaultHTTPConfig returns the defaults named in spec §4.4/§6.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Endpoint:       "http://localhost:11434",
		Model:          "nomic-embed-text",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		CircuitMaxFail: 5,
		CircuitReset:   30 * time.Second,
	}
}

// HTTPEmbedder implements Embedder over the §6 wire contract:
// POST {endpoint}/api/embeddings {"model":M,"input":[...]} ->
// {"embeddings":[[...]]}, behind a pooled client, retry, and circuit breaker.
type HTTPEmbedder struct {
	client    *http.Client
	transport *http.Transport
	cfg       HTTPConfig
	breaker   *errs.CircuitBreaker
	dims      int
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEmbedder constructs an HTTP adapter. Unless SkipProbe is set, it
// issues a one-text probe request to discover the dimension when cfg.Dimensions
// is zero.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHTTPConfig().Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHTTPConfig().Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPConfig().Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultHTTPConfig().MaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.CircuitMaxFail <= 0 {
		cfg.CircuitMaxFail = DefaultHTTPConfig().CircuitMaxFail
	}
	if cfg.CircuitReset <= 0 {
		cfg.CircuitReset = DefaultHTTPConfig().CircuitReset
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     60 * time.Second,
	}

	// No client-level Timeout: per-request context timeouts are applied at
	// each call site instead, so a slow batch doesn't starve a later one.
	e := &HTTPEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		cfg:       cfg,
		dims:      cfg.Dimensions,
		breaker:   errs.NewCircuitBreaker("embedder-http", errs.WithMaxFailures(cfg.CircuitMaxFail), errs.WithResetTimeout(cfg.CircuitReset)),
	}

	if !cfg.SkipProbe && e.dims == 0 {
		vecs, err := e.doEmbed(ctx, []string{"dimension probe"})
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.dims = len(vecs[0])
	}
	if e.dims == 0 {
		e.dims = DefaultDimensions
	}
	return e, nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.doEmbed(ctx, texts)
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	err := e.breaker.Execute(func() error {
		return errs.Retry(ctx, errs.RetryConfig{
			MaxRetries:   e.cfg.MaxRetries,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		}, func() error {
			reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()

			vecs, err := e.call(reqCtx, texts)
			if err != nil {
				return err
			}
			result = vecs
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, errs.ErrCircuitOpen) {
			return nil, errs.New(errs.EmbedderUnavailable, "embedder circuit open", err).
				WithRemediation(fmt.Sprintf("the embedding service at %s (model %s) has failed repeatedly; verify it is running and reachable", e.cfg.Endpoint, e.cfg.Model))
		}
		return nil, errs.New(errs.EmbedderUnavailable, "embedder request failed", err).
			WithRemediation(fmt.Sprintf("start or check the embedding service at %s (model %s)", e.cfg.Endpoint, e.cfg.Model))
	}

	for i, v := range result {
		if e.dims != 0 && len(v) != e.dims {
			return nil, errs.New(errs.DimensionMismatch, "embedder returned unexpected dimension", nil).
				WithDetail("index", fmt.Sprint(i)).
				WithDetail("expected", fmt.Sprint(e.dims)).
				WithDetail("got", fmt.Sprint(len(v)))
		}
		result[i] = normalizeVector(v)
	}
	return result, nil
}

func (e *HTTPEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder returned status %d: %s", resp.StatusCode, string(payload))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embedder response: %w", err)
	}
	if len(out.Embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no embeddings")
	}
	return out.Embeddings, nil
}

func (e *HTTPEmbedder) Dimensions() int   { return e.dims }
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (e *HTTPEmbedder) Close() error {
	e.transport.CloseIdleConnections()
	return nil
}
