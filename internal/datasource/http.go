package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/model"
)

// maxResponseBytes caps the size of a search response body.
const maxResponseBytes = 10 << 20

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	// Client defaults to a client with a 10s timeout.
	Client  *http.Client
	Headers http.Header
	Breaker *Breaker
	Logger  *zap.Logger
}

// HTTPSource posts search requests as JSON to a remote endpoint that
// answers with a paged result.
type HTTPSource[T any] struct {
	url     string
	client  *http.Client
	headers http.Header
	breaker *Breaker
	logger  *zap.Logger
}

// NewHTTPSource creates a source for the search endpoint at url.
func NewHTTPSource[T any](url string, opts HTTPOptions) *HTTPSource[T] {
	s := &HTTPSource[T]{
		url:     url,
		client:  opts.Client,
		headers: opts.Headers,
		breaker: opts.Breaker,
		logger:  opts.Logger,
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	if s.breaker == nil {
		s.breaker = NewBreaker(BreakerConfig{})
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Breaker returns the source's circuit breaker.
func (s *HTTPSource[T]) Breaker() *Breaker { return s.breaker }

// Fetch sends req and decodes the response. Server errors and transport
// failures count against the breaker; client errors do not.
func (s *HTTPSource[T]) Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[T], error) {
	var zero model.PagedResult[T]
	if err := s.breaker.Allow(); err != nil {
		return zero, model.NewBackendUnavailableError()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("datasource: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("datasource: build request: %w", err)
	}
	for k, v := range s.headers {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		s.breaker.Failure()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return zero, model.NewBackendTimeoutError()
		}
		s.logger.Warn("search backend request failed", zap.String("url", s.url), zap.Error(err))
		return zero, model.NewBackendUnavailableError()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		s.breaker.Failure()
		return zero, fmt.Errorf("datasource: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		s.breaker.Failure()
		s.logger.Warn("search backend error",
			zap.String("url", s.url),
			zap.Int("status", resp.StatusCode),
		)
		return zero, model.NewBackendUnavailableError()
	case resp.StatusCode >= 400:
		return zero, model.NewBadRequestError(fmt.Sprintf("search backend rejected request with status %d", resp.StatusCode))
	}
	s.breaker.Success()

	var res model.PagedResult[T]
	if err := json.Unmarshal(respBody, &res); err != nil {
		return zero, fmt.Errorf("datasource: decode response: %w", err)
	}
	if res.Data == nil {
		res.Data = []T{}
	}
	return res, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
