package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"ridetrack/internal/domain"
)

const (
	defaultOSRMTimeout = 5 * time.Second
	maxOSRMBody        = 8 << 20
)

// OSRMClient asks an OSRM server for driving routes with alternatives.
type OSRMClient struct {
	baseURL     string
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
}

// OSRMOption configures an OSRMClient.
type OSRMOption func(*OSRMClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OSRMOption {
	return func(o *OSRMClient) { o.client = c }
}

// WithMaxAttempts bounds how many times a transient failure is retried.
func WithMaxAttempts(n int) OSRMOption {
	return func(o *OSRMClient) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles per attempt.
func WithBackoff(d time.Duration) OSRMOption {
	return func(o *OSRMClient) { o.backoff = d }
}

// NewOSRMClient creates a client for the OSRM server at baseURL.
func NewOSRMClient(baseURL string, opts ...OSRMOption) *OSRMClient {
	o := &OSRMClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: defaultOSRMTimeout},
		maxAttempts: 2,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Routes returns every route OSRM proposes between origin and destination,
// in the order OSRM returned them. Routes whose geometry cannot be decoded
// are skipped.
func (o *OSRMClient) Routes(ctx context.Context, origin, destination domain.Coordinate) ([]domain.RouteCandidate, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&alternatives=true&geometries=geojson",
		o.baseURL, origin.Longitude, origin.Latitude, destination.Longitude, destination.Latitude)

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out osrmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOSRMBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode osrm response: %v", ErrRoutingUnavailable, err)
	}
	if out.Code != "Ok" {
		return nil, fmt.Errorf("%w: osrm code %q: %s", ErrRoutingUnavailable, out.Code, out.Message)
	}

	candidates := make([]domain.RouteCandidate, 0, len(out.Routes))
	for _, r := range out.Routes {
		path, ok := decodeGeometry(r.Geometry.Coordinates)
		if !ok {
			continue
		}
		candidates = append(candidates, domain.RouteCandidate{
			Path:            path,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}
	return candidates, nil
}

// decodeGeometry turns GeoJSON [lng, lat] pairs into coordinates.
func decodeGeometry(raw [][]float64) ([]domain.Coordinate, bool) {
	path := make([]domain.Coordinate, 0, len(raw))
	for _, p := range raw {
		if len(p) < 2 {
			return nil, false
		}
		path = append(path, domain.Coordinate{Latitude: p[1], Longitude: p[0]})
	}
	return path, true
}

func (o *OSRMClient) do(req *http.Request) (*http.Response, error) {
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries rate limiting, 5xx answers and network errors with
// exponential backoff, up to maxAttempts, while respecting ctx.
func (o *OSRMClient) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := o.backoff
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := o.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == o.maxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrRoutingUnavailable, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	var he *httpStatusError
	if errors.As(lastErr, &he) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrRoutingUnavailable, lastErr)
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
