package ingest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/hex20/telemetry-health/monitor/internal/config"
	"github.com/hex20/telemetry-health/pkg/types"
)

// ErrIngestion marks a failure to obtain data from the ingestion side.
var ErrIngestion = errors.New("ingestion failure")

// maxBody caps how much of a response body is read.
const maxBody = 16 << 20

const (
	pathTelemetry = "/telemetry"
	pathStats     = "/stats"
	pathInject    = "/inject_anomaly"
)

// Client is an HTTP client for one ingestion endpoint. It is safe for
// concurrent use.
type Client struct {
	base   *url.URL
	client *http.Client
}

// New builds a Client from cfg. The underlying http.Client is created once
// and reused.
func New(cfg config.IngestConfig) (*Client, error) {
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ingest: endpoint %q must be http or https", cfg.Endpoint)
	}
	client, err := buildHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: build http client: %w", err)
	}
	return &Client{base: base, client: client}, nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the endpoint's auth and TLS
// settings.
func buildHTTPClient(cfg config.IngestConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if cfg.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: cfg.Auth,
		},
		Timeout: cfg.Timeout,
	}, nil
}

// FetchReadings downloads the current readings and decodes them.
func (c *Client) FetchReadings(ctx context.Context) (DecodeResult, error) {
	body, err := c.get(ctx, pathTelemetry)
	if err != nil {
		return DecodeResult{}, err
	}
	res, err := DecodeReadings(body)
	if err != nil {
		return DecodeResult{}, err
	}
	if res.Rejected > 0 {
		slog.Warn("ingest: rejected malformed readings",
			"rejected", res.Rejected, "accepted", len(res.Readings), "first", res.Errors[0])
	}
	return res, nil
}

// FetchSummary downloads the ingestion side's own health tally.
func (c *Client) FetchSummary(ctx context.Context) (types.HealthSummary, error) {
	body, err := c.get(ctx, pathStats)
	if err != nil {
		return types.HealthSummary{}, err
	}
	var s types.HealthSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return types.HealthSummary{}, fmt.Errorf("%w: decode stats: %v", ErrIngestion, err)
	}
	return s, nil
}

// CrossCheck compares the upstream tally with local and logs any
// disagreement. The local summary is authoritative; CrossCheck only reports.
func (c *Client) CrossCheck(ctx context.Context, local types.HealthSummary) (bool, error) {
	remote, err := c.FetchSummary(ctx)
	if err != nil {
		return false, err
	}
	if remote != local {
		slog.Info("ingest: upstream summary disagrees with local classification",
			"local_critical", local.Critical, "local_warning", local.Warning, "local_normal", local.Normal,
			"upstream_critical", remote.Critical, "upstream_warning", remote.Warning, "upstream_normal", remote.Normal,
		)
		return false, nil
	}
	return true, nil
}

// InjectAnomaly asks the ingestion side to synthesize an anomaly of kind.
func (c *Client) InjectAnomaly(ctx context.Context, kind types.AnomalyKind) error {
	payload, err := json.Marshal(map[string]string{"type": string(kind)})
	if err != nil {
		return fmt.Errorf("ingest: encode inject request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(pathInject), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrIngestion, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: http post: %v", ErrIngestion, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: inject %s: unexpected status %d", ErrIngestion, kind, resp.StatusCode)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	return c.base.JoinPath(path).String()
}

// get performs a GET against path and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrIngestion, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get %s: %v", ErrIngestion, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: unexpected status %d", ErrIngestion, path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIngestion, path, err)
	}
	return body, nil
}
