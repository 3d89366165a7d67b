// internal/inventory/client.go
package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"events-scrape/internal/model"
	"events-scrape/internal/pool"

	json "github.com/goccy/go-json"
)

// Client 는 inventory API 에 대한 최소 계약.
// 여러 worker 가 동시에 호출하므로 구현체는 goroutine-safe 해야 한다.
type Client interface {
	ListClusters(ctx context.Context) ([]model.Record, error)
	GetVersions(ctx context.Context) (model.Record, error)
	GetEvents(ctx context.Context, clusterID string, categories []string) ([]model.Record, error)
	GetClusterHosts(ctx context.Context, clusterID string) ([]model.Record, error)
}

const apiPrefix = "/api/assisted-install/v2"

// HTTPClient 는 assisted inventory REST API 클라이언트.
// http.Client 는 connection pool 을 공유하므로 하나만 만들어 재사용한다.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/") + apiPrefix,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListClusters(ctx context.Context) ([]model.Record, error) {
	var out []model.Record
	if err := c.get(ctx, "list_clusters", "/clusters", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetVersions(ctx context.Context) (model.Record, error) {
	var out model.Record
	if err := c.get(ctx, "get_versions", "/component-versions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, clusterID string, categories []string) ([]model.Record, error) {
	q := url.Values{}
	q.Set("cluster_id", clusterID)
	for _, cat := range categories {
		q.Add("categories", cat)
	}

	var out []model.Record
	if err := c.get(ctx, "get_events", "/events", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetClusterHosts 는 클러스터 상세를 받아 hosts 만 꺼낸다.
func (c *HTTPClient) GetClusterHosts(ctx context.Context, clusterID string) ([]model.Record, error) {
	var cluster struct {
		Hosts []model.Record `json:"hosts"`
	}
	if err := c.get(ctx, "get_cluster_hosts", "/clusters/"+url.PathEscape(clusterID), nil, &cluster); err != nil {
		return nil, err
	}
	return cluster.Hosts, nil
}

// get 은 GET 호출 1회. 재시도는 Fetcher(RetryPolicy) 가 담당한다.
func (c *HTTPClient) get(ctx context.Context, op, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("inventory %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	buf := pool.GetBody()
	defer pool.PutBody(buf)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("inventory %s: read body: %w", op, err)
	}
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("inventory %s: decode: %w", op, err)
	}
	return nil
}
