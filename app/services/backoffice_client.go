package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/models"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/amirphl/segment-backoffice/utils"
)

// ErrUpstreamUnauthorized is matched by any UpstreamError carrying a 401
var ErrUpstreamUnauthorized = errors.New("backoffice rejected the access token")

// UpstreamError is a non-2xx answer from the backoffice backend
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUpstreamUnauthorized
	}
	return nil
}

// UserQuery filters the users listing. A zero id in either list selects
// users without any segment or tag.
type UserQuery struct {
	Limit      int
	Offset     int
	Search     string
	SegmentIDs []int64
	TagIDs     []int64
}

// HistoryQuery bounds are unix seconds
type HistoryQuery struct {
	UserID int64
	From   int64
	To     *int64
	Limit  int
	Offset int
}

// StatisticsQuery bounds are unix seconds; nil leaves the backend default
type StatisticsQuery struct {
	From    *int64
	To      *int64
	Buckets int
}

// BackofficeClient talks to the backoffice backend on behalf of an operator
type BackofficeClient interface {
	ListTags(ctx context.Context, token string, activeOnly bool) ([]models.Tag, error)
	CreateTag(ctx context.Context, token string, payload rules.Payload) (*models.Tag, error)
	UpdateTag(ctx context.Context, token string, id int64, payload rules.Payload) (*models.Tag, error)
	DeleteTag(ctx context.Context, token string, id int64) error
	ListUsers(ctx context.Context, token string, q UserQuery) (*models.UserPage, error)
	UserHistory(ctx context.Context, token string, q HistoryQuery) ([]models.HistoryEvent, error)
	ListSegments(ctx context.Context, token string) (*models.SegmentCatalog, error)
	SetupSegments(ctx context.Context, token string, setup models.SegmentSetup) error
	SegmentStatistics(ctx context.Context, token string, q StatisticsQuery) ([]models.StatisticsBucket, error)
}

type httpBackofficeClient struct {
	cfg    config.UpstreamConfig
	client *http.Client
}

// NewBackofficeClient creates the HTTP client for the configured backend
func NewBackofficeClient(cfg config.UpstreamConfig) BackofficeClient {
	return newHTTPBackofficeClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

func newHTTPBackofficeClient(cfg config.UpstreamConfig, client *http.Client) *httpBackofficeClient {
	if cfg.Prefix == "" {
		cfg.Prefix = "gtestbet"
	}
	return &httpBackofficeClient{cfg: cfg, client: client}
}

type tagWriteRequest struct {
	rules.Payload
	Prefix string `json:"prefix"`
}

type tagUpdateRequest struct {
	ID int64 `json:"id"`
	rules.Payload
	Prefix string `json:"prefix"`
}

type tagDeleteRequest struct {
	ID     int64  `json:"id"`
	Prefix string `json:"prefix"`
}

type segmentSetupRequest struct {
	models.SegmentSetup
	Prefix string `json:"prefix"`
}

func (c *httpBackofficeClient) ListTags(ctx context.Context, token string, activeOnly bool) ([]models.Tag, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active", "1")
	}
	body, err := c.do(ctx, "list_tags", http.MethodGet, "/tags", token, q, nil)
	if err != nil {
		return nil, err
	}
	return decodeTags(body)
}

func (c *httpBackofficeClient) CreateTag(ctx context.Context, token string, payload rules.Payload) (*models.Tag, error) {
	body, err := c.do(ctx, "create_tag", http.MethodPost, "/tags/create", token, nil, tagWriteRequest{Payload: payload, Prefix: c.cfg.Prefix})
	if err != nil {
		return nil, err
	}
	return decodeTagResponse(body), nil
}

func (c *httpBackofficeClient) UpdateTag(ctx context.Context, token string, id int64, payload rules.Payload) (*models.Tag, error) {
	body, err := c.do(ctx, "update_tag", http.MethodPost, "/tags/update", token, nil, tagUpdateRequest{ID: id, Payload: payload, Prefix: c.cfg.Prefix})
	if err != nil {
		return nil, err
	}
	return decodeTagResponse(body), nil
}

func (c *httpBackofficeClient) DeleteTag(ctx context.Context, token string, id int64) error {
	_, err := c.do(ctx, "delete_tag", http.MethodPost, "/tags/delete", token, nil, tagDeleteRequest{ID: id, Prefix: c.cfg.Prefix})
	return err
}

func (c *httpBackofficeClient) ListUsers(ctx context.Context, token string, q UserQuery) (*models.UserPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if len(q.SegmentIDs) > 0 {
		params.Set("segmentIds", utils.JoinIDs(q.SegmentIDs))
	}
	if len(q.TagIDs) > 0 {
		params.Set("tagIds", utils.JoinIDs(q.TagIDs))
	}
	body, err := c.do(ctx, "list_users", http.MethodGet, "/users/segments-and-tags", token, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeUserPage(body)
}

func (c *httpBackofficeClient) UserHistory(ctx context.Context, token string, q HistoryQuery) ([]models.HistoryEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = c.cfg.HistoryLimit
	}
	params := url.Values{}
	params.Set("userId", strconv.FormatInt(q.UserID, 10))
	params.Set("from", strconv.FormatInt(q.From, 10))
	if q.To != nil {
		params.Set("to", strconv.FormatInt(*q.To, 10))
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	body, err := c.do(ctx, "user_history", http.MethodGet, "/users/history", token, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeHistory(body)
}

func (c *httpBackofficeClient) ListSegments(ctx context.Context, token string) (*models.SegmentCatalog, error) {
	body, err := c.do(ctx, "list_segments", http.MethodGet, "/segments", token, url.Values{}, nil)
	if err != nil {
		return nil, err
	}
	return decodeSegmentCatalog(body)
}

func (c *httpBackofficeClient) SetupSegments(ctx context.Context, token string, setup models.SegmentSetup) error {
	_, err := c.do(ctx, "setup_segments", http.MethodPost, "/segments/setup", token, nil, segmentSetupRequest{SegmentSetup: setup, Prefix: c.cfg.Prefix})
	return err
}

func (c *httpBackofficeClient) SegmentStatistics(ctx context.Context, token string, q StatisticsQuery) ([]models.StatisticsBucket, error) {
	params := url.Values{}
	if q.From != nil {
		params.Set("from", strconv.FormatInt(*q.From, 10))
	}
	if q.To != nil {
		params.Set("to", strconv.FormatInt(*q.To, 10))
	}
	buckets := q.Buckets
	if buckets <= 0 {
		buckets = models.DefaultStatisticsBuckets
	}
	params.Set("buckets", strconv.Itoa(buckets))
	body, err := c.do(ctx, "segment_statistics", http.MethodGet, "/segments/statistics", token, params, nil)
	if err != nil {
		return nil, err
	}
	return decodeStatistics(body)
}

// do sends one request and returns the raw body of a 2xx answer. GET requests
// carry the prefix in the query string, writes carry it in the body.
func (c *httpBackofficeClient) do(ctx context.Context, op, method, path, token string, query url.Values, body any) ([]byte, error) {
	start := time.Now()
	status := 0
	defer func() {
		upstreamRequestsTotal.WithLabelValues(op, statusLabel(status)).Inc()
		upstreamRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	endpoint := c.cfg.UpstreamURL() + path
	if method == http.MethodGet {
		if query == nil {
			query = url.Values{}
		}
		query.Set("prefix", c.cfg.Prefix)
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	return data, nil
}
