// Package ado reads work items, work item types, test suites and test points
// from the Azure DevOps REST API.
package ado

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/satyaki-up/testplan/internal/workitems"
)

const (
	defaultAPIVersion = "7.1"
	defaultRetryWait  = 500 * time.Millisecond
	pointsPageSize    = 200
)

type Config struct {
	// BaseURL is the service root, e.g. https://dev.azure.com.
	BaseURL      string
	Organization string
	// Token is a personal access token sent with basic auth. Requests are
	// anonymous when it is empty.
	Token      string
	APIVersion string
	Timeout    time.Duration
	// Retries is the number of extra attempts made on 429 and 5xx responses
	// and on transport errors.
	Retries   int
	RetryWait time.Duration
}

type Client struct {
	httpClient *http.Client
	config     Config
	orgURL     string
	log        zerolog.Logger
}

var (
	_ workitems.ItemReader = (*Client)(nil)
	_ workitems.TestReader = (*Client)(nil)
)

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		orgURL:     strings.TrimRight(cfg.BaseURL, "/") + "/" + url.PathEscape(cfg.Organization),
		log:        log,
	}
}

func (c *Client) GetWorkItem(ctx context.Context, project string, id int, opts workitems.GetOptions) (*workitems.WorkItem, error) {
	query := url.Values{}
	// The service rejects fields combined with $expand.
	if opts.Expand != workitems.ExpandNone {
		query.Set("$expand", string(opts.Expand))
	} else if len(opts.Fields) > 0 {
		query.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.AsOf != nil {
		query.Set("asOf", opts.AsOf.UTC().Format(time.RFC3339))
	}

	endpoint := c.projectURL(project, "_apis/wit/workitems", strconv.Itoa(id))
	var decoded apiWorkItem
	if err := c.getJSON(ctx, endpoint, query, &decoded); err != nil {
		return nil, fmt.Errorf("work item %d: %w", id, err)
	}

	item := &workitems.WorkItem{
		ID:      decoded.ID,
		Rev:     decoded.Rev,
		Fields:  decoded.Fields,
		HTMLURL: decoded.Links.HTML.Href,
	}
	if item.Fields == nil {
		item.Fields = make(map[string]any)
	}
	for _, rel := range decoded.Relations {
		item.Relations = append(item.Relations, workitems.Classify(rel.Rel, rel.URL))
	}
	return item, nil
}

func (c *Client) GetWorkItemType(ctx context.Context, project, name string) (*workitems.WorkItemType, error) {
	endpoint := c.projectURL(project, "_apis/wit/workitemtypes", name)
	var decoded apiWorkItemType
	if err := c.getJSON(ctx, endpoint, nil, &decoded); err != nil {
		return nil, fmt.Errorf("work item type %q: %w", name, err)
	}
	return &workitems.WorkItemType{
		Name:     decoded.Name,
		IconID:   decoded.Icon.ID,
		ColorHex: decoded.Color,
	}, nil
}

func (c *Client) GetSuitesByTestCaseID(ctx context.Context, testCaseID int) ([]workitems.SuiteRef, error) {
	query := url.Values{}
	query.Set("testCaseId", strconv.Itoa(testCaseID))

	var decoded suitesResponse
	if err := c.getJSON(ctx, c.orgURL+"/_apis/test/suites", query, &decoded); err != nil {
		return nil, fmt.Errorf("suites of test case %d: %w", testCaseID, err)
	}

	out := make([]workitems.SuiteRef, 0, len(decoded.Value))
	for _, s := range decoded.Value {
		out = append(out, workitems.SuiteRef{ID: int(s.ID), PlanID: int(s.Plan.ID)})
	}
	return out, nil
}

// GetPoints pages through every test point of a suite.
func (c *Client) GetPoints(ctx context.Context, project string, planID, suiteID int) ([]workitems.TestPoint, error) {
	endpoint := c.projectURL(project,
		"_apis/test/Plans", strconv.Itoa(planID),
		"Suites", strconv.Itoa(suiteID),
		"points")

	var out []workitems.TestPoint
	for skip := 0; ; skip += pointsPageSize {
		query := url.Values{}
		query.Set("$skip", strconv.Itoa(skip))
		query.Set("$top", strconv.Itoa(pointsPageSize))

		var decoded pointsResponse
		if err := c.getJSON(ctx, endpoint, query, &decoded); err != nil {
			return nil, fmt.Errorf("points of plan %d suite %d: %w", planID, suiteID, err)
		}
		for _, p := range decoded.Value {
			point, err := toTestPoint(p)
			if err != nil {
				return nil, err
			}
			out = append(out, point)
		}
		if len(decoded.Value) < pointsPageSize {
			return out, nil
		}
	}
}

func toTestPoint(p apiPoint) (workitems.TestPoint, error) {
	point := workitems.TestPoint{
		ID:            p.ID,
		TestCaseID:    int(p.TestCase.ID),
		Outcome:       workitems.ParseOutcome(p.Outcome),
		Configuration: p.Configuration.Name,
	}
	if p.LastUpdatedDate != "" {
		t, err := time.Parse(time.RFC3339Nano, p.LastUpdatedDate)
		if err != nil {
			return workitems.TestPoint{}, fmt.Errorf("parse lastUpdatedDate of point %d: %w", p.ID, err)
		}
		point.LastUpdated = t
	}
	return point, nil
}

func (c *Client) projectURL(project string, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.orgURL)
	b.WriteString("/")
	b.WriteString(url.PathEscape(project))
	for _, s := range segments {
		b.WriteString("/")
		// Path segments given with a slash are already a route.
		if strings.Contains(s, "/") {
			b.WriteString(s)
			continue
		}
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("non-success status code: %d, response: %s", e.code, e.body)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// getJSON issues a GET and decodes a 2xx body into out, retrying throttled
// and failed attempts with exponential backoff.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.config.APIVersion)
	target := endpoint + "?" + query.Encode()

	wait := c.config.RetryWait
	var lastErr error
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			wait *= 2
		}

		body, retryAfter, err := c.do(ctx, target, attempt)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("unable to decode response from %s: %w", endpoint, err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var se *statusError
		if errors.As(err, &se) {
			if se.code == http.StatusNotFound {
				return fmt.Errorf("%w: %s", workitems.ErrNotFound, se.body)
			}
			if !retryable(se.code) {
				return err
			}
		}
		if retryAfter > wait {
			wait = retryAfter
		}
		lastErr = err
	}
	return fmt.Errorf("giving up after %d attempts: %w", c.config.Retries+1, lastErr)
}

func (c *Client) do(ctx context.Context, target string, attempt int) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	setJSONHeaders(req, c.config.Token)

	began := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("url", req.URL.Path).Int("attempt", attempt).Msg("request failed")
		return nil, 0, fmt.Errorf("request failed for URL %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("url", req.URL.Path).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("elapsed", time.Since(began)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retryAfter(resp.Header.Get("Retry-After")), &statusError{code: resp.StatusCode, body: string(body)}
	}
	return body, 0, nil
}

func setJSONHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.SetBasicAuth("", token)
	}
}

func retryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
