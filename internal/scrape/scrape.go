// Package scrape runs the job-board scraping actor and returns validated raw postings.
package scrape

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/zgt/job-scout/internal/jobs"
	"github.com/zgt/job-scout/internal/utils"
)

const (
	defaultBaseURL  = "https://api.apify.com"
	defaultActor    = "curious_coder~linkedin-jobs-scraper"
	defaultTimeout  = 5 * time.Minute
	userAgent       = "zgt/job-scout"
	contentType     = "application/json"
	contentEncoding = "gzip"
	maxErrorBody    = 512
)

// ErrScrape is returned when the actor invocation itself fails.
var ErrScrape = errors.New("scrape failed")

// Config configures the actor client.
type Config struct {
	BaseURL string
	Actor   string
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	actor   string
	token   string
	timeout time.Duration
	schema  *jsonschema.Schema
	logger  *zap.Logger

	HTTPClient *http.Client
	UserAgent  string
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("apify token is required")
	}

	schema, err := jsonschema.CompileString("rawjob.schema.json", rawJobSchema)
	if err != nil {
		return nil, fmt.Errorf("compile raw job schema: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		actor:      strings.TrimSpace(cfg.Actor),
		token:      token,
		timeout:    cfg.Timeout,
		schema:     schema,
		logger:     logger,
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.actor == "" {
		c.actor = defaultActor
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	return c, nil
}

// Scrape runs the actor synchronously and returns every item that satisfies the raw job schema,
// in the order the actor produced them. Malformed items are logged and dropped.
func (c *Client) Scrape(ctx context.Context, search SearchConfig) ([]jobs.RawJob, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(search)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal search config: %w", ErrScrape, err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.baseURL, url.PathEscape(c.actor))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}
	req.Header.Set("Content-Type", contentType)
	q := req.URL.Query()
	q.Set("format", "json")
	q.Set("clean", "true")
	req.URL.RawQuery = q.Encode()

	c.logger.Info("running scrape actor",
		zap.String("actor", c.actor),
		zap.Int("count", search.Count),
		zap.Int("urls", len(search.URLs)),
	)

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: decode dataset items: %w (body: %s)", ErrScrape, err, utils.TruncateForLog(string(data), maxErrorBody))
	}

	result := make([]jobs.RawJob, 0, len(items))
	for i, item := range items {
		raw, err := c.decodeItem(item)
		if err != nil {
			c.logger.Warn("dropping invalid scraped item", zap.Int("index", i), zap.Error(err))
			continue
		}
		result = append(result, raw)
	}

	c.logger.Info("scrape finished", zap.Int("items", len(items)), zap.Int("valid", len(result)))
	return result, nil
}

// Ping checks that the token is accepted by the platform.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/users/me", nil)
	if err != nil {
		return err
	}

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%w: %w", ErrScrape, err)
	}
	return nil
}

func (c *Client) decodeItem(item any) (jobs.RawJob, error) {
	var raw jobs.RawJob

	if err := c.schema.Validate(item); err != nil {
		return raw, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &raw,
	})
	if err != nil {
		return raw, err
	}
	if err := decoder.Decode(item); err != nil {
		return raw, err
	}

	return raw, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req = c.setHeaders(req)

	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("path", req.URL.Path))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), maxErrorBody))
	}

	return data, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
