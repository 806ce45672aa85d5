// Package dataset fetches and decodes the tool dataset.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/gapfinder/internal/config"
	"github.com/pauljones0/gapfinder/internal/models"
	"github.com/pauljones0/gapfinder/internal/util"
	"github.com/pauljones0/gapfinder/internal/validator"
)

// ErrEmptyDataset is returned when a document decodes to zero usable records.
var ErrEmptyDataset = errors.New("dataset contains no usable records")

const (
	maxDocumentBytes = 32 << 20
	maxReportErrors  = 20
)

// LoadReport describes one load.
type LoadReport struct {
	Source        string   `json:"source"`
	Format        string   `json:"format"`
	Total         int      `json:"total"`
	Loaded        int      `json:"loaded"`
	Skipped       int      `json:"skipped"`
	DroppedNested int      `json:"droppedNested"`
	Errors        []string `json:"errors,omitempty"`
}

func (r *LoadReport) skip(format string, args ...any) {
	r.Skipped++
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	}
}

type Client struct {
	httpClient   *http.Client
	url          string
	path         string
	allowedHosts []string
	retries      int
	backoff      time.Duration
	selectors    SelectorConfig
	validate     *validator.Validator
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		url:          cfg.DatasetURL,
		path:         cfg.DatasetPath,
		allowedHosts: cfg.AllowedDatasetHosts,
		retries:      cfg.FetchRetries,
		backoff:      time.Second,
		selectors:    LoadSelectorConfig(cfg.SelectorsPath),
		validate:     validator.New(),
	}
}

// Load fetches the dataset from DATASET_URL, falling back to DATASET_PATH
// when the fetch fails or no URL is configured.
func (c *Client) Load(ctx context.Context) ([]models.ToolRecord, LoadReport, error) {
	var fetchErr error
	if c.url != "" {
		data, contentType, err := c.fetchWithRetry(ctx)
		if err == nil {
			recs, report, err := c.Decode(data, contentType)
			report.Source = c.url
			return recs, report, err
		}
		if ctx.Err() != nil {
			return nil, LoadReport{Source: c.url}, ctx.Err()
		}
		fetchErr = err
		slog.Warn("Dataset fetch failed", "url", c.url, "error", err)
	}
	if c.path == "" {
		return nil, LoadReport{Source: c.url}, fmt.Errorf("failed to load dataset: %w", fetchErr)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if fetchErr != nil {
			return nil, LoadReport{Source: c.path}, fmt.Errorf("failed to load dataset: %w", errors.Join(fetchErr, err))
		}
		return nil, LoadReport{Source: c.path}, fmt.Errorf("failed to read dataset file: %w", err)
	}
	recs, report, err := c.Decode(data, "")
	report.Source = c.path
	return recs, report, err
}

func (c *Client) fetchWithRetry(ctx context.Context) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := util.RetryWithBackoffBase(ctx, c.retries, c.backoff, func(attempt int) error {
		var err error
		data, contentType, err = c.fetch(ctx, c.url)
		if err != nil && attempt < c.retries {
			slog.Info("Dataset fetch attempt failed", "attempt", attempt+1, "error", err)
		}
		return err
	})
	return data, contentType, err
}

func (c *Client) fetch(ctx context.Context, urlStr string) ([]byte, string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse URL %s: %w", urlStr, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, "", fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	hostname := parsedURL.Hostname()
	allowed := false
	for _, domain := range c.allowedHosts {
		if hostname == domain {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", fmt.Errorf("security violation: URL hostname %s is not in allowlist", hostname)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request for URL %s: %w", urlStr, err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.8")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch URL %s: status code %d", urlStr, res.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body of %s: %w", urlStr, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, "", fmt.Errorf("dataset at %s exceeds %d bytes", urlStr, maxDocumentBytes)
	}
	return data, res.Header.Get("Content-Type"), nil
}

// Decode parses a dataset document. It accepts a JSON array of records, an
// object wrapping the array under the configured key, or an HTML page that
// embeds either in a script element (or lists tools as schema.org JSON-LD).
// Malformed records are skipped and counted, never fatal.
func (c *Client) Decode(data []byte, contentType string) ([]models.ToolRecord, LoadReport, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("\xef\xbb\xbf"))
	if len(data) == 0 {
		return nil, LoadReport{}, ErrEmptyDataset
	}

	switch {
	case data[0] == '[':
		return c.decodeArray(data, "json-array")
	case data[0] == '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, LoadReport{}, fmt.Errorf("failed to parse dataset object: %w", err)
		}
		inner, ok := wrapper[c.selectors.RecordsKey]
		if !ok {
			return nil, LoadReport{}, fmt.Errorf("dataset object has no %q key", c.selectors.RecordsKey)
		}
		return c.decodeArray(inner, "json-object")
	case data[0] == '<' || strings.Contains(contentType, "html"):
		return c.decodeHTML(data)
	default:
		return nil, LoadReport{}, fmt.Errorf("unrecognised dataset format (content type %q)", contentType)
	}
}

func (c *Client) decodeHTML(data []byte) ([]models.ToolRecord, LoadReport, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to parse HTML dataset: %w", err)
	}

	if script := doc.Find(c.selectors.DataScript).First(); script.Length() > 0 {
		inner := []byte(strings.TrimSpace(script.Text()))
		if len(inner) > 0 && (inner[0] == '[' || inner[0] == '{') {
			recs, report, err := c.Decode(inner, "application/json")
			report.Format = "html-embedded"
			return recs, report, err
		}
	}

	if c.selectors.JSONLDScript == "" {
		return nil, LoadReport{Format: "html"}, fmt.Errorf("no %q element found in HTML dataset", c.selectors.DataScript)
	}
	return c.decodeJSONLD(doc)
}

func (c *Client) decodeJSONLD(doc *goquery.Document) ([]models.ToolRecord, LoadReport, error) {
	report := LoadReport{Format: "html-jsonld"}
	var recs []models.ToolRecord
	seen := make(map[string]bool)

	doc.Find(c.selectors.JSONLDScript).Each(func(_ int, s *goquery.Selection) {
		var list jsonLDItemList
		if err := json.Unmarshal([]byte(s.Text()), &list); err != nil || list.Type != "ItemList" {
			return
		}
		for i, item := range list.ItemListElement {
			report.Total++
			rec := item.Item.toRecord()
			if _, err := c.validate.CleanTool(&rec); err != nil {
				report.skip("jsonld item %d: %v", i, err)
				continue
			}
			if seen[rec.ID] {
				report.skip("jsonld item %d: duplicate id %q", i, rec.ID)
				continue
			}
			seen[rec.ID] = true
			recs = append(recs, rec)
		}
	})
	report.Loaded = len(recs)
	if report.Total == 0 {
		return nil, report, fmt.Errorf("no %q or JSON-LD ItemList found in HTML dataset", c.selectors.DataScript)
	}
	if len(recs) == 0 {
		return nil, report, ErrEmptyDataset
	}
	return recs, report, nil
}

func (c *Client) decodeArray(data []byte, format string) ([]models.ToolRecord, LoadReport, error) {
	report := LoadReport{Format: format}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, report, fmt.Errorf("failed to parse dataset array: %w", err)
	}
	report.Total = len(raws)

	recs := make([]models.ToolRecord, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for i, raw := range raws {
		var rec models.ToolRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			report.skip("record %d: %v", i, err)
			continue
		}
		dropped, err := c.validate.CleanTool(&rec)
		if err != nil {
			report.skip("record %d: %v", i, err)
			continue
		}
		if seen[rec.ID] {
			report.skip("record %d: duplicate id %q", i, rec.ID)
			continue
		}
		seen[rec.ID] = true
		report.DroppedNested += dropped
		recs = append(recs, rec)
	}
	report.Loaded = len(recs)

	if report.Skipped > 0 {
		slog.Warn("Skipped malformed dataset records", "skipped", report.Skipped, "total", report.Total)
	}
	if len(recs) == 0 {
		return nil, report, ErrEmptyDataset
	}
	return recs, report, nil
}
