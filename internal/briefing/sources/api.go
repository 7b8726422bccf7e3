package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RobinCoderZhao/nk-briefing/pkg/scraper"
)

const defaultMaxItems = 30

// Extractor maps one provider record to a title and content.
type Extractor func(record map[string]any) (title, content string)

// FieldExtractor reads titleField and contentField from a record. Content is
// cut to limit runes with a trailing "..." when limit > 0, and placeholder is
// used when the content field is absent or blank. Markup in content is reduced
// to plain text.
func FieldExtractor(titleField, contentField string, limit int, placeholder string) Extractor {
	return func(record map[string]any) (string, string) {
		title := stringField(record, titleField)
		if title == "" {
			title = TitlePlaceholder
		}

		content := stringField(record, contentField)
		if strings.ContainsRune(content, '<') {
			content = scraper.ExtractText(content)
		}
		if content == "" {
			return title, placeholder
		}
		return title, truncateRunes(content, limit)
	}
}

// APIConfig describes one structured open-data endpoint.
type APIConfig struct {
	Name         string            `yaml:"name"`
	URL          string            `yaml:"url"`
	APIKey       string            `yaml:"-"`
	ExtraParams  map[string]string `yaml:"extra_params"`
	TitleField   string            `yaml:"title_field"`
	ContentField string            `yaml:"content_field"`
	ContentLimit int               `yaml:"content_limit"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// APISource fetches trend records from a JSON open-data API.
type APISource struct {
	cfg     APIConfig
	extract Extractor
	client  *http.Client
	logger  *slog.Logger
}

var _ Source = (*APISource)(nil)

// NewAPISource creates an API source. A nil extractor falls back to a
// FieldExtractor built from the config fields.
func NewAPISource(cfg APIConfig, extract Extractor) *APISource {
	if cfg.TitleField == "" {
		cfg.TitleField = "title"
	}
	if cfg.ContentField == "" {
		cfg.ContentField = "content"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if extract == nil {
		extract = FieldExtractor(cfg.TitleField, cfg.ContentField, cfg.ContentLimit, ContentPlaceholder)
	}
	return &APISource{
		cfg:     cfg,
		extract: extract,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  slog.Default(),
	}
}

func (s *APISource) Name() string { return s.cfg.Name }

// Fetch queries the API for the window and extracts each record.
func (s *APISource) Fetch(ctx context.Context, window DateRange, maxItems int) ([]TrendItem, error) {
	if s.cfg.APIKey == "" {
		return nil, ErrNoCredentials
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	reqURL, err := s.buildURL(window, maxItems)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", s.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", s.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", s.cfg.Name, resp.StatusCode, snippet(body))
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", s.cfg.Name, err)
	}
	if len(records) > maxItems {
		records = records[:maxItems]
	}

	var items []TrendItem
	for _, rec := range records {
		title, content := s.extract(rec)
		items = append(items, TrendItem{Title: title, Content: content, Source: s.cfg.Name})
	}

	s.logger.Debug("api source fetched", "source", s.cfg.Name, "window", window.String(), "items", len(items))
	return items, nil
}

func (s *APISource) buildURL(window DateRange, maxItems int) (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse %s url: %w", s.cfg.Name, err)
	}

	q := u.Query()
	q.Set("serviceKey", s.cfg.APIKey)
	q.Set("pageNo", "1")
	q.Set("numOfRows", strconv.Itoa(maxItems))
	q.Set("bgng_ymd", window.FromParam())
	q.Set("end_ymd", window.ToParam())
	q.Set("dataType", "JSON")
	for k, v := range s.cfg.ExtraParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// envelope accepts both {"items": ...} and the data.go.kr
// {"response": {"header": ..., "body": {"items": {"item": ...}}}} shapes.
type envelope struct {
	Items    json.RawMessage `json:"items"`
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func decodeRecords(body []byte) ([]map[string]any, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	if code := env.Response.Header.ResultCode; code != "" && code != "00" && code != "0" {
		return nil, fmt.Errorf("result code %s: %s", code, env.Response.Header.ResultMsg)
	}

	raw := env.Items
	if isEmptyJSON(raw) {
		raw = env.Response.Body.Items
	}
	return decodeItems(raw)
}

// decodeItems handles an array of records, a single record, or an object
// wrapping either under "item".
func decodeItems(raw json.RawMessage) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if isEmptyJSON(raw) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		if inner, ok := obj["item"]; ok {
			return decodeItems(inner)
		}
		var rec map[string]any
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return []map[string]any{rec}, nil
	default:
		return nil, fmt.Errorf("unexpected items value %s", snippet(raw))
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}

func stringField(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
