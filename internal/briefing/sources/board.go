package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/RobinCoderZhao/nk-briefing/pkg/scraper"
)

var boardDateLayouts = []string{"2006-01-02", "2006.01.02", "2006/01/02"}

// DocumentFetcher loads and parses an HTML page.
type DocumentFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// BoardConfig describes a listing page of a board-style site.
type BoardConfig struct {
	Name            string        `yaml:"name"`
	ListURL         string        `yaml:"list_url"`
	RowSelector     string        `yaml:"row_selector"`
	LinkSelector    string        `yaml:"link_selector"`
	DateColumn      int           `yaml:"date_column"` // td index, negative counts from the end
	ContentSelector string        `yaml:"content_selector"`
	Interval        time.Duration `yaml:"interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// BoardSource scrapes a listing table and follows each matching row to its
// detail page.
type BoardSource struct {
	cfg     BoardConfig
	fetcher DocumentFetcher
	logger  *slog.Logger
}

var _ Source = (*BoardSource)(nil)

// NewBoardSource creates a board source. A nil fetcher gets a paced
// scraper.Fetcher built from the config.
func NewBoardSource(cfg BoardConfig, fetcher DocumentFetcher) *BoardSource {
	if cfg.RowSelector == "" {
		cfg.RowSelector = "table tbody tr"
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = "td a"
	}
	if cfg.DateColumn == 0 {
		cfg.DateColumn = -1
	}
	if cfg.ContentSelector == "" {
		cfg.ContentSelector = ".view_cont"
	}
	if fetcher == nil {
		opts := scraper.DefaultOptions()
		if cfg.Interval > 0 {
			opts.Interval = cfg.Interval
		}
		if cfg.Timeout > 0 {
			opts.Timeout = cfg.Timeout
		}
		fetcher = scraper.NewFetcher(opts)
	}
	return &BoardSource{cfg: cfg, fetcher: fetcher, logger: slog.Default()}
}

func (s *BoardSource) Name() string { return s.cfg.Name }

type boardRow struct {
	title string
	link  string
}

// Fetch reads the listing page, keeps rows dated inside window and reads each
// row's detail page. Only a listing failure fails the source.
func (s *BoardSource) Fetch(ctx context.Context, window DateRange, maxItems int) ([]TrendItem, error) {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	doc, err := s.fetcher.Document(ctx, s.cfg.ListURL)
	if err != nil {
		return nil, fmt.Errorf("%s listing: %w", s.cfg.Name, err)
	}

	base := doc.Url
	if base == nil {
		base, _ = url.Parse(s.cfg.ListURL)
	}

	var rows []boardRow
	doc.Find(s.cfg.RowSelector).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		day, ok := s.rowDate(tr)
		if !ok || !window.Contains(day) {
			return true
		}
		rows = append(rows, s.parseRow(tr, base))
		return len(rows) < maxItems
	})

	var items []TrendItem
	for _, row := range rows {
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
		items = append(items, TrendItem{
			Title:   row.title,
			Content: s.detail(ctx, row.link),
			Source:  s.cfg.Name,
		})
	}

	s.logger.Debug("board source fetched", "source", s.cfg.Name, "window", window.String(), "items", len(items))
	return items, nil
}

func (s *BoardSource) rowDate(tr *goquery.Selection) (time.Time, bool) {
	cells := tr.Find("td")
	if cells.Length() == 0 {
		return time.Time{}, false
	}
	idx := s.cfg.DateColumn
	if idx < 0 {
		idx = cells.Length() + idx
	}
	if idx < 0 || idx >= cells.Length() {
		return time.Time{}, false
	}
	return parseBoardDate(cells.Eq(idx).Text())
}

func (s *BoardSource) parseRow(tr *goquery.Selection, base *url.URL) boardRow {
	link := tr.Find(s.cfg.LinkSelector).First()

	title := strings.Join(strings.Fields(link.Text()), " ")
	if title == "" {
		title = TitlePlaceholder
	}

	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return boardRow{title: title}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return boardRow{title: title}
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return boardRow{title: title, link: ref.String()}
}

func (s *BoardSource) detail(ctx context.Context, link string) string {
	if link == "" {
		return ContentPlaceholder
	}

	doc, err := s.fetcher.Document(ctx, link)
	if err != nil {
		s.logger.Warn("board detail fetch failed", "source", s.cfg.Name, "url", link, "error", err)
		return ContentPlaceholder
	}

	sel := doc.Find(s.cfg.ContentSelector).First()
	if sel.Length() == 0 {
		return ContentPlaceholder
	}
	inner, err := sel.Html()
	if err != nil {
		return ContentPlaceholder
	}
	text := scraper.ExtractText(inner)
	if text == "" {
		return ContentPlaceholder
	}
	return text
}

func parseBoardDate(raw string) (time.Time, bool) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), ".")
	for _, layout := range boardDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
