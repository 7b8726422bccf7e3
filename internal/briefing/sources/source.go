// Package sources defines the trend data source interface and the two source
// kinds the briefing collects from: structured open-data APIs and scraped
// HTML boards.
package sources

import (
	"context"
	"errors"
	"time"
)

// Placeholders substituted for missing fields.
const (
	TitlePlaceholder   = "제목 없음"
	ContentPlaceholder = "본문을 찾을 수 없습니다."
)

// ErrNoCredentials is returned by a source that needs an API key it was not given.
// No network call is made in that case.
var ErrNoCredentials = errors.New("sources: credentials not configured")

// TrendItem is one normalised (title, content) record from a source.
type TrendItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Source is implemented by every trend data source.
type Source interface {
	// Name returns the human-readable name used in section banners.
	Name() string

	// Fetch returns at most maxItems items published inside window.
	// An empty result is (nil, nil).
	Fetch(ctx context.Context, window DateRange, maxItems int) ([]TrendItem, error)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastNDays returns the range from n days before now up to now.
func LastNDays(now time.Time, n int) DateRange {
	return DateRange{From: now.AddDate(0, 0, -n), To: now}
}

// FromParam formats the start day as yyyyMMdd.
func (r DateRange) FromParam() string { return r.From.Format("20060102") }

// ToParam formats the end day as yyyyMMdd.
func (r DateRange) ToParam() string { return r.To.Format("20060102") }

// Contains reports whether the calendar day of t falls inside the range.
// Only the year, month and day of t are compared.
func (r DateRange) Contains(t time.Time) bool {
	loc := r.From.Location()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
	to := r.To.In(loc)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	return !day.Before(from) && !day.After(to)
}

func (r DateRange) String() string {
	return r.FromParam() + "-" + r.ToParam()
}
