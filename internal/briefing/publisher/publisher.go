// Package publisher posts finished articles to the blog platform.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// PlatformTistory is the only supported blog platform.
const PlatformTistory = "tistory"

const (
	// VisibilityPublic publishes the entry immediately on the manage endpoint.
	VisibilityPublic = 20

	maxSloganRunes = 60
	postPath       = "/manage/post.json"
)

var (
	// ErrNoCategory is returned when the language has no category mapping.
	ErrNoCategory = errors.New("publisher: no category for language")
	// ErrNoCredentials is returned when the blog host or session cookie is missing.
	ErrNoCredentials = errors.New("publisher: blog host or session cookie not configured")
)

// Config holds blog publishing configuration.
type Config struct {
	Platform      string         `yaml:"platform" env:"BLOG_PLATFORM"`
	Host          string         `yaml:"host" env:"TISTORY_BLOG_HOST"`
	BaseURL       string         `yaml:"base_url"` // overrides https://{host}
	SessionCookie string         `yaml:"-" env:"TISTORY_SESSION_COOKIE"`
	Visibility    int            `yaml:"visibility"`
	Tags          []string       `yaml:"tags"`
	Categories    map[string]int `yaml:"categories"` // per-language overrides
	Timeout       time.Duration  `yaml:"timeout"`
}

// DefaultConfig returns publishing defaults.
func DefaultConfig() Config {
	return Config{
		Platform:   PlatformTistory,
		Visibility: VisibilityPublic,
		Tags:       []string{"북한", "북한동향", "주간브리핑"},
		Timeout:    30 * time.Second,
	}
}

// Post is an article ready for publishing.
type Post struct {
	Title    string
	HTMLBody string
	Language string
}

// Result is a successful publish.
type Result struct {
	PostURL string `json:"post_url"`
}

// Publisher writes posts through the blog's cookie-authenticated manage endpoint.
type Publisher struct {
	cfg        Config
	categories map[string]int
	http       *http.Client
	logger     *slog.Logger
}

// New creates a publisher. categories maps language codes to blog categories.
func New(cfg Config, categories map[string]int) (*Publisher, error) {
	if cfg.Platform == "" {
		cfg.Platform = PlatformTistory
	}
	if !strings.EqualFold(cfg.Platform, PlatformTistory) {
		return nil, fmt.Errorf("unsupported blog platform: %s", cfg.Platform)
	}
	if cfg.Visibility == 0 {
		cfg.Visibility = VisibilityPublic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Publisher{
		cfg:        cfg,
		categories: categories,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}, nil
}

type tistoryPost struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Content               string   `json:"content"`
	Slogan                string   `json:"slogan"`
	Visibility            int      `json:"visibility"`
	Category              int      `json:"category"`
	Tag                   string   `json:"tag"`
	Published             int      `json:"published"`
	Password              string   `json:"password"`
	UselessMarginForEntry int      `json:"uselessMarginForEntry"`
	DaumLike              string   `json:"daumLike"`
	CclCommercial         int      `json:"cclCommercial"`
	CclDerive             int      `json:"cclDerive"`
	Type                  string   `json:"type"`
	Attachments           []string `json:"attachments"`
	RecaptchaValue        string   `json:"recaptchaValue"`
	DraftSequence         *int     `json:"draftSequence"`
}

type tistoryResponse struct {
	EntryURL string `json:"entryUrl"`
}

// Publish submits post. Configuration problems fail fast with ErrNoCategory or
// ErrNoCredentials before any request is made. A transport failure returns an
// error. An HTTP error status or a response without an entry URL is logged and
// reported as (nil, nil).
func (p *Publisher) Publish(ctx context.Context, post Post) (*Result, error) {
	category, ok := p.categories[post.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoCategory, post.Language)
	}
	endpoint := p.endpoint()
	if endpoint == "" || p.cfg.SessionCookie == "" {
		return nil, ErrNoCredentials
	}

	body, err := json.Marshal(tistoryPost{
		ID:                    "0",
		Title:                 post.Title,
		Content:               post.HTMLBody,
		Slogan:                Slogan(post.Title),
		Visibility:            p.cfg.Visibility,
		Category:              category,
		Tag:                   strings.Join(p.cfg.Tags, ","),
		Published:             1,
		UselessMarginForEntry: 1,
		DaumLike:              "401",
		Type:                  "post",
		Attachments:           []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", cookieHeader(p.cfg.SessionCookie))

	p.logger.Info("publishing post", "language", post.Language, "category", category, "title", post.Title)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("blog rejected post", "language", post.Language, "status", resp.StatusCode, "body", string(respBody))
		return nil, nil
	}

	var out tistoryResponse
	if err := json.Unmarshal(respBody, &out); err != nil || out.EntryURL == "" {
		p.logger.Error("unexpected blog response", "language", post.Language, "status", resp.StatusCode, "body", string(respBody))
		return nil, nil
	}

	p.logger.Info("post published", "language", post.Language, "url", out.EntryURL)
	return &Result{PostURL: out.EntryURL}, nil
}

func (p *Publisher) endpoint() string {
	if p.cfg.BaseURL != "" {
		return strings.TrimSuffix(p.cfg.BaseURL, "/") + postPath
	}
	if p.cfg.Host == "" {
		return ""
	}
	return "https://" + p.cfg.Host + postPath
}

// cookieHeader accepts either a full Cookie header or a bare TSSESSION value.
func cookieHeader(session string) string {
	session = strings.TrimSpace(session)
	if strings.Contains(session, "=") {
		return session
	}
	return "TSSESSION=" + session
}

// Slogan derives the entry URL slug from a title: ASCII letters are lower
// cased, Hangul and digits kept, runs of anything else become one dash.
func Slogan(title string) string {
	var sb strings.Builder
	dash := false
	n := 0
	for _, r := range title {
		if n >= maxSloganRunes {
			break
		}
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(unicode.ToLower(r))
		case unicode.Is(unicode.Hangul, r), unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
				n++
			}
			continue
		}
		dash = false
		n++
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "briefing"
	}
	return slug
}
