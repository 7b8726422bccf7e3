// Package summarizer turns the aggregated trend text into a titled HTML
// article using a persona-specific prompt, and optionally illustrates it.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/RobinCoderZhao/nk-briefing/internal/metrics"
	"github.com/RobinCoderZhao/nk-briefing/pkg/llm"
	"github.com/RobinCoderZhao/nk-briefing/pkg/scraper"
)

// Fixed article texts.
const (
	EmptyInputBody = "<p>요약할 텍스트가 없습니다.</p>"
	ErrorTitle     = "[오류]"

	imagePromptSuffix = " realistic news photo style, high quality, 4k, photograph, news style"
	imageExcerptRunes = 300
)

var (
	// ErrGeneration wraps failures of the text generation call.
	ErrGeneration = errors.New("summarizer: text generation failed")
	// ErrEmptyBody is returned when the response leaves no readable body
	// after sanitising.
	ErrEmptyBody = errors.New("summarizer: article body is empty")
)

var (
	blockTagRe  = regexp.MustCompile(`(?i)<(p|div|ul|ol)[\s>]`)
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// ImageConfig controls article illustration.
type ImageConfig struct {
	Enabled  bool   `yaml:"enabled" env:"IMAGE_ENABLED"`
	Model    string `yaml:"model" env:"IMAGE_MODEL"`
	Size     string `yaml:"size" env:"IMAGE_SIZE"`
	WithBody bool   `yaml:"with_body"` // seed the prompt with a body excerpt too
}

// Config holds generation parameters.
type Config struct {
	Temperature float64     `yaml:"temperature"`
	MaxTokens   int         `yaml:"max_tokens"`
	Image       ImageConfig `yaml:"image"`
}

// DefaultConfig returns the generation defaults.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.7,
		MaxTokens:   1500,
		Image: ImageConfig{
			Enabled: true,
			Model:   "dall-e-3",
			Size:    "1024x1024",
		},
	}
}

// Article is the generated briefing for one language.
type Article struct {
	Language string `json:"language"`
	Title    string `json:"title"`
	HTMLBody string `json:"html_body"`
	ImageURL string `json:"image_url,omitempty"`
}

// Summarizer produces articles from aggregated text.
type Summarizer struct {
	cfg    Config
	text   llm.Client
	images llm.ImageClient
	policy *bluemonday.Policy
	now    func() time.Time
	logger *slog.Logger
}

// New creates a summarizer. images may be nil, which disables illustration.
func New(cfg Config, text llm.Client, images llm.ImageClient) *Summarizer {
	def := DefaultConfig()
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Summarizer{
		cfg:    cfg,
		text:   text,
		images: images,
		policy: bluemonday.UGCPolicy(),
		now:    time.Now,
		logger: slog.Default(),
	}
}

// DefaultTitle is the title used when the response has no usable markers.
func DefaultTitle(now time.Time) string {
	return now.Format("2006-01-02") + " News Summary"
}

// Summarize generates an article for lang. Blank text returns the fixed
// empty-input article without calling the model. When text generation fails
// the placeholder error article is returned together with an error wrapping
// ErrGeneration.
func (s *Summarizer) Summarize(ctx context.Context, text, lang string) (*Article, error) {
	p := ProfileFor(lang)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &Article{Language: string(p.Code), Title: "", HTMLBody: EmptyInputBody}, nil
	}

	s.logger.Info("generating article", "language", p.Code, "persona", p.PersonaName, "input_chars", utf8.RuneCountInString(trimmed))

	resp, err := s.text.Generate(ctx, &llm.Request{
		System:      p.SystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: p.UserPromptTemplate + "데이터:\n" + trimmed}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.logger.Error("article generation failed", "language", p.Code, "error", err)
		return &Article{
			Language: string(p.Code),
			Title:    ErrorTitle,
			HTMLBody: fmt.Sprintf("<p>[글 생성 실패] %s</p>", html.EscapeString(err.Error())),
		}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	metrics.RecordTokens(resp.TokensIn, resp.TokensOut)
	s.logger.Info("article generated",
		"language", p.Code,
		"chars", utf8.RuneCountInString(resp.Content),
		"tokens_in", resp.TokensIn,
		"tokens_out", resp.TokensOut,
		"cost", resp.Cost,
		"latency_ms", resp.LatencyMs,
	)

	title, body, ok := splitResponse(resp.Content, p)
	if !ok {
		s.logger.Warn("title/body markers not found, using whole response as body", "language", p.Code)
	}
	if title == "" {
		title = DefaultTitle(s.now())
	}

	article := &Article{
		Language: string(p.Code),
		Title:    title,
		HTMLBody: s.policy.Sanitize(wrapHTML(body)),
	}
	if !HasText(article.HTMLBody) {
		s.logger.Error("article body is empty", "language", p.Code, "response_chars", utf8.RuneCountInString(resp.Content))
		return article, ErrEmptyBody
	}
	s.illustrate(ctx, article)
	return article, nil
}

func (s *Summarizer) illustrate(ctx context.Context, article *Article) {
	if s.images == nil || !s.cfg.Image.Enabled {
		return
	}

	prompt := article.Title + imagePromptSuffix
	if s.cfg.Image.WithBody {
		if ex := excerpt(scraper.ExtractText(article.HTMLBody), imageExcerptRunes); ex != "" {
			prompt += ". " + ex
		}
	}

	img, err := s.images.GenerateImage(ctx, &llm.ImageRequest{
		Prompt: prompt,
		Model:  s.cfg.Image.Model,
		Size:   s.cfg.Image.Size,
	})
	if err != nil {
		s.logger.Error("image generation failed", "language", article.Language, "error", err)
		metrics.RecordImage("failed")
		return
	}
	metrics.RecordImage("ok")
	s.logger.Info("image generated", "language", article.Language, "url", img.URL)

	article.ImageURL = img.URL
	article.HTMLBody += fmt.Sprintf(`<figure><img src="%s" alt="%s"/><figcaption>%s</figcaption></figure>`,
		html.EscapeString(img.URL), html.EscapeString(article.Title), html.EscapeString(article.Title))
}

// splitResponse locates the title and body markers in order. When both are
// present the title is the span between them and the body is the rest, with
// surrounding brackets removed. Otherwise the whole response is the body.
func splitResponse(content string, p LanguageProfile) (title, body string, ok bool) {
	content = strings.TrimSpace(content)

	ti := strings.Index(content, p.TitleMarker)
	bi := strings.Index(content, p.BodyMarker)
	if ti < 0 || bi < ti+len(p.TitleMarker) {
		return "", stripCodeFence(content), false
	}

	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(content[ti+len(p.TitleMarker):bi]), "[]"))
	body = strings.TrimSpace(strings.Trim(strings.TrimSpace(content[bi+len(p.BodyMarker):]), "[]"))
	return title, stripCodeFence(body), true
}

func stripCodeFence(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// HasText reports whether htmlBody renders any visible text.
func HasText(htmlBody string) bool {
	return strings.TrimSpace(scraper.ExtractText(htmlBody)) != ""
}

// wrapHTML guarantees one container element; plain text gets <br/> line breaks.
func wrapHTML(body string) string {
	if !blockTagRe.MatchString(body) {
		return "<div>" + strings.ReplaceAll(body, "\n", "<br/>") + "</div>"
	}
	return "<div>" + body + "</div>"
}

func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
