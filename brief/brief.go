// Package brief turns user input into a campaign prompt. A brief can be
// literal text, a text or HTML file, or a product page URL, which is fetched
// and reduced to markdown.
package brief

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultPrompt is used when no brief is given.
const DefaultPrompt = "Eco-friendly water bottle made with sustainable bamboo, keeps drinks cold for 24 hours"

// DefaultMaxChars bounds the prompt length taken from files and pages.
const DefaultMaxChars = 1500

// ErrEmpty is returned for a file or page with no usable text.
var ErrEmpty = errors.New("brief is empty")

// Source says where a brief came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceText    Source = "text"
	SourceFile    Source = "file"
	SourceURL     Source = "url"
)

// Brief is a resolved campaign prompt.
type Brief struct {
	Prompt string
	Source Source

	// Origin is the file path or URL for file and URL briefs.
	Origin string

	// Title is the page title for URL and HTML briefs.
	Title string
}

// Loader resolves briefs.
type Loader struct {
	client       *http.Client
	allowPrivate bool
	maxChars     int
	maxPageSize  int64
	conv         *converter
	logger       *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the SSRF-guarded client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithAllowPrivate lifts the URL checks so local and plain HTTP pages can be
// loaded. Meant for tests and trusted intranets.
func WithAllowPrivate() Option {
	return func(l *Loader) {
		l.allowPrivate = true
	}
}

// WithMaxChars bounds the prompt length in characters.
func WithMaxChars(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxChars = n
		}
	}
}

// WithMaxPageSize bounds the downloaded page size in bytes.
func WithMaxPageSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxPageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		maxChars:    DefaultMaxChars,
		maxPageSize: defaultMaxPageSize,
		conv:        newConverter(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.client == nil {
		l.client = newSafeClient(defaultFetchTimeout)
	}
	return l
}

// Load resolves input: "" gives the default prompt, an http(s) URL is
// fetched, an existing file is read, and anything else is the prompt itself.
func (l *Loader) Load(ctx context.Context, input string) (*Brief, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return &Brief{Prompt: DefaultPrompt, Source: SourceDefault}, nil
	case strings.HasPrefix(input, "https://"), strings.HasPrefix(input, "http://"):
		return l.LoadURL(ctx, input)
	}

	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		return l.LoadFile(ctx, input)
	}
	return &Brief{Prompt: l.truncate(input), Source: SourceText}, nil
}

// LoadFile reads a brief from a text, markdown or HTML file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Brief, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brief: %w", err)
	}

	b := &Brief{Source: SourceFile, Origin: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := l.conv.Convert(data)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
		b.Title = page.Title
		b.Prompt = l.pagePrompt(page)
	default:
		b.Prompt = l.truncate(strings.TrimSpace(string(data)))
	}

	if b.Prompt == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return b, nil
}

// LoadURL fetches a product page and builds a brief from it.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (*Brief, error) {
	body, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}
	page, err := l.conv.Convert(body)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", rawURL, err)
	}

	prompt := l.pagePrompt(page)
	if prompt == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, rawURL)
	}

	l.logger.Debug("Loaded product page brief",
		"url", rawURL,
		"title", page.Title,
		"chars", utf8.RuneCountInString(prompt))

	return &Brief{
		Prompt: prompt,
		Source: SourceURL,
		Origin: rawURL,
		Title:  page.Title,
	}, nil
}

// pagePrompt puts the title and description first so they survive truncation.
func (l *Loader) pagePrompt(p *Page) string {
	var parts []string
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Description != "" && p.Description != p.Title {
		parts = append(parts, p.Description)
	}
	if p.Markdown != "" {
		parts = append(parts, p.Markdown)
	}
	return l.truncate(strings.Join(parts, "\n\n"))
}

func (l *Loader) truncate(s string) string {
	if utf8.RuneCountInString(s) <= l.maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:l.maxChars]))
}
