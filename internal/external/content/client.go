package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

// ErrPageNotFound is returned when the content API has no page for a slug
var ErrPageNotFound = errors.New("page not found")

// Client fetches landing page copy from the content API
// ⭐ SSOT: 페이지 문구 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a content API client
func NewClient(baseURL string, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("content"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type pageResponse struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Sections []struct {
		Key   string `json:"key"`
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"sections"`
}

// FetchPage downloads one page and derives plain text for each section
func (c *Client) FetchPage(ctx context.Context, slug string) (*contracts.PageCopy, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("content API not configured")
	}

	endpoint := fmt.Sprintf("%s/pages/%s", c.baseURL, url.PathEscape(slug))

	var resp pageResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		if httputil.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%s: %w", slug, ErrPageNotFound)
		}
		return nil, fmt.Errorf("fetch page %s: %w", slug, err)
	}

	page := &contracts.PageCopy{
		Slug:     resp.Slug,
		Title:    resp.Title,
		Sections: make([]contracts.PageSection, 0, len(resp.Sections)),
	}
	if page.Slug == "" {
		page.Slug = slug
	}

	for _, s := range resp.Sections {
		text, err := PlainText(s.Body)
		if err != nil {
			c.logger.WithError(err).WithField("section", s.Key).Warn("Failed to parse section HTML")
			text = s.Body
		}
		page.Sections = append(page.Sections, contracts.PageSection{
			Key:   s.Key,
			Title: s.Title,
			HTML:  s.Body,
			Text:  text,
		})
	}

	return page, nil
}

// PlainText extracts readable text from an HTML fragment, collapsing
// whitespace and dropping script/style content.
func PlainText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, li, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
