// Package cadastre reads index pages and archives from the open-data cadastre portal.
package cadastre

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/a-ayari03/POOL-AI/internal/core/domain"
)

// Portal is an HTTP client for the cadastre directory listings.
type Portal struct {
	http *http.Client
}

// NewPortal creates a Portal. timeout bounds every request including the
// body download.
func NewPortal(timeout time.Duration) *Portal {
	return &Portal{http: &http.Client{Timeout: timeout}}
}

// FindLink returns the absolute URL of the first anchor whose text contains keyword.
func (p *Portal) FindLink(ctx context.Context, indexURL, keyword string) (string, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return "", fmt.Errorf("parse index url: %w", err)
	}

	body, err := p.Open(ctx, indexURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse index page: %w", err)
	}

	href, ok := findAnchor(doc, keyword)
	if !ok {
		return "", fmt.Errorf("%w: %q on %s", domain.ErrLinkNotFound, keyword, indexURL)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Open issues a GET and returns the response body for streaming.
// The caller closes it.
func (p *Portal) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.UpstreamError{URL: rawURL, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp.Body, nil
}

// findAnchor walks the document in order and returns the first matching href.
func findAnchor(n *html.Node, keyword string) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if href := attr(n, "href"); href != "" && strings.Contains(text(n), keyword) {
			return href, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := findAnchor(c, keyword); ok {
			return href, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
