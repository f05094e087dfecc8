// Package fetch expands "url" context items into readable page text before
// they are sent to the providers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sozercan/cosilium/apimodels"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxChars = 8000
	maxBodyBytes    = 2 << 20
	userAgent       = "cosilium-context-fetcher/1.0"
	maxRedirects    = 3
)

// ErrBlockedAddress is returned when a fetch would connect to a loopback,
// private, link-local or otherwise non-public address.
var ErrBlockedAddress = errors.New("address is not publicly routable")

// 100.64.0.0/10, carrier-grade NAT.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxChars     int
	allowPrivate bool
	logger       *slog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithAllowPrivate lets the fetcher reach loopback and private networks.
func WithAllowPrivate(allow bool) Option {
	return func(f *Fetcher) { f.allowPrivate = allow }
}

func WithMaxChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxChars = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func New(timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f := &Fetcher{
		timeout:  timeout,
		maxChars: defaultMaxChars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = f.newClient()
	}
	return f
}

// newClient checks every dialed address after resolution, which also covers
// redirects and DNS answers that point into private ranges. Proxies are
// disabled so the dialed address is always the target.
func (f *Fetcher) newClient() *http.Client {
	dialer := &net.Dialer{Timeout: f.timeout}
	if !f.allowPrivate {
		dialer.Control = publicOnly
	}
	return &http.Client{
		Timeout: f.timeout,
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   f.timeout,
			ResponseHeaderTimeout: f.timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       30 * time.Second,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// Enrich returns a copy of items where every url item whose content is a bare
// http(s) link has the page text appended. Items that fail to fetch are
// returned unchanged.
func (f *Fetcher) Enrich(ctx context.Context, items []apimodels.ContextItem) []apimodels.ContextItem {
	out := make([]apimodels.ContextItem, len(items))
	copy(out, items)

	var g errgroup.Group
	g.SetLimit(4)
	for i, item := range out {
		link, ok := fetchable(item)
		if !ok {
			continue
		}
		g.Go(func() error {
			text, err := f.FetchText(ctx, link)
			if err != nil {
				f.logger.Warn("context url fetch failed", "url", link, "error", err)
				return nil
			}
			if text != "" {
				out[i].Content = link + "\n\n" + text
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func fetchable(item apimodels.ContextItem) (string, bool) {
	if item.Type != apimodels.ContextURL {
		return "", false
	}
	link := strings.TrimSpace(item.Content)
	if link == "" || strings.ContainsAny(link, " \t\n") {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return link, true
}

// FetchText downloads an HTML page and returns its title, headings and
// paragraphs as plain text, capped at the configured length.
func (f *Fetcher) FetchText(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return truncate(pageText(doc), f.maxChars), nil
}

func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header").Remove()

	var lines []string
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, title)
	}
	doc.Find("h1, h2, h3, p, li, td").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
