package scholar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	"golang.org/x/time/rate"
)

const (
	// Scholar throttles aggressively; keep well under one page a second.
	pageInterval = 3 * time.Second

	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// HTTPBrowser is a plain-HTTP Browser. It fetches pages with a desktop
// user agent and a conservative rate limit. Scholar serves full HTML
// without JavaScript, so no real browser is needed until a CAPTCHA
// appears, at which point the session state machine takes over.
type HTTPBrowser struct {
	http    *pester.Client
	limiter *rate.Limiter
}

// NewHTTPBrowser creates the default Browser implementation.
func NewHTTPBrowser() *HTTPBrowser {
	hc := pester.New()
	hc.Backoff = pester.ExponentialBackoff
	hc.MaxRetries = 2
	hc.Timeout = 30 * time.Second

	return &HTTPBrowser{
		http:    hc,
		limiter: rate.NewLimiter(rate.Every(pageInterval), 1),
	}
}

// Navigate fetches url and returns the page HTML.
func (b *HTTPBrowser) Navigate(ctx context.Context, url string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Block pages come back as 403/429 with a CAPTCHA body; return the
	// body so looksBlocked can flip the session state.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusForbidden &&
		resp.StatusCode != http.StatusTooManyRequests {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Close is a no-op; the HTTP client holds no long-lived resources.
func (b *HTTPBrowser) Close() error { return nil }
