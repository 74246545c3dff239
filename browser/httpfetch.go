package browser

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/extractor"
	"golang.org/x/net/proxy"
)

// maxBodyBytes caps fetched documents.
const maxBodyBytes = 10 * 1024 * 1024

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// net/http cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// HTTPFetcher performs plain GET requests with a Chrome TLS fingerprint.
// It is used to read business websites without opening a tab.
type HTTPFetcher struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
}

// NewHTTPFetcher creates a fetcher honouring the browser proxy. SOCKS5
// proxies are dialed directly; HTTP proxies go through CONNECT.
func NewHTTPFetcher(cfg config.BrowserConfig, timeout time.Duration) (*HTTPFetcher, error) {
	dialer, err := newDialer(cfg.DefaultProxy)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}
	if u, err := url.Parse(cfg.DefaultProxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		transport.Proxy = http.ProxyURL(u)
	}

	ua := chromeUA
	if len(cfg.UserAgents) > 0 {
		ua = cfg.UserAgents[0]
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent:      ua,
		acceptLanguage: cfg.AcceptLanguage,
	}, nil
}

func newDialer(proxyURL string) (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: 10 * time.Second}
	if proxyURL == "" {
		return direct, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: parse proxy: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return direct, nil
	}

	var auth *proxy.Auth
	if u.User != nil {
		pw, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pw}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, direct)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: socks5: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("httpfetch: socks5 dialer lacks context support")
	}
	return cd, nil
}

// Fetch retrieves target and returns at most 10 MiB of its body.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.acceptLanguage != "" {
		req.Header.Set("Accept-Language", f.acceptLanguage)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, categorizeError(err, "website request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	return body, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}

var reNoscript = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// NeedsBrowser reports whether an HTTP-fetched document likely needs JS
// rendering before contacts can be read from it.
func NeedsBrowser(body []byte) bool {
	text := extractor.VisibleText(string(body))

	// SPA shell: almost no text.
	if len(text) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))
	for _, root := range []string{`<div id="root"></div>`, `<div id="app"></div>`, `<div id="__next"></div>`} {
		if strings.Contains(lower, root) {
			return true
		}
	}
	if reNoscript.MatchString(lower) {
		return true
	}
	return strings.Count(lower, "<script") > 10 && len(text) < 500
}
