package client

import (
	"errors"
	"sync"
	"sync/atomic"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

var ErrProxyBlocked = errors.New("proxy blocked")

// Doer is the part of the HTTP client the vendor API and the webhook channels need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	TimeoutSeconds  int
	Proxies         []string
	FollowRedirects bool
}

type ProxiedClient struct {
	tls_client.HttpClient
	ProxyURL string
}

// CreateClient builds a tls-client with a browser TLS fingerprint, optionally
// routed through proxyURL.
func CreateClient(opts Options, proxyURL string) (*ProxiedClient, error) {
	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeout),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithCookieJar(jar),
	}
	if !opts.FollowRedirects {
		options = append(options, tls_client.WithNotFollowRedirects())
	}
	if proxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(proxyURL))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, err
	}

	return &ProxiedClient{HttpClient: client, ProxyURL: proxyURL}, nil
}

// RotatingClient round-robins over a proxy list and moves on to the next
// proxy when the current one gets blocked.
type RotatingClient struct {
	opts    Options
	mu      sync.Mutex
	proxies []string
	counter uint32
	current *ProxiedClient
}

func NewRotatingClient(opts Options) (*RotatingClient, error) {
	rc := &RotatingClient{
		opts:    opts,
		proxies: append([]string(nil), opts.Proxies...),
	}
	if err := rc.rotate(); err != nil {
		return nil, err
	}
	return rc, nil
}

func (rc *RotatingClient) nextProxy() string {
	if len(rc.proxies) == 0 {
		return ""
	}
	idx := atomic.AddUint32(&rc.counter, 1)
	return rc.proxies[int(idx-1)%len(rc.proxies)]
}

func (rc *RotatingClient) rotate() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	c, err := CreateClient(rc.opts, rc.nextProxy())
	if err != nil {
		return err
	}
	rc.current = c
	return nil
}

// RemoveProxy drops proxyURL from the rotation and returns how many remain.
func (rc *RotatingClient) RemoveProxy(proxyURL string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if proxyURL != "" {
		for i, p := range rc.proxies {
			if p == proxyURL {
				rc.proxies = append(rc.proxies[:i], rc.proxies[i+1:]...)
				break
			}
		}
	}
	return len(rc.proxies)
}

func (rc *RotatingClient) Current() *ProxiedClient {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.current
}

// Do sends req through the current client. A 403 or 429 seen through a proxy
// retires that proxy and reports ErrProxyBlocked; the next call uses a fresh client.
func (rc *RotatingClient) Do(req *http.Request) (*http.Response, error) {
	c := rc.Current()
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if c.ProxyURL != "" && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) {
		resp.Body.Close()
		if rc.RemoveProxy(c.ProxyURL) == 0 {
			rc.mu.Lock()
			rc.proxies = append([]string(nil), rc.opts.Proxies...)
			rc.mu.Unlock()
		}
		if rerr := rc.rotate(); rerr != nil {
			return nil, rerr
		}
		return nil, ErrProxyBlocked
	}

	return resp, nil
}
