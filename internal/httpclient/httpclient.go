// Package httpclient builds the shared *http.Client every zoedl component
// downloads through, and owns the refcounted process-wide transport
// init/teardown that GlobalInit/GlobalUnInit expose to callers.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/zoedl/zoedl/internal/model"
)

const (
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
)

var (
	mu       sync.Mutex
	refcount int
	shared   *http.Transport
)

// GlobalInit brings the shared transport up on the first call and is a
// no-op (besides incrementing the refcount) on subsequent calls. Every
// call must be matched by a GlobalUnInit.
func GlobalInit() {
	mu.Lock()
	defer mu.Unlock()
	refcount++
	if shared == nil {
		shared = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          maxIdleConns,
			MaxIdleConnsPerHost:   maxIdleConnsPerHost,
			IdleConnTimeout:       idleConnTimeout,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		}
	}
}

// GlobalUnInit decrements the refcount and tears the shared transport's
// idle connections down once the last caller has unwound.
func GlobalUnInit() {
	mu.Lock()
	defer mu.Unlock()
	if refcount == 0 {
		return
	}
	refcount--
	if refcount == 0 && shared != nil {
		shared.CloseIdleConnections()
		shared = nil
	}
}

// New builds an *http.Client for one download, honoring the per-Config
// proxy, CA, cookie and TLS settings. GlobalInit must have been called
// at least once before this returns a client with a live transport.
func New(cfg model.Config, connTimeout time.Duration) (*http.Client, error) {
	mu.Lock()
	base := shared
	mu.Unlock()
	if base == nil {
		return nil, fmt.Errorf("httpclient: GlobalInit was not called")
	}

	tr := base.Clone()
	tr.DialContext = (&netDialer{timeout: connTimeout}).DialContext

	tlsCfg := &tls.Config{InsecureSkipVerify: !cfg.VerifyHostEnabled && !cfg.VerifyCAEnabled} //nolint:gosec
	if cfg.VerifyCAEnabled {
		tlsCfg.InsecureSkipVerify = false
		if cfg.CAPath != "" {
			pool, err := loadCAPool(cfg.CAPath)
			if err != nil {
				return nil, err
			}
			tlsCfg.RootCAs = pool
		}
	}
	tr.TLSClientConfig = tlsCfg

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid proxy %q: %w", cfg.Proxy, err)
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: tr}

	if cfg.CookieList != "" {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	return client, nil
}

// ApplyHeaders sets the configured extra headers on req, preserving
// per-key insertion order, then the cookie list and a default User-Agent
// if none was supplied.
func ApplyHeaders(req *http.Request, cfg model.Config) {
	for k, vs := range cfg.HTTPHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if cfg.CookieList != "" {
		req.Header.Set("Cookie", cfg.CookieList)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "zoedl/1")
	}
	req.Header.Set("Accept-Encoding", "identity")
}
