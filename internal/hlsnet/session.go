// Package hlsnet manages the HTTP session shared across a track download:
// headers, cookies, and proxy. Grounded on devine's sessions.py pattern of
// localizing a proxy onto a copy of the session before a download pass,
// rather than mutating a shared session in place.
package hlsnet

import (
	"net/http"
	"net/url"
	"time"
)

// Session wraps an *http.Client plus the header/cookie state carried across
// requests for one track's downloads. Session values are cheap to copy;
// WithProxy always returns a new Session rather than mutating the receiver,
// so a proxy picked up for one DRM/key fetch never leaks into a sibling
// track's requests.
type Session struct {
	Headers http.Header
	proxy   *url.URL
	client  *http.Client
}

// NewSession builds a Session with an empty header set and the default
// transport.
func NewSession() Session {
	return Session{
		Headers: make(http.Header),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithProxy returns a copy of the session whose transport routes through
// proxyURL. An empty proxyURL is a no-op copy, matching the "localized
// before Phase 1" rule from the concurrency model: callers that never set
// a proxy never pay for a transport swap.
func (s Session) WithProxy(proxyURL string) Session {
	if proxyURL == "" {
		return s
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return s
	}

	next := s
	next.proxy = parsed
	next.client = &http.Client{
		Timeout: s.client.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(parsed),
		},
	}
	return next
}

// Client returns the *http.Client backing this session.
func (s Session) Client() *http.Client {
	return s.client
}

// ProxyURL reports the proxy currently scoped onto this session, or nil.
func (s Session) ProxyURL() *url.URL {
	return s.proxy
}

// NewRequest builds an HTTP request with the given method, carrying the
// session's headers.
func (s Session) NewRequest(method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range s.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
