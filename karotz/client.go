package karotz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiPath          = "/cgi-bin"
	defaultUserAgent = "karotzctl/0.1"
	maxBodyBytes     = 4 << 20
)

// Observer receives one notification per completed device call. Outcome is
// "ok" or the failing ErrorKind rendered with String.
type Observer interface {
	ObserveCall(endpoint, outcome string, elapsed time.Duration)
}

// Client talks to one OpenKarotz rabbit over its CGI API.
type Client struct {
	address   string
	host      string
	baseURL   *url.URL
	apiURL    string
	http      *http.Client
	userAgent string
	log       zerolog.Logger
	observer  Observer

	stateMu sync.RWMutex
	state   State

	// dispatchMu keeps asynchronous callbacks from overlapping.
	dispatchMu sync.Mutex
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. The library sets no timeout of its
// own; a timeout on hc applies to every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger routes request logging to log.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log.With().Str("component", "karotz").Str("device", c.host).Logger()
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithObserver registers a call observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient builds a Client for the rabbit at address (IP or hostname,
// optionally with port or http:// prefix). No request is made.
func NewClient(address string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(address)
	if err != nil {
		return nil, err
	}
	c := &Client{
		address:   address,
		host:      base.Host,
		baseURL:   base,
		apiURL:    base.String() + apiPath,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		log:       zerolog.Nop(),
		state:     DefaultState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the device address exactly as passed to NewClient.
func (c *Client) Address() string {
	return c.address
}

// Host returns the normalized host[:port] requests are sent to.
func (c *Client) Host() string {
	return c.host
}

// URL returns the device web server URL, e.g. http://karotz.
func (c *Client) URL() string {
	return c.baseURL.String()
}

// APIURL returns the device CGI base URL, e.g. http://karotz/cgi-bin.
func (c *Client) APIURL() string {
	return c.apiURL
}

// State returns a copy of the last known device state. It may be stale.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.Clone()
}

func (c *Client) updateState(fn func(*State)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	fn(&c.state)
}

// callAPI issues one GET against endpoint and interprets the result-code
// envelope. query is appended verbatim.
func (c *Client) callAPI(ctx context.Context, endpoint, query string) (*Response, error) {
	start := time.Now()
	body, err := c.get(ctx, endpoint, query)
	if err != nil {
		c.finish(endpoint, start, err)
		return nil, err
	}
	resp, err := decodeResponse(body)
	if err != nil {
		kerr := malformedError(endpoint, err)
		c.finish(endpoint, start, kerr)
		return nil, kerr
	}
	if resp.Return != 0 {
		kerr := &Error{Kind: KindDeviceRejected, Endpoint: endpoint, Message: resp.Msg}
		c.finish(endpoint, start, kerr)
		return nil, kerr
	}
	c.finish(endpoint, start, nil)
	return resp, nil
}

// fetchStatus handles the one endpoint without an envelope.
func (c *Client) fetchStatus(ctx context.Context) (State, error) {
	const endpoint = "status"
	start := time.Now()
	body, err := c.get(ctx, endpoint, "")
	if err != nil {
		c.updateState(func(s *State) { s.Sleep = true })
		c.finish(endpoint, start, err)
		return State{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.updateState(func(s *State) { s.Sleep = true })
		kerr := &Error{Kind: KindDeviceOffline, Endpoint: endpoint, Message: offlineMessage}
		c.finish(endpoint, start, kerr)
		return State{}, kerr
	}
	var st State
	if err := st.UnmarshalJSON(body); err != nil {
		kerr := malformedError(endpoint, err)
		c.finish(endpoint, start, kerr)
		return State{}, kerr
	}
	c.updateState(func(s *State) { *s = st.Clone() })
	c.finish(endpoint, start, nil)
	return st, nil
}

func (c *Client) get(ctx context.Context, endpoint, query string) ([]byte, error) {
	reqURL := c.endpointURL(endpoint, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, transportError(endpoint, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	body, _, err := c.do(endpoint, req)
	return body, err
}

// readImage runs a snapshot_get request, which answers with image bytes
// rather than JSON.
func (c *Client) readImage(req *http.Request) ([]byte, string, error) {
	body, header, err := c.do("snapshot_get", req)
	if err != nil {
		return nil, "", err
	}
	return body, header.Get("Content-Type"), nil
}

func (c *Client) do(endpoint string, req *http.Request) ([]byte, http.Header, error) {
	requestID := uuid.NewString()
	c.log.Debug().Str("request_id", requestID).Str("endpoint", endpoint).Str("url", req.URL.String()).Msg("calling device")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, transportError(endpoint, fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, nil, transportError(endpoint, fmt.Errorf("api %s returned status %d", endpoint, resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, transportError(endpoint, fmt.Errorf("read response: %w", err))
	}
	c.log.Debug().Str("request_id", requestID).Str("endpoint", endpoint).Int("bytes", len(body)).Msg("device replied")
	return body, resp.Header, nil
}

func (c *Client) endpointURL(endpoint, query string) string {
	u := c.apiURL + "/" + endpoint
	if query != "" {
		u += "?" + query
	}
	return u
}

func (c *Client) finish(endpoint string, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		var kerr *Error
		if errors.As(err, &kerr) {
			outcome = kerr.Kind.String()
		} else {
			outcome = "error"
		}
		c.log.Debug().Err(err).Str("endpoint", endpoint).Dur("elapsed", elapsed).Msg("device call failed")
	}
	if c.observer != nil {
		c.observer.ObserveCall(endpoint, outcome, elapsed)
	}
}

func parseBaseURL(address string) (*url.URL, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, &Error{Kind: KindInvalidConfiguration, Message: "device address is required"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &Error{
			Kind:    KindInvalidConfiguration,
			Message: fmt.Sprintf("parse device address %q: %v", address, err),
			Err:     err,
		}
	}
	if u.Host == "" {
		return nil, &Error{Kind: KindInvalidConfiguration, Message: fmt.Sprintf("device address %q has no host", address)}
	}
	u.Path = ""
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
