package hostfn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fernlang/fernhost/abi"
	"github.com/fernlang/fernhost/dict"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

// Response is the host-side shape of an Http.get result.
type Response struct {
	Status  uint16
	Headers map[string]string
	Body    []byte
}

// Getter performs the one blocking HTTP GET the effect table exposes.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// HTTPConfig bounds what the Http.get effect may reach and consume.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// Client is the standard Getter: GET only, scheme and host allow-listed,
// response body size capped.
type Client struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewClient(cfg HTTPConfig) *Client {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if len(rawURL) > c.cfg.MaxURLLength {
		return nil, fmt.Errorf("url exceeds max length")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https")
	}
	if len(c.cfg.AllowedHosts) == 0 {
		return nil, fmt.Errorf("http not enabled")
	}
	host := parsed.Hostname()
	if !c.isHostAllowed(host) {
		return nil, fmt.Errorf("host not allowed: %s", host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &Response{
		Status:  uint16(resp.StatusCode),
		Headers: headers,
		Body:    body,
	}, nil
}

func (c *Client) isHostAllowed(host string) bool {
	for _, allowed := range c.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Http.get's return record. The headers field is a guest-native
// dictionary embedded by value.
var httpResponse = abi.RecordLayout(
	abi.Field{Name: "body", Size: abi.StrSize, Align: abi.StrAlign},
	abi.Field{Name: "headers", Size: dict.Layout().Size, Align: dict.Layout().Align},
	abi.Field{Name: "status", Size: 2, Align: 2},
)

// Http.get: the effect signature has no failure channel, so URL parse and
// connection failures degrade to a zero response.
func httpGet(ctx context.Context, env *Env, ret, arg uint32) error {
	rawURL, err := argString(env, arg, urlArg.Offset("url"))
	if err != nil {
		return err
	}

	var resp *Response
	var gerr error
	if env.HTTP != nil {
		resp, gerr = env.HTTP.Get(ctx, rawURL)
	}
	if resp == nil {
		resp = &Response{}
	}

	if err := writeResponse(env, ret, resp); err != nil {
		return err
	}
	return gerr
}

func writeResponse(env *Env, ret uint32, resp *Response) error {
	body, err := abi.NewStr(env.Mem, env.Heap, resp.Body)
	if err != nil {
		return err
	}
	if err := abi.WriteStr(env.Mem, ret+httpResponse.Offset("body"), body); err != nil {
		return err
	}
	if err := dict.Write(env.Mem, env.Heap, env.Seed, headerPairs(resp.Headers),
		ret+httpResponse.Offset("headers")); err != nil {
		return err
	}
	return env.Mem.WriteU16(ret+httpResponse.Offset("status"), resp.Status)
}

// headerPairs flattens the header map in sorted key order so the built
// dictionary is deterministic for a given response.
func headerPairs(headers map[string]string) []dict.Pair {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]dict.Pair, len(keys))
	for i, k := range keys {
		pairs[i] = dict.Pair{Key: []byte(k), Value: []byte(headers[k])}
	}
	return pairs
}
