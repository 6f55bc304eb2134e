package reconcile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qsync/internal/events"
)

// ErrStreamClosed is returned by Stream when the server ends the response.
var ErrStreamClosed = errors.New("event stream closed by server")

// HTTPError is a non-2xx response from the server.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client talks to a qsync server.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	fetchTimeout time.Duration
}

type ClientOption func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient replaces the transport. The client must not set a Timeout,
// which would cut streams short.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithFetchTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{},
		fetchTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch lists every record of kind.
func (c *Client) Fetch(ctx context.Context, kind Kind) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.do(ctx, kind.Path(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raws []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", kind, err)
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s list: %w", kind, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stream opens the push channel and calls handle for every event until ctx is
// cancelled, the server closes the stream, or handle returns an error. opened,
// when set, runs once the server has accepted the connection; events emitted
// after that point are delivered.
func (c *Client) Stream(ctx context.Context, opened func(), handle func(events.Event) error) error {
	resp, err := c.do(ctx, "/api/events", "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if opened != nil {
		opened()
	}

	err = readSSE(resp.Body, handle)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Client) do(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Error == "" {
		payload.Error = strings.TrimSpace(string(body))
	}
	return nil, &HTTPError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Error}
}

// readSSE parses a text/event-stream body. Comment lines are keep-alives and
// are skipped.
func readSSE(r io.Reader, handle func(events.Event) error) error {
	br := bufio.NewReader(r)
	var (
		topic string
		seq   uint64
		data  strings.Builder
		dirty bool
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if dirty && topic != "" {
				ev := events.Event{
					Topic:   events.Topic(topic),
					Seq:     seq,
					Payload: json.RawMessage(data.String()),
				}
				if err := handle(ev); err != nil {
					return err
				}
			}
			topic, seq, dirty = "", 0, false
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		dirty = true
		switch field {
		case "event":
			topic = value
		case "id":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				seq = n
			}
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
}
