// Package e2e drives a running qsync server through godog scenarios. Set
// QSYNC_E2E_URL to the server base URL to run them.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qsync/internal/reconcile"
)

// TestContext carries state between the steps of one scenario.
type TestContext struct {
	baseURL string
	http    *http.Client

	status int
	body   []byte
	last   map[string]string

	watcher *reconcile.Session
	stop    context.CancelFunc
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		last:    make(map[string]string),
	}
}

// Reset clears per-scenario state and stops the watcher.
func (tc *TestContext) Reset() {
	tc.StopWatcher()
	tc.status, tc.body = 0, nil
	tc.last = make(map[string]string)
}

func (tc *TestContext) BaseURL() string {
	return tc.baseURL
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil)
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) StatusCode() int {
	return tc.status
}

// ResponseField reads a top-level field of the last JSON object response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var obj map[string]any
	if err := json.Unmarshal(tc.body, &obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.body)
	}
	v, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", field, tc.body)
	}
	return v, nil
}

func (tc *TestContext) ResponseHas(field string) bool {
	_, err := tc.ResponseField(field)
	return err == nil
}

// Remember stores the id of the last record created of kind.
func (tc *TestContext) Remember(kind, id string) {
	tc.last[kind] = id
}

func (tc *TestContext) Last(kind string) (string, error) {
	id, ok := tc.last[kind]
	if !ok {
		return "", fmt.Errorf("no %s created in this scenario", kind)
	}
	return id, nil
}

// StartWatcher runs a second client session against the server until the
// scenario ends. It returns once the push stream is open.
func (tc *TestContext) StartWatcher() error {
	tc.StopWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	session := reconcile.NewSession()
	client := reconcile.NewClient(tc.baseURL)

	opened := make(chan struct{})
	failed := make(chan error, 1)
	go func() {
		var once bool
		err := client.Stream(ctx, func() { once = true; close(opened) }, session.Apply)
		if !once {
			failed <- err
		}
	}()

	select {
	case <-opened:
	case err := <-failed:
		cancel()
		return fmt.Errorf("watcher could not connect: %w", err)
	case <-time.After(5 * time.Second):
		cancel()
		return fmt.Errorf("watcher could not connect within 5s")
	}
	tc.watcher, tc.stop = session, cancel
	return nil
}

func (tc *TestContext) StopWatcher() {
	if tc.stop != nil {
		tc.stop()
	}
	tc.watcher, tc.stop = nil, nil
}

// Watcher is the watching session, or nil when none is running.
func (tc *TestContext) Watcher() *reconcile.Session {
	return tc.watcher
}
