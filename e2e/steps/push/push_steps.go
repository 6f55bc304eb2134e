package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"qsync/internal/reconcile"
)

// TestContext is the subset of the scenario context these steps need.
type TestContext interface {
	StartWatcher() error
	Watcher() *reconcile.Session
	Last(kind string) (string, error)
}

// RegisterSteps registers steps that observe a second, watching client.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &syncSteps{tc: tc}

	ctx.Step(`^a watching client is connected$`, steps.watcherConnected)
	ctx.Step(`^the watching client should see the last risk within (\d+) seconds$`, steps.shouldSee)
	ctx.Step(`^the watching client should not see the last risk within (\d+) seconds$`, steps.shouldNotSee)
	ctx.Step(`^the watching client should see the last risk with "([^"]*)" "([^"]*)" within (\d+) seconds$`, steps.shouldSeeField)
}

type syncSteps struct {
	tc TestContext
}

func (s *syncSteps) watcherConnected(ctx context.Context) error {
	return s.tc.StartWatcher()
}

// await polls until check passes or the deadline expires.
func (s *syncSteps) await(seconds int, check func(*reconcile.Cache, string) bool) error {
	w := s.tc.Watcher()
	if w == nil {
		return fmt.Errorf("no watching client")
	}
	id, err := s.tc.Last("risk")
	if err != nil {
		return err
	}
	cache := w.Cache(reconcile.KindRisk)
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for time.Now().Before(deadline) {
		if check(cache, id) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("watching client did not converge on risk %s within %ds", id, seconds)
}

func (s *syncSteps) shouldSee(ctx context.Context, seconds int) error {
	return s.await(seconds, func(c *reconcile.Cache, id string) bool {
		_, ok := c.Get(id)
		return ok
	})
}

func (s *syncSteps) shouldNotSee(ctx context.Context, seconds int) error {
	return s.await(seconds, func(c *reconcile.Cache, id string) bool {
		_, ok := c.Get(id)
		return !ok
	})
}

func (s *syncSteps) shouldSeeField(ctx context.Context, field, want string, seconds int) error {
	return s.await(seconds, func(c *reconcile.Cache, id string) bool {
		rec, ok := c.Get(id)
		if !ok {
			return false
		}
		var body map[string]any
		if json.Unmarshal(rec.Body, &body) != nil {
			return false
		}
		return fmt.Sprint(body[field]) == want
	})
}
