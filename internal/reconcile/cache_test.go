package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qsync/internal/events"
	"qsync/internal/indicator/models"
	"qsync/internal/indicator/service"
	"qsync/internal/indicator/store/profile"
	"qsync/internal/indicator/store/submission"
	"qsync/internal/scoring"
	"qsync/pkg/requestcontext"
)

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func rec(id string, minute int, body string) Record {
	return Record{
		ID:        id,
		UpdatedAt: base.Add(time.Duration(minute) * time.Minute),
		Body:      json.RawMessage(fmt.Sprintf(`{"id":%q,"title":%q}`, id, body)),
	}
}

// step is one input the cache can receive.
type step func(c *Cache)

func snapshot(rs ...Record) step { return func(c *Cache) { c.ApplySnapshot(rs) } }
func upsert(r Record) step       { return func(c *Cache) { c.ApplyUpsert(r) } }
func tombstone(id string) step   { return func(c *Cache) { c.ApplyTombstone(id) } }

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestMergeKeepsStrictlyNewer(t *testing.T) {
	dst := map[string]Record{"a": rec("a", 5, "cached")}
	Merge(dst, []Record{rec("a", 4, "older")}, recordID, recordVersion, nil)
	assert.JSONEq(t, `{"id":"a","title":"cached"}`, string(dst["a"].Body))

	Merge(dst, []Record{rec("a", 5, "same version")}, recordID, recordVersion, nil)
	assert.JSONEq(t, `{"id":"a","title":"same version"}`, string(dst["a"].Body), "equal versions replace")

	Merge(dst, []Record{rec("a", 6, "newer")}, recordID, recordVersion, nil)
	assert.JSONEq(t, `{"id":"a","title":"newer"}`, string(dst["a"].Body))
}

func TestMergeSkip(t *testing.T) {
	dst := map[string]Record{}
	Merge(dst, []Record{rec("a", 1, "x"), rec("b", 1, "y")}, recordID, recordVersion,
		func(id string) bool { return id == "b" })
	assert.Len(t, dst, 1)
	assert.Contains(t, dst, "a")
}

func TestSnapshotIsAFloor(t *testing.T) {
	c := NewCache()
	c.ApplyUpsert(rec("pushed", 3, "only pushed"))
	c.ApplySnapshot([]Record{rec("fetched", 1, "from list")})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("pushed")
	assert.True(t, ok, "records absent from a fetch are retained")
}

func TestSnapshotNeverRegresses(t *testing.T) {
	c := NewCache()
	c.ApplyUpsert(rec("a", 10, "pushed newer"))
	c.ApplySnapshot([]Record{rec("a", 9, "fetch started earlier")})

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, base.Add(10*time.Minute), got.UpdatedAt)
}

func TestTombstonePrecedence(t *testing.T) {
	t.Run("stale upsert after delete is ignored", func(t *testing.T) {
		c := NewCache()
		c.ApplyUpsert(rec("a", 1, "v1"))
		c.ApplyTombstone("a")
		c.ApplyUpsert(rec("a", 2, "late v2"))
		c.ApplySnapshot([]Record{rec("a", 2, "late fetch")})

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, []string{"a"}, c.Tombstones())
	})

	t.Run("delete removes regardless of version", func(t *testing.T) {
		c := NewCache()
		c.ApplyUpsert(rec("a", 100, "far future"))
		c.ApplyTombstone("a")
		assert.Equal(t, 0, c.Len())
	})

	t.Run("tombstone for an unknown id", func(t *testing.T) {
		c := NewCache()
		c.ApplyTombstone("ghost")
		c.ApplyUpsert(rec("ghost", 1, "x"))
		assert.Equal(t, 0, c.Len())
	})
}

func TestApplyOrderIndependence(t *testing.T) {
	steps := []step{
		snapshot(rec("a", 1, "a1"), rec("b", 1, "b1"), rec("c", 1, "c1")),
		upsert(rec("a", 3, "a3")),
		upsert(rec("b", 2, "b2")),
		tombstone("c"),
		snapshot(rec("a", 2, "a2"), rec("b", 2, "b2"), rec("d", 1, "d1")),
		upsert(rec("d", 4, "d4")),
	}

	var want []Record
	var wantTombs []string
	for i, perm := range permutations(len(steps)) {
		c := NewCache()
		for _, idx := range perm {
			steps[idx](c)
		}
		// applying everything again must change nothing
		for _, idx := range perm {
			steps[idx](c)
		}
		if i == 0 {
			want, wantTombs = c.Records(), c.Tombstones()
			continue
		}
		require.Equal(t, want, c.Records(), "permutation %v", perm)
		require.Equal(t, wantTombs, c.Tombstones(), "permutation %v", perm)
	}

	require.Len(t, want, 3)
	assert.Equal(t, "a", want[0].ID)
	assert.JSONEq(t, `{"id":"a","title":"a3"}`, string(want[0].Body))
	assert.JSONEq(t, `{"id":"b","title":"b2"}`, string(want[1].Body))
	assert.JSONEq(t, `{"id":"d","title":"d4"}`, string(want[2].Body))
	assert.Equal(t, []string{"c"}, wantTombs)
}

func TestCachedVersionIsAnUpperBound(t *testing.T) {
	c := NewCache()
	applied := []Record{rec("a", 4, "x"), rec("a", 2, "y"), rec("a", 7, "z"), rec("a", 1, "w")}
	for i, r := range applied {
		c.ApplyUpsert(r)
		got, ok := c.Get("a")
		require.True(t, ok)
		for _, seen := range applied[:i+1] {
			assert.False(t, seen.UpdatedAt.After(got.UpdatedAt), "after %d applies", i+1)
		}
	}
}

// A submission changes its profile's lock fields. A bulk fetch taken before
// the submission and the pushed refresh must converge in either order.
func TestProfileLockRefreshConvergesWithEarlierFetch(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithActor(context.Background(), "alice", "ICU"), now)

	bus := events.New(events.WithOrigin("test"))
	var refreshes []events.Event
	bus.Subscribe(events.ProfileUpdated, func(ev events.Event) { refreshes = append(refreshes, ev) })

	profiles := profile.NewInMemory()
	submissions := submission.NewInMemory()
	profileSvc := service.NewProfileService(profiles, submissions, service.WithEventPublisher(bus))
	submissionSvc := service.NewSubmissionService(profiles, submissions, service.WithEventPublisher(bus))

	p, err := profileSvc.Create(ctx, &models.CreateProfileRequest{
		Code: "IND-1", Title: "Hand hygiene compliance", Standard: scoring.Num(95), StandardUnit: "percent",
	})
	require.NoError(t, err)

	list, err := profileSvc.List(ctx)
	require.NoError(t, err)
	var fetch []Record
	for _, item := range list {
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		r, err := DecodeRecord(raw)
		require.NoError(t, err)
		fetch = append(fetch, r)
	}

	_, err = submissionSvc.Create(ctx, &models.CreateSubmissionRequest{
		ProfileID: p.ID, Period: "2026-02", Numerator: scoring.Num(190), Denominator: scoring.Num(200),
	})
	require.NoError(t, err)
	require.Len(t, refreshes, 1)
	refresh := refreshes[0]

	fetchThenPush := NewSession()
	fetchThenPush.ApplySnapshot(KindProfile, fetch)
	require.NoError(t, fetchThenPush.Apply(refresh))

	pushThenFetch := NewSession()
	require.NoError(t, pushThenFetch.Apply(refresh))
	pushThenFetch.ApplySnapshot(KindProfile, fetch)

	want := fetchThenPush.Cache(KindProfile).Records()
	assert.Equal(t, want, pushThenFetch.Cache(KindProfile).Records())

	require.Len(t, want, 1)
	var cached models.ProfileResponse
	require.NoError(t, json.Unmarshal(want[0].Body, &cached))
	assert.True(t, cached.Locked)
	assert.Equal(t, 1, cached.SubmissionCount)
}
