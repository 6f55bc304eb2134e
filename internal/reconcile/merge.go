// Package reconcile keeps a client-side copy of the server's records current by
// merging bulk fetches and pushed events into one keyed cache per record kind.
//
// Every path into the cache goes through Merge, so the result does not depend
// on the order snapshots and events arrive in.
package reconcile

import "time"

// Merge folds incoming into dst. For each key the copy with the later version
// wins; on equal versions the incoming copy replaces the cached one. Keys for
// which skip reports true are ignored. Records already in dst and absent from
// incoming are kept.
func Merge[K comparable, V any](dst map[K]V, incoming []V, key func(V) K, version func(V) time.Time, skip func(K) bool) {
	for _, v := range incoming {
		k := key(v)
		if skip != nil && skip(k) {
			continue
		}
		if cached, ok := dst[k]; ok && version(cached).After(version(v)) {
			continue
		}
		dst[k] = v
	}
}
