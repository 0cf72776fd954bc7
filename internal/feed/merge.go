package feed

import (
	"sort"
	"time"
)

// mergeNotifications combines incoming notifications with the cached list.
//
// Rules, in order, for each incoming notification:
//  1. same id already present -> replace in place (idempotent re-observation)
//  2. content-duplicate present -> drop the incoming one
//  3. otherwise append
//
// The result is sorted by timestamp descending and truncated to maxLen.
// Oldest entries age out silently; bounded retention is an accepted tradeoff
// for a client-local cache.
func mergeNotifications(cached, incoming []Notification, dedupWindow time.Duration, maxLen int) (out []Notification, added int) {
	out = append([]Notification(nil), cached...)

	for _, in := range incoming {
		if i := indexByID(out, in.ID); i >= 0 {
			// Keep the read flag: re-observing a transition must not unread it.
			in.Read = in.Read || out[i].Read
			out[i] = in
			continue
		}
		if hasContentDuplicate(out, in, dedupWindow) {
			continue
		}
		out = append(out, in)
		added++
	}

	sortNotifications(out)
	if maxLen > 0 && len(out) > maxLen {
		out = out[:maxLen]
	}
	return out, added
}

// collapseDuplicates removes duplicates already present in a persisted list.
//
// Earlier app versions generated random id suffixes, so the same transition
// can appear several times in old cache data. Loading self-heals: the first
// occurrence (newest after sorting) wins, later ones are dropped by the same
// content-duplicate test the merge path uses.
func collapseDuplicates(list []Notification, dedupWindow time.Duration) (clean []Notification, removed int) {
	sortNotifications(list)

	seen := make(map[string]struct{}, len(list))
	clean = make([]Notification, 0, len(list))
	for _, n := range list {
		key := NotificationID(n.Type, n.RelatedID, n.Status)
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		if hasContentDuplicate(clean, n, dedupWindow) {
			removed++
			continue
		}
		seen[key] = struct{}{}
		clean = append(clean, n)
	}
	return clean, removed
}

// hasContentDuplicate reports whether list already contains an entry judged
// equivalent to n: same message, title, relatedId and type, where either the
// status matches or the observation timestamps are close together.
func hasContentDuplicate(list []Notification, n Notification, window time.Duration) bool {
	winMS := window.Milliseconds()
	for _, e := range list {
		if e.Message != n.Message || e.Title != n.Title || e.RelatedID != n.RelatedID || e.Type != n.Type {
			continue
		}
		if e.Status == n.Status {
			return true
		}
		if winMS > 0 && absInt64(e.Timestamp-n.Timestamp) <= winMS {
			return true
		}
	}
	return false
}

func indexByID(list []Notification, id string) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func findByKey(list []Notification, t EntityType, relatedID, status string) int {
	for i, n := range list {
		if n.Type == t && n.RelatedID == relatedID && n.Status == status {
			return i
		}
	}
	return -1
}

func sortNotifications(list []Notification) {
	// Newest first; id tiebreak keeps the order deterministic for equal stamps.
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp > list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
