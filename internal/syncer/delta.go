package syncer

import "sort"

// Delta is the difference between the corpus on disk and the indexed state
type Delta struct {
	Added     []string
	Changed   []string
	Removed   []string
	Unchanged int
}

// Empty reports whether there is nothing to index or remove
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// Pending returns the ids that must be (re)indexed, new ones first
func (d Delta) Pending() []string {
	out := make([]string, 0, len(d.Added)+len(d.Changed))
	out = append(out, d.Added...)
	return append(out, d.Changed...)
}

// ComputeDelta compares disk and saved fingerprints. Saved ids absent from
// disk are removals unless protect reports them as living under a root or
// subtree that could not be read.
func ComputeDelta(disk, saved map[string]string, protect func(id string) bool) Delta {
	var d Delta
	for id, fp := range disk {
		old, ok := saved[id]
		switch {
		case !ok:
			d.Added = append(d.Added, id)
		case old != fp:
			d.Changed = append(d.Changed, id)
		default:
			d.Unchanged++
		}
	}
	for id := range saved {
		if _, ok := disk[id]; ok {
			continue
		}
		if protect != nil && protect(id) {
			d.Unchanged++
			continue
		}
		d.Removed = append(d.Removed, id)
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	return d
}
