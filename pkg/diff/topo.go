// SPDX-License-Identifier: Apache-2.0

package diff

import "sort"

// depSorted orders objects so every object follows its dependencies. Ties are
// broken by key, so the output is deterministic. Dependencies on objects
// outside the catalog (the public schema of a scratch database, say) are
// ignored.
func depSorted(c *Catalog) []Object {
	objs := c.sorted()

	indegree := make(map[string]int, len(objs))
	dependents := make(map[string][]string, len(objs))
	for _, o := range objs {
		key := o.Key()
		if _, ok := indegree[key]; !ok {
			indegree[key] = 0
		}
		for _, dep := range o.DependsOn() {
			if _, ok := c.Objects[dep]; !ok {
				continue
			}
			indegree[key]++
			dependents[dep] = append(dependents[dep], key)
		}
	}

	var ready []string
	for _, o := range objs {
		if indegree[o.Key()] == 0 {
			ready = append(ready, o.Key())
		}
	}
	sort.Strings(ready)

	out := make([]Object, 0, len(objs))
	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		out = append(out, c.Objects[key])

		next := dependents[key]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	// Cycles cannot happen with the dependencies we model; if one sneaks in,
	// emit the remainder in key order rather than dropping objects.
	if len(out) < len(objs) {
		seen := make(map[string]struct{}, len(out))
		for _, o := range out {
			seen[o.Key()] = struct{}{}
		}
		for _, o := range objs {
			if _, ok := seen[o.Key()]; !ok {
				out = append(out, o)
			}
		}
	}

	return out
}

// reversed returns a reversed copy.
func reversed(objs []Object) []Object {
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[len(objs)-1-i] = o
	}
	return out
}
