package tbd

import "github.com/pkg/errors"

// An optional is a single-value field, absent until set.
type optional[T comparable] struct {
	val T
	ok  bool
}

func some[T comparable](v T) optional[T] { return optional[T]{val: v, ok: true} }

// set records v for the current container. Seeing the same value twice is
// harmless; a different value fails with dup.
func (o *optional[T]) set(v T, dup error) error {
	if o.ok {
		if o.val != v {
			return errors.Wrapf(dup, "found %v and %v", o.val, v)
		}
		return nil
	}
	o.val, o.ok = v, true
	return nil
}

func (o optional[T]) get() (T, bool) { return o.val, o.ok }

// reconcile returns the image's value for a field after container idx
// reported next. Container 0 is authoritative: a later container may only
// repeat its value. A field absent from container 0 may not appear later.
// When uniform is set, a field present in container 0 must also be present
// in every later container.
func reconcile[T comparable](cur, next optional[T], idx int, uniform bool, mismatch error) (optional[T], error) {
	if idx == 0 {
		return next, nil
	}
	switch {
	case cur.ok && next.ok && cur.val != next.val:
		return cur, errors.Wrapf(mismatch, "%v in first container, %v in container %d", cur.val, next.val, idx)
	case !cur.ok && next.ok:
		return cur, errors.Wrapf(mismatch, "absent from first container, %v in container %d", next.val, idx)
	case cur.ok && !next.ok && uniform:
		return cur, errors.Wrapf(mismatch, "%v in first container, absent from container %d", cur.val, idx)
	}
	return cur, nil
}
