package delta

// ComposeAttrs merges b over a. When keepNil is true (composing onto a
// retain), a key in b mapped to nil is kept as an explicit "clear this
// attribute" marker; otherwise nil keys are dropped (composing onto a
// fresh insert has nothing to clear).
func ComposeAttrs(a, b Attrs, keepNil bool) Attrs {
	if a == nil && b == nil {
		return nil
	}
	out := make(Attrs, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if v == nil && !keepNil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TransformAttrs resolves concurrent attribute edits on the same range: a
// key present in both wins for whichever side priority favors; a key set
// by only one side always applies.
func TransformAttrs(a, b Attrs, priority bool) Attrs {
	if a == nil {
		return b
	}
	if b == nil {
		return nil
	}
	out := make(Attrs, len(b))
	for k, v := range b {
		if priority {
			if _, clash := a[k]; clash {
				continue
			}
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// InvertAttrs returns the attribute delta that undoes applying `attrs` to
// content that previously had `base` attributes.
func InvertAttrs(attrs, base Attrs) Attrs {
	out := Attrs{}
	for k := range attrs {
		if _, ok := base[k]; !ok {
			out[k] = nil
		}
	}
	for k, v := range base {
		if cur, ok := attrs[k]; !ok || cur != v {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
