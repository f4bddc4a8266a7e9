package catalog

// Header is one name/value pair applied to a probe request. Names are
// sent exactly as written here; no canonicalization.
type Header struct {
	Name  string
	Value string
}

// HeaderSet is an ordered list of header overrides for one probe. The
// empty set is a valid member (the no-override baseline). Duplicate
// names are deliberate: proxy behavior under conflicting headers is
// part of what is being probed, so sets are never deduplicated or
// reordered.
type HeaderSet []Header

// Label returns a short tag for progress output: the first header name,
// or "baseline" for the empty set.
func (hs HeaderSet) Label() string {
	if len(hs) == 0 {
		return "baseline"
	}
	return hs[0].Name
}

// HeaderSets returns the header-mutation catalog in fixed order. path is
// the protected path, used as the value of URL-override headers.
func HeaderSets(path string) []HeaderSet {
	return []HeaderSet{
		{}, // baseline: no overrides
		{{"X-Forwarded-For", "127.0.0.1"}},
		{{"X-Forwarded-For", "10.0.0.1"}},
		{{"X-Forwarded-For", "127.0.0.1"}, {"X-Forwarded-For", "10.0.0.1"}}, // duplicate name
		{{"X-Real-IP", "127.0.0.1"}},
		{{"True-Client-IP", "127.0.0.1"}},
		{{"X-Custom-IP-Authorization", "127.0.0.1"}},
		{{"Host", "127.0.0.1"}},
		{{"X-Forwarded-Host", "127.0.0.1"}},
		{{"X-Forwarded-Proto", "https"}, {"X-Forwarded-Port", "443"}},
		{{"X-Original-URL", path}},
		{{"X-Original-URI", path}},
		{{"X-Rewrite-URL", path}},
		{{"X-Accel-Redirect", path}},
		{{"X-HTTP-Method-Override", "PUT"}},
	}
}
