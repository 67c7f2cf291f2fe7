package validate

import "regexp"

// forbiddenPattern is one entry in the privacy forbids list of §7. Patterns
// are checked in order; the first match wins, so more specific patterns
// (UNC before a generic POSIX prefix, say) are listed first.
type forbiddenPattern struct {
	code    string
	pattern *regexp.Regexp
}

// ForbiddenPatterns is the authoritative, shared forbids list. It is the
// single source of truth for both the narrower path-summary privacy
// validator (§4.2) and the authoritative privacy lint (§4.5) — Open
// Question 2 in spec.md §9 asks that the two be kept in sync; sharing one
// slice is how this implementation keeps that promise structurally
// instead of by convention.
var ForbiddenPatterns = []forbiddenPattern{
	{"ABS_PATH_UNC", regexp.MustCompile(`\\\\[^\\\s]+\\`)},
	{"ABS_PATH_WIN", regexp.MustCompile(`[A-Za-z]:\\`)},
	{"ABS_PATH_POSIX", regexp.MustCompile(`(?:^|[^A-Za-z0-9_])(/Users/|/home/|/var/|/etc/|/opt/|/private/|/Volumes/)`)},
	{"USER_DIR_HINT_WIN", regexp.MustCompile(`%[A-Za-z_][A-Za-z0-9_]*%`)},
	{"USER_DIR_HINT_POSIX", regexp.MustCompile(`~[A-Za-z0-9_./-]*`)},
	{"ENV_MARKER_POWERSHELL", regexp.MustCompile(`\$env:[A-Za-z_][A-Za-z0-9_]*`)},
	{"ENV_MARKER_SHELL", regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)},
	{"ENV_MARKER_CMD", regexp.MustCompile(`%[A-Za-z_][A-Za-z0-9_]*%`)},
	{"EMAIL_ADDRESS", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
}

// weftendTokenPattern matches any WEFTEND_ token. It is evaluated
// separately because it is conditionally allowed (inside reasonCodes /
// warnings JSON values, or on a README line of the form
// "weftendBuild.reasonCodes=WEFTEND_...") and callers need to apply that
// allowlist before flagging it.
var weftendTokenPattern = regexp.MustCompile(`WEFTEND_[A-Z0-9_]+`)

// FindForbidden returns the first forbidden pattern matched in s, the
// matched substring, and whether anything matched.
func FindForbidden(s string) (code string, sample string, ok bool) {
	for _, p := range ForbiddenPatterns {
		if loc := p.pattern.FindString(s); loc != "" {
			return p.code, loc, true
		}
	}
	return "", "", false
}

// FindWeftendToken returns the first WEFTEND_ token found in s, if any.
func FindWeftendToken(s string) (token string, ok bool) {
	m := weftendTokenPattern.FindString(s)
	return m, m != ""
}

// ValidatePathSummaryPrivacy walks every string leaf of a decoded path
// summary and appends PRIVACY_FIELD_FORBIDDEN for each forbidden value
// found. Unlike the authoritative privacy lint in pkg/receipt, this
// validator does not special-case the WEFTEND_ reasonCodes allowlist: a
// path summary has no legitimate reason to carry a WEFTEND_ token at all.
func ValidatePathSummaryPrivacy(summary map[string]any) Issues {
	var c collector
	walkPrivacy(summary, "", &c)
	return c.result()
}

func walkPrivacy(v any, path string, c *collector) {
	switch t := v.(type) {
	case string:
		if _, _, ok := FindForbidden(t); ok {
			c.add("PRIVACY_FIELD_FORBIDDEN", path, "field contains a forbidden privacy pattern")
		}
		if _, ok := FindWeftendToken(t); ok {
			c.add("PRIVACY_FIELD_FORBIDDEN", path, "field contains a WEFTEND_ token outside the allowlisted context")
		}
	case map[string]any:
		for k, val := range t {
			walkPrivacy(val, path+"."+k, c)
		}
	case []any:
		for i, val := range t {
			walkPrivacy(val, path+"[]", c)
			_ = i
		}
	}
}
