package watchlist

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Filter matches a ticker or group name.
type Filter interface {
	Match(name string) bool
}

// ParseFilter builds a filter from an expression:
// - Comma-separated exact names: "AAPL,MSFT"
// - Glob: "Tech*"
// - Regex: "/^US-/"
// - Anything else: case-insensitive substring
func ParseFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always(true), nil
	}
	if strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") && len(expr) > 2 {
		re, err := regexp.Compile(expr[1 : len(expr)-1])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		return Regex{re: re}, nil
	}
	if strings.Contains(expr, ",") {
		set := map[string]struct{}{}
		for _, p := range strings.Split(expr, ",") {
			p = strings.ToUpper(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			set[p] = struct{}{}
		}
		return ExactSet{set: set}, nil
	}
	if strings.ContainsAny(expr, "*?[") {
		if _, err := filepath.Match(expr, ""); err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		return Glob{pattern: expr}, nil
	}
	return SubstrCI{needle: expr}, nil
}

type Always bool

func (a Always) Match(string) bool { return bool(a) }

// ExactSet matches names in the set, ignoring case.
type ExactSet struct{ set map[string]struct{} }

func (e ExactSet) Match(name string) bool {
	_, ok := e.set[strings.ToUpper(name)]
	return ok
}

type Glob struct{ pattern string }

func (g Glob) Match(name string) bool {
	ok, _ := filepath.Match(g.pattern, name)
	return ok
}

func (g Glob) String() string { return fmt.Sprintf("glob:%s", g.pattern) }

type Regex struct{ re *regexp.Regexp }

func (r Regex) Match(name string) bool { return r.re.MatchString(name) }

// SubstrCI matches if name contains needle, case-insensitively.
type SubstrCI struct{ needle string }

func (s SubstrCI) Match(name string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(s.needle))
}

func (s SubstrCI) String() string { return fmt.Sprintf("substr-ci:%s", s.needle) }
