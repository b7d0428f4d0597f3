package values

import (
	"regexp"
	"strings"
	"sync"

	"github.com/matzehuels/stackforge/pkg/ref"
)

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// Match reports whether pattern selects r.
//
// Patterns use shell-style wildcards ("*" and "?") over
// "name/version@user/channel". A pattern without "/" is matched against the
// name only. The empty pattern and "&" select the consumer; "*" selects
// everything. A leading "!" negates the pattern.
func Match(pattern string, r ref.Reference, isConsumer bool) bool {
	pattern = strings.TrimSpace(pattern)
	if neg, ok := strings.CutPrefix(pattern, "!"); ok {
		return !Match(neg, r, isConsumer)
	}
	switch pattern {
	case "", "&":
		return isConsumer
	case "*":
		return true
	}
	target := r.String()
	if !strings.Contains(pattern, "/") {
		target = r.Name
	}
	return compilePattern(pattern).MatchString(target)
}

// IsWildcard reports whether pattern contains glob metacharacters.
func IsWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

func compilePattern(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re
	}
	var b strings.Builder
	b.WriteByte('^')
	for _, c := range pattern {
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	re := regexp.MustCompile(b.String())
	patternCache[pattern] = re
	return re
}
