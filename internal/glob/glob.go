// Package glob translates shell-style patterns to anchored regular
// expressions and memoizes the compiled results.
package glob

import (
	"regexp"
	"strings"
	"sync"
)

// Translate converts a glob pattern into anchored regexp source.
// `*` matches any run (including empty) of any characters, `?` matches
// exactly one character, and every other regexp metacharacter is literal.
func Translate(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Compile returns the compiled anchored regexp for pattern.
// Translation escapes everything it does not rewrite, so the result is
// always a valid expression.
func Compile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(Translate(pattern))
}

// Cache memoizes compiled patterns per pattern string. It grows with the
// set of unique patterns observed, which is bounded by the configured
// pattern lists.
type Cache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// NewCache creates an empty pattern cache.
func NewCache() *Cache {
	return &Cache{compiled: make(map[string]*regexp.Regexp)}
}

// Match reports whether path matches the glob pattern, compiling and
// caching the pattern on first use.
func (c *Cache) Match(pattern, path string) bool {
	c.mu.Lock()
	re, ok := c.compiled[pattern]
	if !ok {
		re = Compile(pattern)
		c.compiled[pattern] = re
	}
	c.mu.Unlock()
	return re.MatchString(path)
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}
