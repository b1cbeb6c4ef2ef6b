// Package branchname derives git branch names for task worktrees.
//
// A generated name has the form
//
//	task/<slug>-<yyyyMMdd>-<HHmmss>
//
// where slug is a sanitized form of the task description and the suffix is
// a UTC timestamp.
package branchname

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	// Prefix is prepended to every generated branch name.
	Prefix = "task/"

	// MaxSlugLength is the maximum length of the sanitized task slug.
	MaxSlugLength = 50

	fallbackSlug    = "task"
	timestampLayout = "20060102-150405"
)

// Slugify converts free text into a branch-safe slug: lowercase, whitespace
// to hyphens, only [a-z0-9-] kept, hyphen runs collapsed, no leading or
// trailing hyphen, at most MaxSlugLength characters. Text with nothing
// usable yields "task".
func Slugify(text string) string {
	var b strings.Builder
	lastHyphen := false
	for _, c := range strings.ToLower(text) {
		if unicode.IsSpace(c) {
			c = '-'
		}
		switch {
		case c == '-':
			if !lastHyphen {
				b.WriteRune(c)
			}
			lastHyphen = true
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b.WriteRune(c)
			lastHyphen = false
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > MaxSlugLength {
		// Don't end with a hyphen
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

// Generate returns the branch name for task at the given time.
func Generate(task string, at time.Time) string {
	return Prefix + Slugify(task) + "-" + at.UTC().Format(timestampLayout)
}

// ExtractSlug recovers the slug from a generated branch name by removing
// the prefix and the two trailing timestamp components. It reports false
// when branch does not carry the prefix or has no room for a timestamp.
func ExtractSlug(branch string) (string, bool) {
	rest, ok := strings.CutPrefix(branch, Prefix)
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "-")
	if len(parts) < 3 {
		return "", false
	}
	slug := strings.Join(parts[:len(parts)-2], "-")
	if slug == "" {
		return "", false
	}
	return slug, true
}

// Generator issues branch names whose timestamps strictly increase, so two
// tasks created within the same second never share a name.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewGenerator returns a Generator reading the time from now. A nil now
// uses time.Now.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// Next returns a name for task. If the clock has not advanced a full second
// past the previously issued timestamp, the timestamp is advanced by one
// second instead.
func (g *Generator) Next(task string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	at := g.now().UTC().Truncate(time.Second)
	if !at.After(g.last) {
		at = g.last.Add(time.Second)
	}
	g.last = at
	return Generate(task, at)
}
