// Package canonical derives stable canonical entity ids from source-native names
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Optional: Unicode NFKD decomposition, marks and format chars removed, fullwidth folded
// 3 Lowercase
// 4 Keep only [a-z0-9 ] with any unicode space mapped to a plain space
// 5 Collapse runs of spaces to a single underscore, then runs of underscores
// 6 Truncate to MaxNameLen then trim underscores
// 7 Prefix with the entity type
package canonical

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MaxNameLen bounds the normalized name part of an id (the type prefix is not counted)
const MaxNameLen = 50

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Resolver derives canonical ids
// the zero value applies the plain rule, which matches ids already stored upstream;
// FoldUnicode maps "Café" to "cafe" instead of "caf"
type Resolver struct {
	FoldUnicode bool
}

// Resolve returns the canonical id for (entityType, raw) under the plain rule
// ok is false when raw normalizes to nothing; callers must not write a mapping then
func Resolve(entityType EntityType, raw string) (id string, ok bool) {
	return Resolver{}.Resolve(entityType, raw)
}

// Name returns the normalized name part of a canonical id under the plain rule
func Name(raw string) string { return Resolver{}.Name(raw) }

// Resolve returns the canonical id for (entityType, raw)
func (r Resolver) Resolve(entityType EntityType, raw string) (id string, ok bool) {
	name := r.Name(raw)
	if name == "" {
		return "", false
	}
	return string(entityType) + "_" + name, true
}

// Name returns the normalized name part of a canonical id
func (r Resolver) Name(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := strings.ToValidUTF8(raw, "")
	if r.FoldUnicode {
		s = fold(s)
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			space = false
		case unicode.IsSpace(c):
			if !space {
				b.WriteByte('_')
				space = true
			}
		}
	}

	out := collapseUnderscores(b.String())
	if len(out) > MaxNameLen {
		out = out[:MaxNameLen]
	}
	return strings.Trim(out, "_")
}

func fold(s string) string {
	tr := chainPool.Get().(transform.Transformer)
	defer chainPool.Put(tr)
	tr.Reset()
	folded, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return folded
}

func collapseUnderscores(s string) string {
	if !strings.Contains(s, "__") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
