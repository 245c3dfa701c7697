package spectator

import "strings"

// defaultAllowed is the character set permitted in tag keys and values
// without replacement: letters, digits, and a small set of punctuation
// commonly seen in metric names. Any other byte is replaced with '_'
// during publish-time serialization.
var defaultAllowed = buildAllowedTable("-._")

// perKeyAllowed holds overrides for specific tag keys that accept a
// wider punctuation set than the default. "cluster" values round-trip
// through node selector syntax elsewhere in the pipeline and routinely
// carry '~' and '^' (e.g. "node-pool~gpu^a100"), so they get a superset
// of the default table instead of being mangled.
var perKeyAllowed = map[string][128]bool{
	"cluster": buildAllowedTable("-._~^"),
}

// ConfigureCharset overrides the default and per-key allowed character
// sets from the validTagCharacters / validTagValueCharacters config
// options. It must be called before any tag is sanitized (normally
// once, during startup) — it is not safe to call concurrently with
// Registry use.
func ConfigureCharset(validTagCharacters string, validTagValueCharacters map[string]string) {
	if validTagCharacters != "" {
		defaultAllowed = parseCharClass(validTagCharacters)
	}
	if len(validTagValueCharacters) > 0 {
		updated := make(map[string][128]bool, len(validTagValueCharacters))
		for k, v := range validTagValueCharacters {
			updated[k] = parseCharClass(v)
		}
		perKeyAllowed = updated
	}
}

// parseCharClass reads a regex-bracket-style character class body (e.g.
// "-._A-Za-z0-9") into an allow table, expanding "x-y" ranges.
func parseCharClass(pattern string) [128]bool {
	var table [128]bool
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && runes[i+1] == '-' {
			lo, hi := runes[i], runes[i+2]
			for c := lo; c <= hi && c < 128; c++ {
				table[c] = true
			}
			i += 2
			continue
		}
		if runes[i] < 128 {
			table[runes[i]] = true
		}
	}
	return table
}

func buildAllowedTable(extra string) [128]bool {
	var table [128]bool
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for _, c := range extra {
		if c < 128 {
			table[c] = true
		}
	}
	return table
}

// sanitizeTagComponent replaces every byte outside the allowed set for
// the given tag key with '_'. The allowed tables only ever mark ASCII
// positions true, so any byte >= 0x80 is replaced as a side effect of
// that, which also takes care of multi-byte UTF-8 sequences a backend
// might otherwise choke on.
func sanitizeTagComponent(key, value string) string {
	allowed, ok := perKeyAllowed[key]
	if !ok {
		allowed = defaultAllowed
	}

	needsReplace := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= 128 || !allowed[c] {
			needsReplace = true
			break
		}
	}
	if !needsReplace {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < 128 && allowed[c] {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
