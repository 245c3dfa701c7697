package spectator

import (
	"sort"
	"strings"
)

// Id is the immutable identity of a meter: a name plus an ordered,
// unique-by-key sequence of tags. Mutators (WithTag, WithTags) return a
// new Id; the receiver is never modified.
//
// Equality and hashing are defined over (name, tag set after de-dup by
// key — last value wins); the insertion order recorded in tags() does
// not affect equality, only the order measurements are later printed in.
//
// Invariant: when serialized (see wire.go), the name is additionally
// carried as a tag "name=<name>".
type Id struct {
	name string
	tags []Tag
	hash uint64
}

// NewId builds an Id from a name and an unordered tag map. Because maps
// have no defined iteration order, the resulting Id's tags() order is
// the lexicographic order of keys; callers that need to preserve a
// specific insertion order should build via NewIdEmpty(name).WithTags(...).
func NewId(name string, tags map[string]string) *Id {
	id := &Id{name: name}
	if len(tags) == 0 {
		id.hash = hashId(id.name, id.tags)
		return id
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	id.tags = make([]Tag, 0, len(keys))
	for _, k := range keys {
		id.tags = append(id.tags, Tag{Key: k, Value: tags[k]})
	}
	id.hash = hashId(id.name, id.tags)
	return id
}

// NewIdEmpty returns an Id with the given name and no tags.
func NewIdEmpty(name string) *Id {
	return &Id{name: name, hash: hashId(name, nil)}
}

// Name returns the meter name.
func (id *Id) Name() string {
	return id.name
}

// Tags returns the ordered, unique-by-key tag sequence. The returned
// slice must not be mutated by the caller.
func (id *Id) Tags() []Tag {
	return id.tags
}

// TagValue returns the value for key and whether it was present.
func (id *Id) TagValue(key string) (string, bool) {
	for _, t := range id.tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// WithTag returns a new Id with key=value set, replacing any existing
// value for key at its original position (last value wins, insertion
// order of first occurrence is preserved). The receiver is unmodified;
// the new Id's tag slice is freshly allocated but the Tag values
// themselves, being immutable, are shared with the original.
func (id *Id) WithTag(key, value string) *Id {
	return id.WithTagStruct(Tag{Key: key, Value: value})
}

// WithTagStruct is the Tag-valued form of WithTag.
func (id *Id) WithTagStruct(t Tag) *Id {
	newTags := make([]Tag, len(id.tags), len(id.tags)+1)
	copy(newTags, id.tags)

	replaced := false
	for i := range newTags {
		if newTags[i].Key == t.Key {
			newTags[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		newTags = append(newTags, t)
	}

	return &Id{name: id.name, tags: newTags, hash: hashId(id.name, newTags)}
}

// WithTags returns a new Id with every key in tags set, applied in map
// iteration order (undefined between calls); for a deterministic result
// apply WithTag repeatedly instead.
func (id *Id) WithTags(tags map[string]string) *Id {
	result := id
	for k, v := range tags {
		result = result.WithTag(k, v)
	}
	return result
}

// IdFromTags is the inverse of the wire tag map a measurement's Id
// decomposes into (see tagsForMeasurement in wire.go): the "name" entry
// becomes the Id's name and every other entry becomes a tag.
func IdFromTags(tags map[string]string) *Id {
	rest := make(map[string]string, len(tags))
	var name string
	for k, v := range tags {
		if k == "name" {
			name = v
			continue
		}
		rest[k] = v
	}
	return NewId(name, rest)
}

// withStatistic is the internal helper meters use to derive the
// measurement Id for a given statistic (count, totalTime, max, gauge...).
func (id *Id) withStatistic(stat string) *Id {
	return id.WithTag("statistic", stat)
}

// Equal reports whether id and other have the same name and the same
// tag set (order-independent, de-duplicated by key).
func (id *Id) Equal(other *Id) bool {
	if other == nil {
		return false
	}
	if id == other {
		return true
	}
	if id.hash != other.hash || id.name != other.name || len(id.tags) != len(other.tags) {
		return false
	}
	for _, t := range id.tags {
		v, ok := other.TagValue(t.Key)
		if !ok || v != t.Value {
			return false
		}
	}
	return true
}

// Hash returns a precomputed, order-independent hash over (name, tags)
// suitable for use as a map key alongside Equal, and for QueryIndex
// memoization.
func (id *Id) Hash() uint64 {
	return id.hash
}

// Key returns a string safe for use as a Go map key, canonicalized so
// that two Equal Ids produce the same Key regardless of tag insertion
// order.
func (id *Id) Key() string {
	sorted := make([]Tag, len(id.tags))
	copy(sorted, id.tags)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	b.WriteString(id.name)
	for _, t := range sorted {
		b.WriteByte('|')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}

func (id *Id) String() string {
	return id.Key()
}

// fnvOffset / fnvPrime implement 64-bit FNV-1a, used because the hash
// must be stable across processes (unlike Go's randomized map seed) so
// that QueryIndex memoization and test fixtures are reproducible.
const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

func fnv1a(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// hashId computes an order-independent hash: each tag is hashed
// independently from a common seed and the results are XORed together,
// so permutations of the same tag set collide to the same value.
func hashId(name string, tags []Tag) uint64 {
	h := fnv1a(fnvOffset64, name)
	var tagsHash uint64
	for _, t := range tags {
		th := fnv1a(fnvOffset64, t.Key)
		th = fnv1a(th, "=")
		th = fnv1a(th, t.Value)
		tagsHash ^= th
	}
	return h ^ tagsHash
}
