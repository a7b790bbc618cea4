package core

// Key kinds tracked by SeenKeySet.
const (
	KeySerial = "serial"
	KeyTag    = "tag"
)

// SeenKeySet records the uniqueness keys met so far in one validation pass,
// remembering the row that first used each key. It is not safe for
// concurrent use; each pass owns its own set.
type SeenKeySet struct {
	keys map[string]int
}

// NewSeenKeySet returns an empty set.
func NewSeenKeySet() *SeenKeySet {
	return &SeenKeySet{keys: make(map[string]int)}
}

func seenKey(kind, key string) string {
	return kind + "\x00" + key
}

// FirstRow returns the row that first used key, if any.
func (s *SeenKeySet) FirstRow(kind, key string) (int, bool) {
	row, ok := s.keys[seenKey(kind, key)]
	return row, ok
}

// Add records key for row. The first occurrence wins; Add reports whether
// the key was new.
func (s *SeenKeySet) Add(kind, key string, row int) bool {
	k := seenKey(kind, key)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = row
	return true
}

// Len returns the number of recorded keys.
func (s *SeenKeySet) Len() int {
	return len(s.keys)
}
