package asset

// StringTable interns strings. Index 0 is always the empty string and indices are never
// reused once assigned.
type StringTable struct {
	strings []string
	index   map[string]uint32
}

// NewStringTable returns a table holding only the empty string.
func NewStringTable() *StringTable {
	return &StringTable{
		strings: []string{""},
		index:   map[string]uint32{"": 0},
	}
}

// AddString returns the index of s, adding it if needed.
func (t *StringTable) AddString(s string) uint32 {
	if idx, ok := t.index[s]; ok {
		return idx
	}
	idx := uint32(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = idx
	return idx
}

// GetString returns the string at idx, or "" when idx is out of range.
func (t *StringTable) GetString(idx uint32) string {
	if int(idx) >= len(t.strings) {
		return ""
	}
	return t.strings[idx]
}

// Lookup returns the string at idx and whether idx exists.
func (t *StringTable) Lookup(idx uint32) (string, bool) {
	if int(idx) >= len(t.strings) {
		return "", false
	}
	return t.strings[idx], true
}

// Len returns the number of strings including the empty string.
func (t *StringTable) Len() int { return len(t.strings) }

// Strings returns the table contents in index order.
func (t *StringTable) Strings() []string { return t.strings }
