package asset

import "testing"

func TestStringTable(t *testing.T) {
	st := NewStringTable()
	if st.AddString("") != 0 {
		t.Fatal("empty string is not index 0")
	}

	a := st.AddString("hips")
	b := st.AddString("spine")
	if again := st.AddString("hips"); again != a {
		t.Errorf("AddString is not idempotent: %d then %d", a, again)
	}
	if a == b {
		t.Errorf("distinct strings share index %d", a)
	}
	if st.Len() != 3 {
		t.Errorf("Len = %d, want 3", st.Len())
	}
	if got := st.GetString(b); got != "spine" {
		t.Errorf("GetString(%d) = %q", b, got)
	}
	if got := st.GetString(42); got != "" {
		t.Errorf("GetString(out of range) = %q, want empty", got)
	}
	if _, ok := st.Lookup(42); ok {
		t.Error("Lookup(out of range) reported ok")
	}
}
