package cache

import "testing"

func Test_RetainIncrementsUseCount(t *testing.T) {
	m := openTestManager(t, -1)
	h, _ := m.NewBuffer()
	if h.Buffer().UseCount() != 1 {
		t.Fatalf("expected use count 1 after NewBuffer, got %d", h.Buffer().UseCount())
	}

	h2 := h.Retain()
	if h.Buffer().UseCount() != 2 {
		t.Fatalf("expected use count 2 after Retain, got %d", h.Buffer().UseCount())
	}

	h.Release()
	if m.AvailableCount() != 0 {
		t.Fatalf("buffer with one outstanding handle should not be available yet")
	}

	h2.Release()
	if m.AvailableCount() != 1 {
		t.Fatalf("buffer should become available once its last handle releases")
	}
}

func Test_ReleaseIsIdempotentOnInvalidHandle(t *testing.T) {
	var h Handle
	h.Release() // must not panic
	if h.Valid() {
		t.Fatal("zero-value handle should report invalid")
	}
}

func Test_DummyBufferIgnoresRefcounting(t *testing.T) {
	b := Dummy()
	if !b.IsDummy() {
		t.Fatal("Dummy() should report IsDummy")
	}
	h := Handle{buf: b}
	h.Release() // must not panic, no manager attached
}
