package ev

import "testing"

func TestAllocMessage_DefaultCapacity(t *testing.T) {
	m := AllocMessage()
	if m.Capacity() != DefaultBufferSize {
		t.Fatalf("Capacity() = %d, want %d", m.Capacity(), DefaultBufferSize)
	}
	if m.Length() != 0 {
		t.Fatalf("Length() = %d, want 0 on a fresh message", m.Length())
	}
	m.SetLength(128)
	if m.Length() != 128 {
		t.Fatalf("Length() = %d after SetLength(128), want 128", m.Length())
	}
	if len(m.Data()) != DefaultBufferSize {
		t.Fatalf("Data() len = %d, want %d", len(m.Data()), DefaultBufferSize)
	}
	FreeMessage(m)
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		OK:          "OK",
		ERROR:       "ERROR",
		FATAL:       "FATAL",
		CONN_CLOSED: "CONN_CLOSED",
		Status(99):  "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
