package checksum

import "testing"

func TestSum_Known(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestVerify(t *testing.T) {
	data := []byte("payload")
	if err := Verify(data, Sum(data)); err != nil {
		t.Errorf("matching checksum: %v", err)
	}
	if err := Verify(data, ""); err != nil {
		t.Errorf("empty checksum should be accepted: %v", err)
	}
	if err := Verify(data, Sum([]byte("other"))); err == nil {
		t.Error("expected mismatch error")
	}
}
