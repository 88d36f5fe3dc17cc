package fingerprint

import "testing"

func TestCompute(t *testing.T) {
	got := Compute([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if Compute(nil) != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("unexpected empty digest")
	}
	if Compute([]byte("abc")) == Compute([]byte("abd")) {
		t.Fatalf("expected distinct digests")
	}
}
