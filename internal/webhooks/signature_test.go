package webhooks

import "testing"

func TestSignHMACKnownVector(t *testing.T) {
	got := SignHMAC("key", []byte("The quick brown fox jumps over the lazy dog"))
	want := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestSignHMACDeterministicAndSensitive(t *testing.T) {
	body := []byte(`{"event":"meeting.created","timestamp":"2026-01-01T00:00:00.000Z","data":{"id":"m1"}}`)
	a := SignHMAC("s3cret", body)
	b := SignHMAC("s3cret", body)
	if a != b {
		t.Fatalf("signature not deterministic: %s vs %s", a, b)
	}
	flipped := append([]byte(nil), body...)
	flipped[len(flipped)-3] = '2'
	if SignHMAC("s3cret", flipped) == a {
		t.Fatal("changing one byte of the payload must change the signature")
	}
	if SignHMAC("other", body) == a {
		t.Fatal("changing the secret must change the signature")
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"x":1}`)
	sig := SignHMAC("k", body)
	if !VerifyHMAC("k", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyHMAC("k", []byte(`{"x":2}`), sig) {
		t.Fatal("signature accepted for a different body")
	}
	if VerifyHMAC("k", body, "not-hex") {
		t.Fatal("non-hex signature accepted")
	}
}
