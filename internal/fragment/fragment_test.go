package fragment

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, payload []byte, maxFragLen, minCompress int) []byte {
	t.Helper()

	s := NewSender(maxFragLen, minCompress)
	packets, err := s.Split(payload)
	if err != nil {
		t.Fatalf("splitting: %v", err)
	}

	r := NewReassembler()
	var got []byte
	for i, p := range packets {
		out, done, err := r.Feed(p)
		if err != nil {
			t.Fatalf("feeding fragment %d: %v", i, err)
		}
		if done {
			got = out
		}
	}
	return got
}

func TestSmallPayloadUncompressed(t *testing.T) {
	payload := []byte("hello world")
	got := roundTrip(t, payload, 1024, 256)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: got %q, want %q", got, payload)
	}
}

func TestLargePayloadCompressedAndSplit(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	got := roundTrip(t, payload, 1024, 256)
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: lengths got=%d want=%d", len(got), len(payload))
	}
}

func TestFragmentLengthHonorsMax(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 5000)
	s := NewSender(1024, 1<<20) // disable compression to test raw fragment sizing
	packets, err := s.Split(payload)
	if err != nil {
		t.Fatalf("splitting: %v", err)
	}
	if len(packets) < 5 {
		t.Fatalf("expected payload to require multiple fragments, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p) > 1024 {
			t.Errorf("fragment %d is %d bytes, exceeds max fragment length 1024", i, len(p))
		}
	}
}

func TestExactlyAtCompressionThreshold(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 256)
	got := roundTrip(t, payload, 1024, 256)
	if !bytes.Equal(got, payload) {
		t.Error("round trip failed exactly at compression threshold")
	}
}

func TestEmptyPayload(t *testing.T) {
	got := roundTrip(t, []byte{}, 1024, 256)
	if len(got) != 0 {
		t.Errorf("expected empty round trip, got %d bytes", len(got))
	}
}
