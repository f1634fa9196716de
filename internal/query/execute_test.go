package query

import "testing"

func TestNormalizeLimitOffset_Defaults(t *testing.T) {
	limit, offset, err := NormalizeLimitOffset(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != DefaultLimit || offset != 0 {
		t.Fatalf("got (%d, %d), want (%d, 0)", limit, offset, DefaultLimit)
	}
}

func TestNormalizeLimitOffset_Bounds(t *testing.T) {
	if _, _, err := NormalizeLimitOffset(MaxLimit+1, 0); err == nil {
		t.Fatal("a limit above MaxLimit should be rejected")
	}
	if _, _, err := NormalizeLimitOffset(-1, 0); err == nil {
		t.Fatal("a negative limit should be rejected")
	}
	if _, _, err := NormalizeLimitOffset(10, -1); err == nil {
		t.Fatal("a negative offset should be rejected")
	}
	limit, offset, err := NormalizeLimitOffset(MaxLimit, 5)
	if err != nil || limit != MaxLimit || offset != 5 {
		t.Fatalf("got (%d, %d, %v), want (%d, 5, nil)", limit, offset, err, MaxLimit)
	}
}
