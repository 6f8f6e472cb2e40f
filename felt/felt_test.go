package felt

import "testing"

func TestFromBytesBEReducesModP(t *testing.T) {
	// 32 bytes of 0xff is larger than P, so it must come back reduced.
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}
	f := FromBytesBE(raw)

	if f.inner.Cmp(Prime) >= 0 {
		t.Fatalf("expected reduced value below P, got %s", f.Hex())
	}
}

func TestAddSubRoundTrip(t *testing.T) {
	a := FromUint64(10)
	b := FromUint64(3)

	sum := a.Add(b)
	if !sum.Eq(FromUint64(13)) {
		t.Fatalf("10+3: got %s", sum.Hex())
	}

	back := sum.Sub(b)
	if !back.Eq(a) {
		t.Fatalf("13-3: got %s, want %s", back.Hex(), a.Hex())
	}
}

func TestSubWraparound(t *testing.T) {
	zero := Zero()
	one := FromUint64(1)
	result := zero.Sub(one)
	if result.IsZero() {
		t.Fatal("0-1 should not be zero mod P")
	}
}

func TestSelectorIsDeterministicAndFitsField(t *testing.T) {
	s1 := Selector("transfer")
	s2 := Selector("transfer")
	if !s1.Eq(s2) {
		t.Fatal("selector must be deterministic")
	}

	other := Selector("balanceOf")
	if s1.Eq(other) {
		t.Fatal("distinct names must hash to distinct selectors")
	}

	if s1.inner.Cmp(Prime) >= 0 {
		t.Fatal("selector must fit inside the field")
	}
}
