package ipfilter

import "testing"

func TestParseListEmpty(t *testing.T) {
	l, err := ParseList("")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if !l.Empty() {
		t.Fatal("expected empty list")
	}
}

func TestParseListBareHost(t *testing.T) {
	l, err := ParseList("10.0.0.1")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if got := l.Filtered([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}); got != FilteredSrc {
		t.Fatalf("Filtered = %d, want FilteredSrc", got)
	}
}

func TestParseListCIDR(t *testing.T) {
	l, err := ParseList("192.168.0.0/16, 10.1.0.0/24")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	cases := []struct {
		src, dst [4]byte
		want     uint8
	}{
		{[4]byte{192, 168, 5, 5}, [4]byte{8, 8, 8, 8}, FilteredSrc},
		{[4]byte{8, 8, 8, 8}, [4]byte{10, 1, 0, 200}, FilteredDst},
		{[4]byte{192, 168, 1, 1}, [4]byte{192, 168, 2, 2}, FilteredSrc | FilteredDst},
		{[4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 0},
	}
	for _, c := range cases {
		if got := l.Filtered(c.src, c.dst); got != c.want {
			t.Errorf("Filtered(%v, %v) = %d, want %d", c.src, c.dst, got, c.want)
		}
	}
}

func TestParseListInvalidEntry(t *testing.T) {
	if _, err := ParseList("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid CIDR entry")
	}
}

func TestParseListRejectsIPv6(t *testing.T) {
	if _, err := ParseList("::1"); err == nil {
		t.Fatal("expected error for IPv6 entry")
	}
}

func TestMaskForPrefix(t *testing.T) {
	if got := maskForPrefix(32); got != 0xffffffff {
		t.Fatalf("maskForPrefix(32) = %#x, want 0xffffffff", got)
	}
	if got := maskForPrefix(24); got != 0xffffff00 {
		t.Fatalf("maskForPrefix(24) = %#x, want 0xffffff00", got)
	}
	if got := maskForPrefix(0); got != 0 {
		t.Fatalf("maskForPrefix(0) = %#x, want 0", got)
	}
}
