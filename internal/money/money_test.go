package money

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"150.00", 15000},
		{"150", 15000},
		{"150.5", 15050},
		{"0.05", 5},
		{"-3.25", -325},
	}
	for _, c := range cases {
		got, err := ParseDecimal(c.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseDecimal(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseDecimalRejectsTooManyDigits(t *testing.T) {
	if _, err := ParseDecimal("1.005"); err == nil {
		t.Fatalf("expected error for 3 fraction digits")
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestString(t *testing.T) {
	if s := Amount(62500).String(); s != "625.00" {
		t.Fatalf("expected 625.00, got %s", s)
	}
	if s := Amount(-5).String(); s != "-0.05" {
		t.Fatalf("expected -0.05, got %s", s)
	}
}

func TestHalfRoundsUp(t *testing.T) {
	if got := Amount(15001).Half(); got != 7501 {
		t.Fatalf("expected 7501, got %d", got)
	}
	if got := Amount(30000).Half(); got != 15000 {
		t.Fatalf("expected 15000, got %d", got)
	}
}

func TestMulFloatRoundsHalfUp(t *testing.T) {
	// 10.00 * 1.5 km = 15.00
	if got := Amount(1000).MulFloat(1.5); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
	// 0.01 * 0.5 rounds up to 0.01
	if got := Amount(1).MulFloat(0.5); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
