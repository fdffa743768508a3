package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Version
	}{
		{"0.6.0", New(0, 6, 0)},
		{"1.0.0", New(1, 0, 0)},
		{"1.2.3", New(1, 2, 3)},
		{"10.23.4096", New(10, 23, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if !v.Equal(tt.want) {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"1.0",
		"abc",
		"1.0.0.0",
		"1.x.0",
		"-1.0.0",
		"1..0",
		"4294967296.0.0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestVersion_String(t *testing.T) {
	v := New(3, 14, 15)
	if got := v.String(); got != "3.14.15" {
		t.Errorf("String() = %q, want %q", got, "3.14.15")
	}

	back, err := Parse(v.String())
	if err != nil {
		t.Fatalf("Parse(String()) failed: %v", err)
	}
	if !back.Equal(v) {
		t.Errorf("round trip = %s, want %s", back, v)
	}
}

func TestVersion_EqualIsExact(t *testing.T) {
	base := New(1, 2, 3)

	tests := []struct {
		name  string
		other Version
		want  bool
	}{
		{"identical", New(1, 2, 3), true},
		{"patch differs", New(1, 2, 4), false},
		{"minor differs", New(1, 3, 3), false},
		{"major differs", New(2, 2, 3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal(%s) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}
}

func TestVersion_Less(t *testing.T) {
	if !New(1, 2, 3).Less(New(1, 2, 4)) {
		t.Error("1.2.3 should be less than 1.2.4")
	}
	if !New(1, 9, 9).Less(New(2, 0, 0)) {
		t.Error("1.9.9 should be less than 2.0.0")
	}
	if New(1, 2, 3).Less(New(1, 2, 3)) {
		t.Error("equal versions must not be less")
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("not-a-version")
}
