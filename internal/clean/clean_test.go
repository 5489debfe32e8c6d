package clean

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "html entities decoded",
			in:   "AT&amp;T launches &quot;new&quot; model",
			want: `AT&T launches "new" model`,
		},
		{
			name: "tags stripped",
			in:   "<p>Hello <b>world</b></p>",
			want: "Hello world",
		},
		{
			name: "script content removed",
			in:   "<p>visible</p><script>var hidden = 1;</script>",
			want: "visible",
		},
		{
			name: "whitespace collapsed",
			in:   "too   many\n\n\t spaces  here",
			want: "too many spaces here",
		},
		{
			name: "combining accent composed",
			in:   "café",
			want: "café",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLongEnough(t *testing.T) {
	exactly100 := strings.Repeat("a", 100)

	if LongEnough(exactly100, 100) {
		t.Error("exactly 100 chars should not pass a 100-char minimum")
	}
	if !LongEnough(exactly100+"b", 100) {
		t.Error("101 chars should pass a 100-char minimum")
	}
	if LongEnough("   "+exactly100[:50]+"   ", 100) {
		t.Error("padding whitespace must not count toward the minimum")
	}
}
