package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "plain text untouched",
			in:   "Hello, world!",
			want: "Hello, world!",
		},
		{
			name: "whitespace collapsed",
			in:   "too   many\t\tspaces\n\nhere",
			want: "too many spaces here",
		},
		{
			name: "edges trimmed",
			in:   "  padded  ",
			want: "padded",
		},
		{
			name: "disallowed characters stripped",
			in:   `hi <script>alert("x")</script> there`,
			want: "hi scriptalert(x)script there",
		},
		{
			name: "allowed punctuation kept",
			in:   "keep . , ! ? ; : ( ) - all",
			want: "keep . , ! ? ; : ( ) - all",
		},
		{
			name: "unicode letters kept",
			in:   "héllo wörld",
			want: "héllo wörld",
		},
		{
			name: "only disallowed characters",
			in:   "@#$%^&*",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Truncates(t *testing.T) {
	in := strings.Repeat("a", MaxLen+500)
	got := Clean(in)
	if n := utf8.RuneCountInString(got); n != MaxLen {
		t.Errorf("Clean returned %d runes, want %d", n, MaxLen)
	}
}

func TestClean_TruncatesRunes(t *testing.T) {
	// Multi-byte runes must be counted as single units, never split.
	in := strings.Repeat("é", MaxLen+10)
	got := Clean(in)
	if n := utf8.RuneCountInString(got); n != MaxLen {
		t.Errorf("Clean returned %d runes, want %d", n, MaxLen)
	}
	if !utf8.ValidString(got) {
		t.Error("Clean produced invalid UTF-8")
	}
}

func TestClean_NoTrailingSpaceAfterTruncation(t *testing.T) {
	// A space landing exactly on the cut boundary must not survive.
	in := strings.Repeat("a ", MaxLen)
	got := Clean(in)
	if strings.HasSuffix(got, " ") {
		t.Error("Clean left trailing whitespace after truncation")
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"  messy\t<input>  with   junk!  ",
		strings.Repeat("word ", 400),
		"unicode héllo @@@ wörld\n\n",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestClean_OutputAlwaysWithinAllowList(t *testing.T) {
	inputs := []string{
		"normal",
		"тест текст",
		"emoji 😀 stripped",
		`quotes "in" 'here'`,
		strings.Repeat("x@y ", 600),
	}
	for _, in := range inputs {
		got := Clean(in)
		if utf8.RuneCountInString(got) > MaxLen {
			t.Errorf("Clean(%q) exceeds %d runes", in, MaxLen)
		}
		if disallowed.MatchString(got) {
			t.Errorf("Clean(%q) = %q contains disallowed characters", in, got)
		}
	}
}
