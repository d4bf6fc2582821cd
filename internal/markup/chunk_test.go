package markup

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_ShortText(t *testing.T) {
	got := Split("short answer", 500)
	if len(got) != 1 || got[0] != "short answer" {
		t.Errorf("Split() = %v, want single chunk", got)
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Split("   \n  ", 500); got != nil {
		t.Errorf("Split() = %v, want nil for blank input", got)
	}
}

func TestSplit_PrefersNewline(t *testing.T) {
	got := Split("aaaa aaaa\nbb cc", 12)
	want := []string{"aaaa aaaa", "bb cc"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_PrefersSpace(t *testing.T) {
	got := Split("aaaa bbbb cccc", 9)
	want := []string{"aaaa bbbb", "cccc"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_HardCut(t *testing.T) {
	got := Split("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if len(got) != len(want) {
		t.Fatalf("Split() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_Invariants(t *testing.T) {
	text := strings.Repeat("слово два ", 200) + "\n" + strings.Repeat("x", 90)
	limit := 77

	chunks := Split(text, limit)
	if len(chunks) == 0 {
		t.Fatal("Split() returned no chunks")
	}
	for i, c := range chunks {
		if c == "" {
			t.Errorf("chunk[%d] is empty", i)
		}
		if n := utf8.RuneCountInString(c); n > limit {
			t.Errorf("chunk[%d] has %d runes, limit %d", i, n, limit)
		}
		if !utf8.ValidString(c) {
			t.Errorf("chunk[%d] is not valid UTF-8: %q", i, c)
		}
		if c != strings.TrimSpace(c) {
			t.Errorf("chunk[%d] has outer whitespace: %q", i, c)
		}
	}
}

func TestSplit_NonPositiveLimit(t *testing.T) {
	got := Split("anything at all", 0)
	if len(got) != 1 || got[0] != "anything at all" {
		t.Errorf("Split() = %v, want whole text as one chunk", got)
	}
}
