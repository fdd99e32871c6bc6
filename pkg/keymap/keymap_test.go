package keymap

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestTranslate_Table(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		shifted  bool
		want     Token
		suppress bool
	}{
		{"enter", CodeEnter, false, TokenEnter, false},
		{"space", CodeSpace, false, " ", false},
		{"letter unshifted", CodeKeyA, false, "a", false},
		{"letter shifted", CodeKeyA, true, "A", false},
		{"last letter", CodeKeyA + 25, true, "Z", false},
		{"digit", CodeDigit0 + 5, false, "5", false},
		{"shifted 0", CodeDigit0, true, ")", false},
		{"shifted 1", CodeDigit0 + 1, true, "!", false},
		{"shifted 2", CodeDigit0 + 2, true, "@", false},
		{"shifted 6", CodeDigit0 + 6, true, "^", false},
		{"shifted 9", CodeDigit0 + 9, true, "(", false},
		{"backspace", CodeBackspace, false, TokenLeft, true},
		{"equal", CodeEqual, false, "=", false},
		{"plus", CodeEqual, true, "+", false},
		{"comma", CodeComma, true, "<", false},
		{"period", CodePeriod, true, ">", false},
		{"backtick", CodeBacktick, true, "~", false},
		{"semicolon", CodeSemicolon, true, ":", false},
		{"quote", CodeQuote, true, "\"", false},
		{"hyphen", CodeHyphen, true, "_", false},
		{"slash", CodeSlash, true, "?", false},
		{"shift", CodeShift, false, TokenShift, false},
		{"left", CodeLeft, false, TokenLeft, false},
		{"right", CodeRight, true, TokenRight, false},
		{"up", CodeUp, false, TokenUp, false},
		{"down", CodeDown, false, TokenDown, false},
		{"escape", CodeEscape, false, TokenBreak, false},
		{"tab", CodeTab, false, TokenClear, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.code, tt.shifted)
			if got.Token != tt.want {
				t.Errorf("Translate(%d, %v).Token = %q, want %q", tt.code, tt.shifted, got.Token, tt.want)
			}
			if got.SuppressDefault != tt.suppress {
				t.Errorf("Translate(%d, %v).SuppressDefault = %v, want %v", tt.code, tt.shifted, got.SuppressDefault, tt.suppress)
			}
		})
	}
}

func TestTranslate_UnmappedIsEmpty(t *testing.T) {
	known := make(map[Code]bool)
	for _, c := range Codes() {
		known[c] = true
	}

	for code := Code(0); code < 512; code++ {
		if known[code] {
			continue
		}
		for _, shifted := range []bool{false, true} {
			if got := Translate(code, shifted); !got.Token.IsEmpty() || got.SuppressDefault {
				t.Errorf("Translate(%d, %v) = %+v, want empty result", code, shifted, got)
			}
		}
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	for _, code := range Codes() {
		for _, shifted := range []bool{false, true} {
			first := Translate(code, shifted)
			for i := 0; i < 3; i++ {
				if again := Translate(code, shifted); again != first {
					t.Fatalf("Translate(%d, %v) changed from %+v to %+v", code, shifted, first, again)
				}
			}
			if first.Token.IsEmpty() {
				t.Errorf("table code %d shifted=%v maps to the empty token", code, shifted)
			}
		}
	}
}

func TestTranslate_ShiftA(t *testing.T) {
	if got := Translate(CodeKeyA, true).Token; got != "A" {
		t.Errorf("Shift+A = %q, want \"A\"", got)
	}
	if got := Translate(CodeKeyA, false).Token; got != "a" {
		t.Errorf("A = %q, want \"a\"", got)
	}
}

func TestFromTcell(t *testing.T) {
	tests := []struct {
		name    string
		event   *tcell.EventKey
		code    Code
		shifted bool
		ok      bool
	}{
		{"lower rune", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), CodeKeyA + 16, false, true},
		{"upper rune", tcell.NewEventKey(tcell.KeyRune, 'Q', tcell.ModShift), CodeKeyA + 16, true, true},
		{"digit", tcell.NewEventKey(tcell.KeyRune, '7', tcell.ModNone), CodeDigit0 + 7, false, true},
		{"bang", tcell.NewEventKey(tcell.KeyRune, '!', tcell.ModNone), CodeDigit0 + 1, true, true},
		{"colon", tcell.NewEventKey(tcell.KeyRune, ':', tcell.ModNone), CodeSemicolon, true, true},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), CodeSpace, false, true},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), CodeEnter, false, true},
		{"backspace", tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), CodeBackspace, false, true},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), CodeTab, true, true},
		{"arrow", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), CodeUp, false, true},
		{"function key", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), 0, false, false},
		{"bracket", tcell.NewEventKey(tcell.KeyRune, '[', tcell.ModNone), 0, false, false},
		{"non ascii", tcell.NewEventKey(tcell.KeyRune, 'é', tcell.ModNone), 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, shifted, ok := FromTcell(tt.event)
			if ok != tt.ok || code != tt.code || shifted != tt.shifted {
				t.Errorf("FromTcell() = (%d, %v, %v), want (%d, %v, %v)",
					code, shifted, ok, tt.code, tt.shifted, tt.ok)
			}
		})
	}
}

func TestTranslateTcell_RoundTripsTypedCharacters(t *testing.T) {
	// Every character the translator can produce should come back unchanged
	// when typed into a terminal.
	for _, r := range "abcxyzABCXYZ0123456789)!@#$%^&*(=+,<.>`~;:'\"-_/? " {
		ev := tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
		if got := TranslateTcell(ev).Token; got != Token(r) {
			t.Errorf("typed %q translated to %q", r, got)
		}
	}
}

func TestTranslateTcell_Backspace(t *testing.T) {
	got := TranslateTcell(tcell.NewEventKey(tcell.KeyBackspace, 0, tcell.ModNone))
	if got.Token != TokenLeft || !got.SuppressDefault {
		t.Errorf("backspace = %+v, want Left with SuppressDefault", got)
	}
}
