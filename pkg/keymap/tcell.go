package keymap

import (
	"github.com/gdamore/tcell/v2"
)

// punctuation maps a typed character to the US-layout key that produces it
// and whether Shift was needed.
var punctuation = map[rune]struct {
	code    Code
	shifted bool
}{
	'=': {CodeEqual, false}, '+': {CodeEqual, true},
	',': {CodeComma, false}, '<': {CodeComma, true},
	'.': {CodePeriod, false}, '>': {CodePeriod, true},
	'`': {CodeBacktick, false}, '~': {CodeBacktick, true},
	';': {CodeSemicolon, false}, ':': {CodeSemicolon, true},
	'\'': {CodeQuote, false}, '"': {CodeQuote, true},
	'-': {CodeHyphen, false}, '_': {CodeHyphen, true},
	'/': {CodeSlash, false}, '?': {CodeSlash, true},
	' ': {CodeSpace, false},

	')': {CodeDigit0, true}, '!': {CodeDigit0 + 1, true},
	'@': {CodeDigit0 + 2, true}, '#': {CodeDigit0 + 3, true},
	'$': {CodeDigit0 + 4, true}, '%': {CodeDigit0 + 5, true},
	'^': {CodeDigit0 + 6, true}, '&': {CodeDigit0 + 7, true},
	'*': {CodeDigit0 + 8, true}, '(': {CodeDigit0 + 9, true},
}

// FromTcell converts a terminal key event into the physical key code and
// shift state a keyboard would have reported. Terminals deliver typed
// characters rather than key positions, so a rune is mapped back to the key
// that types it on a US layout. ok is false for events with no key code
// (control chords, function keys, characters not on the layout).
func FromTcell(ev *tcell.EventKey) (code Code, shifted bool, ok bool) {
	shift := ev.Modifiers()&tcell.ModShift != 0

	switch ev.Key() {
	case tcell.KeyEnter:
		return CodeEnter, shift, true
	case tcell.KeyTab:
		return CodeTab, shift, true
	case tcell.KeyBacktab:
		return CodeTab, true, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return CodeBackspace, shift, true
	case tcell.KeyEscape:
		return CodeEscape, shift, true
	case tcell.KeyLeft:
		return CodeLeft, shift, true
	case tcell.KeyRight:
		return CodeRight, shift, true
	case tcell.KeyUp:
		return CodeUp, shift, true
	case tcell.KeyDown:
		return CodeDown, shift, true
	case tcell.KeyRune:
		return fromRune(ev.Rune())
	}

	return 0, false, false
}

func fromRune(r rune) (Code, bool, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return CodeKeyA + Code(r-'a'), false, true
	case r >= 'A' && r <= 'Z':
		return CodeKeyA + Code(r-'A'), true, true
	case r >= '0' && r <= '9':
		return CodeDigit0 + Code(r-'0'), false, true
	}

	if p, found := punctuation[r]; found {
		return p.code, p.shifted, true
	}
	return 0, false, false
}

// TranslateTcell is FromTcell followed by Translate. Events without a key
// code translate to the empty token.
func TranslateTcell(ev *tcell.EventKey) Result {
	code, shifted, ok := FromTcell(ev)
	if !ok {
		return Result{}
	}
	return Translate(code, shifted)
}
