// Package keymap translates physical key events into the logical key tokens
// understood by the emulated TRS-80 keyboard.
package keymap

// Code is a platform key code, numbered the way browsers report them
// (KeyboardEvent.keyCode). Terminal events are converted to a Code by
// FromTcell before translation.
type Code int

// Key codes known to the translator
const (
	CodeBackspace Code = 8
	CodeTab       Code = 9
	CodeEnter     Code = 13
	CodeShift     Code = 16
	CodeEscape    Code = 27
	CodeSpace     Code = 32
	CodeLeft      Code = 37
	CodeUp        Code = 38
	CodeRight     Code = 39
	CodeDown      Code = 40

	CodeDigit0 Code = 48 // through CodeDigit0+9
	CodeKeyA   Code = 65 // through CodeKeyA+25

	CodeSemicolon Code = 186
	CodeEqual     Code = 187
	CodeComma     Code = 188
	CodeHyphen    Code = 189
	CodePeriod    Code = 190
	CodeSlash     Code = 191
	CodeBacktick  Code = 192
	CodeQuote     Code = 222
)

// Token is a logical key as the remote machine names it: a single printable
// character or one of the named tokens below. The empty token means the
// event should be ignored.
type Token string

// Named tokens
const (
	TokenNone  Token = ""
	TokenEnter Token = "Enter"
	TokenLeft  Token = "Left"
	TokenRight Token = "Right"
	TokenUp    Token = "Up"
	TokenDown  Token = "Down"
	TokenShift Token = "Shift"
	TokenBreak Token = "Break"
	TokenClear Token = "Clear"
)

// IsEmpty reports whether the token means "ignore this event".
func (t Token) IsEmpty() bool {
	return t == TokenNone
}

// Result is the outcome of translating one key event.
type Result struct {
	Token Token

	// SuppressDefault marks keys a host would otherwise act on itself,
	// such as Tab moving focus or Backspace navigating back. A terminal
	// has no such action, so the console always sends them on.
	SuppressDefault bool
}

// binding is one row of the translation table.
type binding struct {
	plain    Token
	shifted  Token
	suppress bool
}

func same(t Token) binding {
	return binding{plain: t, shifted: t}
}

var table = buildTable()

func buildTable() map[Code]binding {
	t := map[Code]binding{
		CodeEnter:     same(TokenEnter),
		CodeSpace:     same(" "),
		CodeBackspace: {plain: TokenLeft, shifted: TokenLeft, suppress: true},
		CodeShift:     same(TokenShift),
		CodeLeft:      same(TokenLeft),
		CodeRight:     same(TokenRight),
		CodeUp:        same(TokenUp),
		CodeDown:      same(TokenDown),
		CodeEscape:    same(TokenBreak),
		CodeTab:       {plain: TokenClear, shifted: TokenClear, suppress: true},

		CodeEqual:     {plain: "=", shifted: "+"},
		CodeComma:     {plain: ",", shifted: "<"},
		CodePeriod:    {plain: ".", shifted: ">"},
		CodeBacktick:  {plain: "`", shifted: "~"},
		CodeSemicolon: {plain: ";", shifted: ":"},
		CodeQuote:     {plain: "'", shifted: "\""},
		CodeHyphen:    {plain: "-", shifted: "_"},
		CodeSlash:     {plain: "/", shifted: "?"},
	}

	for i := 0; i < 26; i++ {
		lower := Token(rune('a' + i))
		upper := Token(rune('A' + i))
		t[CodeKeyA+Code(i)] = binding{plain: lower, shifted: upper}
	}

	shiftedDigits := ")!@#$%^&*("
	for i := 0; i < 10; i++ {
		t[CodeDigit0+Code(i)] = binding{
			plain:   Token(rune('0' + i)),
			shifted: Token(rune(shiftedDigits[i])),
		}
	}

	return t
}

// Translate maps a key code and shift state to a logical key. Codes outside
// the table produce the empty token.
func Translate(code Code, shifted bool) Result {
	b, ok := table[code]
	if !ok {
		return Result{}
	}

	token := b.plain
	if shifted {
		token = b.shifted
	}
	return Result{Token: token, SuppressDefault: b.suppress}
}

// Codes returns every code the translator knows, in no particular order.
func Codes() []Code {
	codes := make([]Code, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	return codes
}
