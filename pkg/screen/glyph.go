package screen

import (
	"github.com/mattn/go-runewidth"
)

// fallbackRune is drawn when a glyph's rune would not occupy exactly one
// terminal cell.
const fallbackRune = '#'

var glyphRunes = buildGlyphRunes()

func buildGlyphRunes() [256]rune {
	var runes [256]rune

	for code := 0; code < 256; code++ {
		var r rune
		switch {
		case code < 32:
			// Control codes show the upper-case row.
			r = rune(code + 64)
		case code < 128:
			r = rune(code)
		default:
			// 128-191 are 2x3 block graphics; 192-255 repeat them.
			r = blockRune(code & 0x3F)
		}

		if runewidth.RuneWidth(r) != 1 {
			r = fallbackRune
		}
		runes[code] = r
	}

	return runes
}

// blockRune returns the Unicode character for a 2x3 graphics pattern. Bit 0
// is the top-left pixel, bit 1 top-right, down to bit 5 bottom-right, which
// is the order Unicode numbers its sextants in.
func blockRune(pattern int) rune {
	switch pattern {
	case 0:
		return ' '
	case 0x15:
		return '▌'
	case 0x2A:
		return '▐'
	case 0x3F:
		return '█'
	}

	// U+1FB00 starts at pattern 1 and skips the two half blocks.
	index := pattern - 1
	if pattern > 0x15 {
		index--
	}
	if pattern > 0x2A {
		index--
	}
	return rune(0x1FB00 + index)
}

// GlyphRune returns the rune used to draw a character code.
func GlyphRune(code byte) rune {
	return glyphRunes[code]
}
