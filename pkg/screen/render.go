package screen

import (
	"github.com/gdamore/tcell/v2"
)

// Renderer draws a Buffer onto a tcell screen.
type Renderer struct {
	buffer *Buffer
	target tcell.Screen
	style  tcell.Style

	// Top-left corner of the display on the terminal
	originX int
	originY int
}

// NewRenderer creates a renderer that draws buffer at the top-left corner of
// target.
func NewRenderer(buffer *Buffer, target tcell.Screen) *Renderer {
	return &Renderer{
		buffer: buffer,
		target: target,
		style:  tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack),
	}
}

// SetOrigin moves the display on the terminal.
func (r *Renderer) SetOrigin(x, y int) {
	r.originX = x
	r.originY = y
	r.buffer.MarkAllDirty()
}

// SetStyle sets the colours used for the display.
func (r *Renderer) SetStyle(style tcell.Style) {
	r.style = style
	r.buffer.MarkAllDirty()
}

// Draw redraws the rows that changed since the last call. It returns whether
// anything was drawn; the caller decides when to Show.
func (r *Renderer) Draw() bool {
	rows := r.buffer.DirtyRows()
	if len(rows) == 0 {
		return false
	}

	expanded := r.buffer.Expanded()
	for _, row := range rows {
		r.drawRow(row, r.buffer.RowText(row), expanded)
	}
	r.buffer.ClearDirty()
	return true
}

func (r *Renderer) drawRow(row int, codes []byte, expanded bool) {
	y := r.originY + row
	for col, glyph := range RowRunes(codes, expanded) {
		r.target.SetContent(r.originX+col, y, glyph, nil, r.style)
	}
}

// RowRunes returns the runes that show one row of character codes, one per
// display column. Wide mode shows the even columns only, each two columns
// wide.
func RowRunes(codes []byte, expanded bool) []rune {
	runes := make([]rune, len(codes))
	if !expanded {
		for col, code := range codes {
			runes[col] = GlyphRune(code)
		}
		return runes
	}

	for col := 0; col+1 < len(codes); col += 2 {
		runes[col], runes[col+1] = widenGlyph(codes[col])
	}
	return runes
}

// widenGlyph returns the two runes that draw a character at double width.
// Text is followed by a space; block graphics stretch each pixel column
// across one terminal cell.
func widenGlyph(code byte) (rune, rune) {
	if code < 128 {
		return GlyphRune(code), ' '
	}

	pattern := int(code & 0x3F)
	var left, right int
	for row := 0; row < 3; row++ {
		if pattern&(1<<(2*row)) != 0 {
			left |= 3 << (2 * row)
		}
		if pattern&(1<<(2*row+1)) != 0 {
			right |= 3 << (2 * row)
		}
	}
	return GlyphRune(byte(0x80 | left)), GlyphRune(byte(0x80 | right))
}
