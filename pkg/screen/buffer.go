// Package screen holds the emulated machine's character display and draws it
// onto a terminal.
package screen

import (
	"sync"
)

// Screen geometry, fixed by the Model III memory map.
const (
	Rows    = 16
	Columns = 64
	Begin   = 0x3C00 // 15360
	End     = Begin + Rows*Columns
	Size    = End - Begin
)

// Parity is the even/odd class of a cell's column.
type Parity int

const (
	Even Parity = iota
	Odd
)

// String returns the string representation of Parity
func (p Parity) String() string {
	if p == Odd {
		return "odd"
	}
	return "even"
}

// Cell is one character position of the display.
type Cell struct {
	Address int
	Glyph   byte
}

// Row returns the cell's row, 0 at the top.
func (c Cell) Row() int {
	return (c.Address - Begin) / Columns
}

// Column returns the cell's column, 0 at the left.
func (c Cell) Column() int {
	return (c.Address - Begin) % Columns
}

// Parity returns the column parity. It depends only on the address.
func (c Cell) Parity() Parity {
	return ParityOf(c.Address)
}

// ParityOf returns the column parity of a screen address.
func ParityOf(addr int) Parity {
	if (addr-Begin)%Columns%2 == 1 {
		return Odd
	}
	return Even
}

// InRange reports whether addr is a display address.
func InRange(addr int) bool {
	return addr >= Begin && addr < End
}

// Buffer is the display state: every cell plus the expanded (wide glyph)
// flag. It is changed only by applying updates from the server.
type Buffer struct {
	cells    [Size]Cell
	expanded bool

	// Dirty tracking for the renderer
	dirtyRows [Rows]bool
	dirty     bool

	mutex sync.RWMutex
}

// NewBuffer creates a blank display. Every cell starts as a space.
func NewBuffer() *Buffer {
	b := &Buffer{}
	for i := range b.cells {
		b.cells[i] = Cell{Address: Begin + i, Glyph: ' '}
	}
	b.markAllDirty()
	return b
}

// ApplyPoke writes data to consecutive addresses starting at start. Bytes
// whose address falls outside the display are skipped; the server may send
// more than the visible region.
func (b *Buffer) ApplyPoke(start int, data []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i, value := range data {
		addr := start + i
		if !InRange(addr) {
			continue
		}

		cell := &b.cells[addr-Begin]
		if cell.Glyph == value {
			continue
		}
		cell.Glyph = value
		b.dirtyRows[cell.Row()] = true
		b.dirty = true
	}
}

// SetExpanded switches wide-glyph mode. Glyphs are unaffected.
func (b *Buffer) SetExpanded(expanded bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.expanded == expanded {
		return
	}
	b.expanded = expanded
	b.markAllDirty()
}

// Expanded reports whether wide-glyph mode is on.
func (b *Buffer) Expanded() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.expanded
}

// Cell returns the cell at addr. ok is false for addresses outside the
// display.
func (b *Buffer) Cell(addr int) (Cell, bool) {
	if !InRange(addr) {
		return Cell{}, false
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.cells[addr-Begin], true
}

// Glyph returns the character code at addr, or 0 outside the display.
func (b *Buffer) Glyph(addr int) byte {
	cell, _ := b.Cell(addr)
	return cell.Glyph
}

// Snapshot returns a copy of all cells in address order.
func (b *Buffer) Snapshot() []Cell {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	out := make([]Cell, Size)
	copy(out, b.cells[:])
	return out
}

// RowText returns the raw character codes of one row.
func (b *Buffer) RowText(row int) []byte {
	if row < 0 || row >= Rows {
		return nil
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	out := make([]byte, Columns)
	for col := 0; col < Columns; col++ {
		out[col] = b.cells[row*Columns+col].Glyph
	}
	return out
}

// IsDirty reports whether anything changed since the last ClearDirty.
func (b *Buffer) IsDirty() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.dirty
}

// DirtyRows returns the rows changed since the last ClearDirty.
func (b *Buffer) DirtyRows() []int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	var rows []int
	for row, d := range b.dirtyRows {
		if d {
			rows = append(rows, row)
		}
	}
	return rows
}

// ClearDirty resets dirty tracking after a redraw.
func (b *Buffer) ClearDirty() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.dirtyRows = [Rows]bool{}
	b.dirty = false
}

// MarkAllDirty forces a full redraw, e.g. after the terminal is resized.
func (b *Buffer) MarkAllDirty() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.markAllDirty()
}

func (b *Buffer) markAllDirty() {
	for row := range b.dirtyRows {
		b.dirtyRows[row] = true
	}
	b.dirty = true
}
