// Package menu provides the control menu, media picker and text prompt
// drawn over the console.
package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// EjectLabel is the picker entry that removes the current medium.
const EjectLabel = "(eject)"

var (
	frameStyle    = tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	selectedStyle = tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	disabledStyle = tcell.StyleDefault.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorGray)
)

// Layer is anything the Overlay can stack over the console.
type Layer interface {
	Show()
	Hide()
	Draw(screen tcell.Screen)
	HandleKey(ev *tcell.EventKey) bool
	IsVisible() bool
}

// Menu represents a vertical list of actions
type Menu struct {
	items    []Item
	selected int
	visible  bool
	title    string

	width  int
	height int

	// Reports action errors; the menu closes either way
	onError func(error)
}

// Item represents a single menu item
type Item struct {
	Label     string
	Shortcut  rune
	Action    func() error
	Enabled   bool
	Separator bool
}

// New creates a hidden menu
func New(title string) *Menu {
	m := &Menu{title: title}
	m.updateDimensions()
	return m
}

// AddItem adds an enabled item. A zero shortcut means none.
func (m *Menu) AddItem(label string, shortcut rune, action func() error) {
	m.items = append(m.items, Item{
		Label:    label,
		Shortcut: shortcut,
		Action:   action,
		Enabled:  true,
	})
	m.updateDimensions()
	m.fixSelection()
}

// AddSeparator adds a separator line
func (m *Menu) AddSeparator() {
	m.items = append(m.items, Item{Separator: true})
	m.updateDimensions()
}

// SetOnError sets the callback receiving action errors
func (m *Menu) SetOnError(callback func(error)) {
	m.onError = callback
}

// Show makes the menu visible with the first usable item selected
func (m *Menu) Show() {
	m.visible = true
	m.selected = 0
	m.fixSelection()
}

// Hide hides the menu
func (m *Menu) Hide() {
	m.visible = false
}

// IsVisible returns whether the menu is visible
func (m *Menu) IsVisible() bool {
	return m.visible
}

// Selected returns the label of the highlighted item
func (m *Menu) Selected() string {
	if m.selected < 0 || m.selected >= len(m.items) {
		return ""
	}
	return m.items[m.selected].Label
}

// Labels returns the item labels, separators excluded
func (m *Menu) Labels() []string {
	labels := make([]string, 0, len(m.items))
	for _, item := range m.items {
		if !item.Separator {
			labels = append(labels, item.Label)
		}
	}
	return labels
}

// EnableItem enables or disables the item with the given label
func (m *Menu) EnableItem(label string, enabled bool) {
	for i := range m.items {
		if m.items[i].Label == label {
			m.items[i].Enabled = enabled
		}
	}
	m.fixSelection()
}

// Draw renders the menu centred on screen
func (m *Menu) Draw(screen tcell.Screen) {
	if !m.visible {
		return
	}

	screenWidth, screenHeight := screen.Size()
	x := (screenWidth - m.width) / 2
	y := (screenHeight - m.height) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	drawBox(screen, x, y, m.width, m.height)

	itemY := y + 1
	if m.title != "" {
		titleX := x + (m.width-runewidth.StringWidth(m.title))/2
		drawText(screen, titleX, itemY, m.title, frameStyle.Bold(true))
		itemY++
		drawRule(screen, x, itemY, m.width)
		itemY++
	}

	for i, item := range m.items {
		if item.Separator {
			drawRule(screen, x, itemY, m.width)
			itemY++
			continue
		}

		itemStyle := frameStyle
		if !item.Enabled {
			itemStyle = disabledStyle
		} else if i == m.selected {
			itemStyle = selectedStyle
		}

		for cx := x + 1; cx < x+m.width-1; cx++ {
			screen.SetContent(cx, itemY, ' ', nil, itemStyle)
		}
		drawText(screen, x+2, itemY, item.Label, itemStyle)
		if item.Shortcut != 0 {
			screen.SetContent(x+m.width-3, itemY, item.Shortcut, nil, itemStyle)
		}
		itemY++
	}
}

// HandleKey processes keyboard input. A visible menu consumes every key.
func (m *Menu) HandleKey(ev *tcell.EventKey) bool {
	if !m.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyF2:
		m.Hide()
	case tcell.KeyUp:
		m.moveSelection(-1)
	case tcell.KeyDown, tcell.KeyTab:
		m.moveSelection(1)
	case tcell.KeyHome:
		m.selected = 0
		m.fixSelection()
	case tcell.KeyEnter:
		m.activate(m.selected)
	case tcell.KeyRune:
		for i, item := range m.items {
			if item.Shortcut != 0 && item.Shortcut == ev.Rune() {
				m.activate(i)
				break
			}
		}
	}
	return true
}

// moveSelection moves the selection up or down
func (m *Menu) moveSelection(direction int) {
	itemCount := len(m.items)
	if itemCount == 0 {
		return
	}

	next := m.selected
	for i := 0; i < itemCount; i++ {
		next = (next + direction + itemCount) % itemCount
		if m.usable(next) {
			m.selected = next
			return
		}
	}
}

// fixSelection moves the selection off separators and disabled items
func (m *Menu) fixSelection() {
	if m.usable(m.selected) {
		return
	}
	for i := range m.items {
		if m.usable(i) {
			m.selected = i
			return
		}
	}
}

func (m *Menu) usable(i int) bool {
	return i >= 0 && i < len(m.items) && m.items[i].Enabled && !m.items[i].Separator
}

// activate hides the menu and runs the item's action
func (m *Menu) activate(i int) {
	if !m.usable(i) {
		return
	}
	m.selected = i
	m.Hide()

	if action := m.items[i].Action; action != nil {
		if err := action(); err != nil && m.onError != nil {
			m.onError(err)
		}
	}
}

// updateDimensions updates menu dimensions based on items
func (m *Menu) updateDimensions() {
	maxWidth := runewidth.StringWidth(m.title) + 4

	for _, item := range m.items {
		if item.Separator {
			continue
		}
		width := runewidth.StringWidth(item.Label) + 8
		if width > maxWidth {
			maxWidth = width
		}
	}

	m.width = maxWidth
	m.height = len(m.items) + 2
	if m.title != "" {
		m.height += 2
	}
}

// NewPicker builds a menu choosing one of names. The eject entry comes
// first; choosing it passes EjectLabel to choose.
func NewPicker(title string, names []string, choose func(name string) error) *Menu {
	picker := New(title)
	picker.AddItem(EjectLabel, 0, func() error { return choose(EjectLabel) })
	for _, name := range names {
		name := name
		picker.AddItem(name, 0, func() error { return choose(name) })
	}
	return picker
}

// drawBox draws a bordered, filled rectangle
func drawBox(screen tcell.Screen, x, y, width, height int) {
	right := x + width - 1
	bottom := y + height - 1

	screen.SetContent(x, y, '┌', nil, frameStyle)
	screen.SetContent(right, y, '┐', nil, frameStyle)
	screen.SetContent(x, bottom, '└', nil, frameStyle)
	screen.SetContent(right, bottom, '┘', nil, frameStyle)
	for cx := x + 1; cx < right; cx++ {
		screen.SetContent(cx, y, '─', nil, frameStyle)
		screen.SetContent(cx, bottom, '─', nil, frameStyle)
	}

	for cy := y + 1; cy < bottom; cy++ {
		screen.SetContent(x, cy, '│', nil, frameStyle)
		screen.SetContent(right, cy, '│', nil, frameStyle)
		for cx := x + 1; cx < right; cx++ {
			screen.SetContent(cx, cy, ' ', nil, frameStyle)
		}
	}
}

func drawRule(screen tcell.Screen, x, y, width int) {
	screen.SetContent(x, y, '├', nil, frameStyle)
	screen.SetContent(x+width-1, y, '┤', nil, frameStyle)
	for cx := x + 1; cx < x+width-1; cx++ {
		screen.SetContent(cx, y, '─', nil, frameStyle)
	}
}

// drawText draws text at the specified position
func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, ch := range text {
		screen.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}
