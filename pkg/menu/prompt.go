package menu

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

const promptWidth = 32

// Prompt is a one-line text entry box.
type Prompt struct {
	title   string
	text    []rune
	maxLen  int
	visible bool

	submit  func(text string) error
	onError func(error)
}

// NewPrompt creates a hidden prompt. submit runs on Enter with the text
// typed so far.
func NewPrompt(title string, maxLen int, submit func(text string) error) *Prompt {
	return &Prompt{
		title:  title,
		maxLen: maxLen,
		submit: submit,
	}
}

// SetOnError sets the callback receiving submit errors
func (p *Prompt) SetOnError(callback func(error)) {
	p.onError = callback
}

// Show opens the prompt with an empty field
func (p *Prompt) Show() {
	p.visible = true
	p.text = p.text[:0]
}

// Hide closes the prompt
func (p *Prompt) Hide() {
	p.visible = false
}

// IsVisible returns whether the prompt is open
func (p *Prompt) IsVisible() bool {
	return p.visible
}

// Text returns the current field contents
func (p *Prompt) Text() string {
	return string(p.text)
}

// HandleKey edits the field. An open prompt consumes every key.
func (p *Prompt) HandleKey(ev *tcell.EventKey) bool {
	if !p.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		p.Hide()
	case tcell.KeyEnter:
		p.Hide()
		if p.submit != nil {
			if err := p.submit(string(p.text)); err != nil && p.onError != nil {
				p.onError(err)
			}
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(p.text) > 0 {
			p.text = p.text[:len(p.text)-1]
		}
	case tcell.KeyCtrlU:
		p.text = p.text[:0]
	case tcell.KeyRune:
		if p.maxLen <= 0 || len(p.text) < p.maxLen {
			p.text = append(p.text, ev.Rune())
		}
	}
	return true
}

// Draw renders the prompt centred on screen with the cursor after the text
func (p *Prompt) Draw(screen tcell.Screen) {
	if !p.visible {
		return
	}

	width := max(promptWidth, runewidth.StringWidth(p.title)+4)
	screenWidth, screenHeight := screen.Size()
	x := max((screenWidth-width)/2, 0)
	y := max((screenHeight-4)/2, 0)

	drawBox(screen, x, y, width, 4)
	drawText(screen, x+2, y+1, p.title, frameStyle.Bold(true))

	// Long input scrolls so the end stays visible.
	field := p.text
	room := width - 5
	if len(field) > room {
		field = field[len(field)-room:]
	}
	for cx := x + 2; cx < x+width-2; cx++ {
		screen.SetContent(cx, y+2, ' ', nil, selectedStyle)
	}
	drawText(screen, x+2, y+2, string(field), selectedStyle)
	screen.ShowCursor(x+2+runewidth.StringWidth(string(field)), y+2)
}
