package menu

import (
	"github.com/gdamore/tcell/v2"
)

// Overlay stacks menus and prompts over the console. While any layer is
// visible the topmost one receives every key event.
type Overlay struct {
	layers  []Layer
	onEmpty func()
}

// NewOverlay creates an empty overlay
func NewOverlay() *Overlay {
	return &Overlay{}
}

// SetOnEmpty sets the callback run when the last layer closes, so the
// console underneath can be redrawn in full.
func (o *Overlay) SetOnEmpty(callback func()) {
	o.onEmpty = callback
}

// Push shows layer on top of the stack
func (o *Overlay) Push(layer Layer) {
	layer.Show()
	o.layers = append(o.layers, layer)
}

// Active reports whether a layer is open
func (o *Overlay) Active() bool {
	return len(o.layers) > 0
}

// Top returns the layer receiving keys, or nil
func (o *Overlay) Top() Layer {
	if len(o.layers) == 0 {
		return nil
	}
	return o.layers[len(o.layers)-1]
}

// HandleKey routes ev to the top layer. It returns false only when no
// layer is open and the key belongs to the console.
func (o *Overlay) HandleKey(ev *tcell.EventKey) bool {
	top := o.Top()
	if top == nil {
		return false
	}
	top.HandleKey(ev)
	o.prune()
	return true
}

// Close hides every layer
func (o *Overlay) Close() {
	for _, layer := range o.layers {
		layer.Hide()
	}
	o.prune()
}

// Draw renders the visible layers bottom to top
func (o *Overlay) Draw(screen tcell.Screen) {
	screen.HideCursor()
	for _, layer := range o.layers {
		layer.Draw(screen)
	}
}

// prune drops layers that hid themselves
func (o *Overlay) prune() {
	if len(o.layers) == 0 {
		return
	}

	kept := o.layers[:0]
	for _, layer := range o.layers {
		if layer.IsVisible() {
			kept = append(kept, layer)
		}
	}
	for i := len(kept); i < len(o.layers); i++ {
		o.layers[i] = nil
	}
	o.layers = kept

	if len(o.layers) == 0 && o.onEmpty != nil {
		o.onEmpty()
	}
}
