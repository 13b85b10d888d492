package bindings

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
)

// Frontend event names. Phase and frame events are suffixed with the game
// kind, e.g. "arcade:phase:wheel".
const (
	EventBalance = "arcade:balance"
	EventToast   = "arcade:toast"
	EventPhase   = "arcade:phase:"
	EventFrame   = "arcade:frame:"
)

// Toast is the payload of EventToast.
type Toast struct {
	Message  string           `json:"message"`
	Severity session.Severity `json:"severity"`
}

// EmitFunc matches runtime.EventsEmit.
type EmitFunc func(ctx context.Context, name string, data ...interface{})

// WailsSink forwards session output to the frontend. Events are dropped
// until Startup provides the Wails context.
type WailsSink struct {
	emit EmitFunc

	mu  sync.RWMutex
	ctx context.Context
}

// NewWailsSink creates a sink; a nil emit uses runtime.EventsEmit.
func NewWailsSink(emit EmitFunc) *WailsSink {
	if emit == nil {
		emit = runtime.EventsEmit
	}
	return &WailsSink{emit: emit}
}

// Startup is called by Wails on application startup.
func (w *WailsSink) Startup(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
}

// Detach stops emitting, used before the window closes.
func (w *WailsSink) Detach() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = nil
}

func (w *WailsSink) send(name string, data interface{}) {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()
	if ctx == nil {
		return
	}
	w.emit(ctx, name, data)
}

func (w *WailsSink) UpdateBalance(b decimal.Decimal) {
	w.send(EventBalance, b.StringFixed(2))
}

func (w *WailsSink) Notify(msg string, sev session.Severity) {
	w.send(EventToast, Toast{Message: msg, Severity: sev})
}

func (w *WailsSink) OnPhase(snap session.Snapshot) {
	w.send(EventPhase+string(snap.Kind), snap)
}

func (w *WailsSink) OnFrame(snap session.Snapshot, f games.Frame) {
	w.send(EventFrame+string(snap.Kind), f)
}
