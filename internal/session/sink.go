package session

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/games"
)

// Severity grades a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Sink receives balance updates and player notifications. Calls are made
// with the session lock held, in round order; implementations must not call
// back into the session.
type Sink interface {
	UpdateBalance(balance decimal.Decimal)
	Notify(message string, severity Severity)
}

// FrameObserver is optionally implemented by a Sink to follow animations.
type FrameObserver interface {
	OnFrame(snap Snapshot, frame games.Frame)
}

// PhaseObserver is optionally implemented by a Sink to follow transitions.
type PhaseObserver interface {
	OnPhase(snap Snapshot)
}

// Tee fans every call out to each sink in order.
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

type teeSink []Sink

func (t teeSink) UpdateBalance(b decimal.Decimal) {
	for _, s := range t {
		s.UpdateBalance(b)
	}
}

func (t teeSink) Notify(msg string, sev Severity) {
	for _, s := range t {
		s.Notify(msg, sev)
	}
}

func (t teeSink) OnFrame(snap Snapshot, f games.Frame) {
	for _, s := range t {
		if o, ok := s.(FrameObserver); ok {
			o.OnFrame(snap, f)
		}
	}
}

func (t teeSink) OnPhase(snap Snapshot) {
	for _, s := range t {
		if o, ok := s.(PhaseObserver); ok {
			o.OnPhase(snap)
		}
	}
}

// LogSink writes sink traffic to a logger.
type LogSink struct {
	Logger *zap.Logger
}

func (l LogSink) UpdateBalance(b decimal.Decimal) {
	l.Logger.Info("balance updated", zap.String("balance", b.StringFixed(2)))
}

func (l LogSink) Notify(msg string, sev Severity) {
	l.Logger.Info("notification", zap.String("message", msg), zap.String("severity", string(sev)))
}

func (l LogSink) OnPhase(snap Snapshot) {
	l.Logger.Debug("phase", zap.String("game", string(snap.Kind)), zap.Stringer("phase", snap.Phase))
}

type nopSink struct{}

func (nopSink) UpdateBalance(decimal.Decimal) {}
func (nopSink) Notify(string, Severity) {}
