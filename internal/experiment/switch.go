// Package experiment owns the predictive/baseline mode switch and attributes
// request traffic to the experiment started by each mode activation.
package experiment

import (
	"context"
	"sync"

	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/model"
)

// Source yields the current mode. Callers read it once per cycle or request
// and pass the value down.
type Source interface {
	Mode(ctx context.Context) (model.Mode, error)
}

// Switcher is a Source that can also be flipped.
type Switcher interface {
	Source
	Set(ctx context.Context, predictive bool) (model.Mode, error)
}

// Switch is a process-local Switcher.
type Switch struct {
	mu   sync.RWMutex
	clk  clock.Clock
	mode model.Mode
}

func NewSwitch(clk clock.Clock, predictive bool) *Switch {
	return &Switch{clk: clk, mode: model.Mode{Predictive: predictive, ActivatedAt: model.Normalize(clk.Now())}}
}

func (s *Switch) Mode(context.Context) (model.Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, nil
}

// Set flips the mode. Setting the current value again keeps the activation time.
func (s *Switch) Set(_ context.Context, predictive bool) (model.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode.Predictive != predictive {
		s.mode = model.Mode{Predictive: predictive, ActivatedAt: model.Normalize(s.clk.Now())}
	}
	return s.mode, nil
}
