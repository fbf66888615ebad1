// Package intr routes hardware interrupt lines to Go callbacks.
//
// A Service owns the line to callback table for one Controller. Each line is
// installed with its own trampoline, bound to the Service and the line, so
// an interrupt is routed without any process-wide state.
package intr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/vincentAlen/eventreg"
)

// Line is an interrupt line number, e.g. a GPIO pin.
type Line uint32

// Trigger selects which signal change raises an interrupt.
type Trigger uint8

const (
	// TriggerDisable masks the line.
	TriggerDisable Trigger = iota
	// TriggerPosEdge fires on a rising edge.
	TriggerPosEdge
	// TriggerNegEdge fires on a falling edge.
	TriggerNegEdge
	// TriggerAnyEdge fires on either edge.
	TriggerAnyEdge
	// TriggerLowLevel fires while the line is low.
	TriggerLowLevel
	// TriggerHighLevel fires while the line is high.
	TriggerHighLevel
)

func (t Trigger) String() string {
	switch t {
	case TriggerDisable:
		return "disable"
	case TriggerPosEdge:
		return "posedge"
	case TriggerNegEdge:
		return "negedge"
	case TriggerAnyEdge:
		return "anyedge"
	case TriggerLowLevel:
		return "low_level"
	case TriggerHighLevel:
		return "high_level"
	default:
		return fmt.Sprintf("trigger(%d)", uint8(t))
	}
}

// Flags are passed through to Controller.Install.
type Flags uint32

// Interrupt allocation flags. FlagLevel1 to FlagLevel6 select a priority.
const (
	FlagLevel1 Flags = 1 << (iota + 1)
	FlagLevel2
	FlagLevel3
	FlagLevel4
	FlagLevel5
	FlagLevel6
	// FlagNMI requests a non-maskable interrupt.
	FlagNMI
	// FlagShared allows sharing the interrupt with other handlers.
	FlagShared
	// FlagEdge requests an edge-triggered interrupt.
	FlagEdge
	// FlagIRAM keeps the handler callable while caches are disabled.
	FlagIRAM
	// FlagIntrDisabled allocates the interrupt disabled.
	FlagIntrDisabled
)

// Callback is called with the line that raised the interrupt.
type Callback func(line Line)

// Controller is the low-level interrupt driver.
type Controller interface {
	Install(flags Flags) error
	Uninstall() error
	SetTrigger(line Line, t Trigger) error
	AddHandler(line Line, isr func()) error
	RemoveHandler(line Line) error
	Enable(line Line) error
	Disable(line Line) error
}

// Service is the callback registry for one Controller.
type Service struct {
	ctrl   Controller
	logger *eventreg.Logger

	mu      sync.Mutex
	started bool
	table   map[Line]Callback
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(l *eventreg.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a stopped Service over ctrl.
func New(ctrl Controller, opts ...Option) (*Service, error) {
	if ctrl == nil {
		return nil, &eventreg.ArgumentError{Op: "new intr service", Arg: "controller", Reason: "must not be nil"}
	}
	s := &Service{ctrl: ctrl, table: make(map[Line]Callback)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start installs the controller's interrupt service. Starting a started
// Service is a no-op.
func (s *Service) Start(flags Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.ctrl.Install(flags); err != nil {
		return fmt.Errorf("intr: install: %w", err)
	}
	s.started = true
	return nil
}

// Stop removes every line's handler and uninstalls the interrupt service.
// All failures are collected; the registry is cleared regardless.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	var result *multierror.Error
	for _, line := range s.linesLocked() {
		if err := s.ctrl.RemoveHandler(line); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove line %d: %w", line, err))
		}
		delete(s.table, line)
	}
	if err := s.ctrl.Uninstall(); err != nil {
		result = multierror.Append(result, fmt.Errorf("uninstall: %w", err))
	}
	s.started = false

	if err := result.ErrorOrNil(); err != nil {
		s.logger.Warning().
			Str("category", "intr").
			Err(err).
			Log("interrupt service stopped with errors")
		return err
	}
	return nil
}

// Set registers cb for line and arms the line with trigger. A line can be
// set only once; setting it again keeps the first callback and returns nil.
func (s *Service) Set(line Line, trigger Trigger, cb Callback) error {
	if cb == nil {
		return &eventreg.ArgumentError{Op: "set interrupt", Arg: "callback", Reason: "must not be nil"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("%w: interrupt service not started", eventreg.CodeInvalidState)
	}
	if _, ok := s.table[line]; ok {
		return nil
	}

	if err := s.ctrl.SetTrigger(line, trigger); err != nil {
		return fmt.Errorf("intr: set trigger on line %d: %w", line, err)
	}
	s.table[line] = cb
	if err := s.ctrl.AddHandler(line, s.trampoline(line)); err != nil {
		delete(s.table, line)
		return fmt.Errorf("intr: add handler on line %d: %w", line, err)
	}
	s.logger.Debug().
		Str("category", "intr").
		Uint64("line", uint64(line)).
		Stringer("trigger", trigger).
		Log("interrupt set")
	return nil
}

// Remove drops the callback for line.
func (s *Service) Remove(line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.table[line]; !ok {
		return fmt.Errorf("intr: line %d: %w", line, eventreg.CodeNotFound)
	}
	delete(s.table, line)
	if err := s.ctrl.RemoveHandler(line); err != nil {
		return fmt.Errorf("intr: remove handler on line %d: %w", line, err)
	}
	return nil
}

// Enable unmasks interrupts on line.
func (s *Service) Enable(line Line) error {
	if err := s.ctrl.Enable(line); err != nil {
		return fmt.Errorf("intr: enable line %d: %w", line, err)
	}
	return nil
}

// Disable masks interrupts on line.
func (s *Service) Disable(line Line) error {
	if err := s.ctrl.Disable(line); err != nil {
		return fmt.Errorf("intr: disable line %d: %w", line, err)
	}
	return nil
}

// Lines returns the registered lines in ascending order.
func (s *Service) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

func (s *Service) linesLocked() []Line {
	lines := make([]Line, 0, len(s.table))
	for line := range s.table {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	return lines
}

// trampoline is what the controller calls for line.
func (s *Service) trampoline(line Line) func() {
	return func() {
		s.mu.Lock()
		cb := s.table[line]
		s.mu.Unlock()
		if cb != nil {
			cb(line)
		}
	}
}
