package intr

import (
	"sync"

	"github.com/vincentAlen/eventreg"
)

// SimController is an in-process Controller with a fixed number of lines.
// Interrupts are raised by calling Fire.
type SimController struct {
	lines Line

	mu        sync.Mutex
	installed bool
	flags     Flags
	triggers  map[Line]Trigger
	handlers  map[Line]func()
	enabled   map[Line]bool
}

// NewSimController creates a controller for lines 0 to n-1.
func NewSimController(n int) *SimController {
	return &SimController{
		lines:    Line(n),
		triggers: make(map[Line]Trigger),
		handlers: make(map[Line]func()),
		enabled:  make(map[Line]bool),
	}
}

// Install installs the interrupt service. Installing twice fails with CodeInvalidState.
func (c *SimController) Install(flags Flags) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed {
		return eventreg.CodeInvalidState
	}
	c.installed = true
	c.flags = flags
	return nil
}

// Uninstall removes the interrupt service and every handler.
func (c *SimController) Uninstall() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installed = false
	c.handlers = make(map[Line]func())
	return nil
}

// SetTrigger sets the trigger for line.
func (c *SimController) SetTrigger(line Line, t Trigger) error {
	if line >= c.lines || t > TriggerHighLevel {
		return eventreg.CodeInvalidArg
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers[line] = t
	return nil
}

// AddHandler installs isr for line and enables the line.
func (c *SimController) AddHandler(line Line, isr func()) error {
	if line >= c.lines || isr == nil {
		return eventreg.CodeInvalidArg
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed {
		return eventreg.CodeInvalidState
	}
	c.handlers[line] = isr
	c.enabled[line] = true
	return nil
}

// RemoveHandler removes the handler for line.
func (c *SimController) RemoveHandler(line Line) error {
	if line >= c.lines {
		return eventreg.CodeInvalidArg
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed {
		return eventreg.CodeInvalidState
	}
	delete(c.handlers, line)
	return nil
}

// Enable unmasks line.
func (c *SimController) Enable(line Line) error {
	return c.setEnabled(line, true)
}

// Disable masks line.
func (c *SimController) Disable(line Line) error {
	return c.setEnabled(line, false)
}

func (c *SimController) setEnabled(line Line, on bool) error {
	if line >= c.lines {
		return eventreg.CodeInvalidArg
	}
	c.mu.Lock()
	c.enabled[line] = on
	c.mu.Unlock()
	return nil
}

// Installed reports whether the interrupt service is installed.
func (c *SimController) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

// Trigger returns the trigger last set on line.
func (c *SimController) Trigger(line Line) Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers[line]
}

// Fire raises an interrupt on line and reports whether a handler ran. A
// line that is disabled, has no handler, or has TriggerDisable ignores it.
func (c *SimController) Fire(line Line) bool {
	c.mu.Lock()
	isr := c.handlers[line]
	ok := c.installed && isr != nil && c.enabled[line] && c.triggers[line] != TriggerDisable
	c.mu.Unlock()
	if !ok {
		return false
	}
	isr()
	return true
}
