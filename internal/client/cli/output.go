package cli

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	okColor      = color.New(color.FgGreen)
	errColor     = color.New(color.FgRed)
	headingColor = color.New(color.FgCyan, color.Bold)
	mutedColor   = color.New(color.Faint)
)

// say writes a plain line. Generation observers print from timer
// goroutines, so every write holds outMu.
func (a *App) say(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format+"\n", args...)
}

func (a *App) sayColor(c *color.Color, format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	c.Fprintf(a.out, format+"\n", args...)
}

func (a *App) success(format string, args ...any) {
	a.sayColor(okColor, format, args...)
}

func (a *App) heading(format string, args ...any) {
	a.sayColor(headingColor, format, args...)
}

func (a *App) muted(format string, args ...any) {
	a.sayColor(mutedColor, format, args...)
}
