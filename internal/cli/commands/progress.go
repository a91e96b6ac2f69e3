package commands

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// progressRefreshRate is the spinner frame interval.
const progressRefreshRate = 120 * time.Millisecond

// progress reports which stage a long command is in.
type progress interface {
	Start()
	Stop()
	Stage(name string)
}

// spinnerProgress drives a terminal spinner.
type spinnerProgress struct {
	s *spinner.Spinner
}

func (p *spinnerProgress) Start() { p.s.Start() }
func (p *spinnerProgress) Stop()  { p.s.Stop() }

func (p *spinnerProgress) Stage(name string) {
	p.s.Lock()
	p.s.Suffix = " " + name
	p.s.Unlock()
}

// noProgress is used when output is not interactive.
type noProgress struct{}

func (noProgress) Start()       {}
func (noProgress) Stop()        {}
func (noProgress) Stage(string) {}

// newProgress returns a spinner on w when w is a terminal.
func newProgress(w io.Writer, enabled bool) progress {
	if !enabled || !isTerminal(w) {
		return noProgress{}
	}
	s := spinner.New(spinner.CharSets[14], progressRefreshRate, spinner.WithWriter(w))
	return &spinnerProgress{s: s}
}
