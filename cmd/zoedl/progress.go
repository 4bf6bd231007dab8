package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// barProgress adapts zoedl's OnProgress/OnSpeed callbacks onto a
// schollz/progressbar/v3 bar, handling the total=-1 (unknown length)
// case a Descriptor without a Content-Length can report.
type barProgress struct {
	bar     *progressbar.ProgressBar
	known   bool
	lastBps int64
}

func newBarProgress(label string) *barProgress {
	return &barProgress{bar: progressbar.DefaultBytes(-1, label)}
}

func (p *barProgress) onProgress(total, downloaded int64) {
	if !p.known && total >= 0 {
		p.bar.ChangeMax64(total)
		p.known = true
	}
	_ = p.bar.Set64(downloaded)
}

func (p *barProgress) onSpeed(bps int64) {
	p.lastBps = bps
}

func (p *barProgress) finish() {
	_ = p.bar.Finish()
}

// terminalWidth returns the current terminal column count, falling back
// to 80 when stdout isn't a TTY (e.g. piped/CI output).
func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func printVerbose(quiet bool, format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
