package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const progressWidth = 30

// progressBar draws discovery progress on stderr. On a terminal the bar is
// redrawn in place; otherwise every update is printed on its own line.
type progressBar struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	quiet       bool
	drawn       bool
	lastWidth   int
}

func newProgressBar(out io.Writer, quiet bool) *progressBar {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressBar{out: out, interactive: interactive, quiet: quiet}
}

// Update matches pipeline.ProgressFunc.
func (p *progressBar) Update(percent int, message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	line := renderProgress(percent, message)
	if !p.interactive {
		fmt.Fprintln(p.out, line)
		return
	}

	pad := ""
	if n := p.lastWidth - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.out, "\r"+line+pad)
	p.lastWidth = len(line)
	p.drawn = true
}

// Done ends the in-place line.
func (p *progressBar) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func renderProgress(percent int, message string) string {
	percent = max(0, min(100, percent))
	filled := percent * progressWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressWidth-filled)
	return fmt.Sprintf("[%s] %3d%% %s", bar, percent, message)
}
