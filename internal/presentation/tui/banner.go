package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// Printer writes run progress for humans. Colors are used only when the
// output is a terminal.
type Printer struct {
	out     io.Writer
	profile termenv.Profile
	width   int
}

// NewPrinter inspects w to pick a color profile and width.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{out: w, profile: termenv.Ascii, width: defaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.profile = termenv.ColorProfile()
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

func (p *Printer) color(s, hex string) termenv.Style {
	return p.profile.String(s).Foreground(p.profile.Color(hex))
}

// Banner prints the program name and version.
func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.color("   ___ ___  _  _ ___ _    ___ ___ ", "#818cf8"))
	fmt.Fprintln(p.out, p.color("  / __/ _ \\| || | _ \\ |  | __| _ \\", "#a78bfa"))
	fmt.Fprintln(p.out, p.color(" | (_| (_) | || |  _/ |__| _||   /", "#c084fc"))
	fmt.Fprintln(p.out, p.color("  \\___\\___/ \\__/|_| |____|___|_|_\\", "#e879f9"))
	fmt.Fprintln(p.out, p.color("  "+version, "#f472b6").Faint())
	fmt.Fprintln(p.out)
}
