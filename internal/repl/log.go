package repl

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Styles colours output by category.
type Styles struct {
	Info   lipgloss.Style
	Warn   lipgloss.Style
	Error  lipgloss.Style
	Notice lipgloss.Style
	Title  lipgloss.Style
	Dim    lipgloss.Style
}

// NewStyles picks colours for w; writers that are not terminals get plain
// text.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Info:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Warn:   r.NewStyle().Foreground(lipgloss.Color("208")),
		Error:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Notice: r.NewStyle().Foreground(lipgloss.Color("10")),
		Title:  r.NewStyle().Bold(true),
		Dim:    r.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

// Logger prints runtime log lines, coloured by their "info:", "warn:" or
// "error:" prefix. It satisfies the runtime's Logger.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out, styles: NewStyles(out)}
}

func (l *Logger) Printf(format string, args ...any) {
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	style := l.styles.Dim
	switch {
	case strings.HasPrefix(line, "error:"):
		style = l.styles.Error
	case strings.HasPrefix(line, "warn:"):
		style = l.styles.Warn
	case strings.HasPrefix(line, "info:"):
		style = l.styles.Info
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, style.Render(line))
}
