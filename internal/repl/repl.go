// Package repl is the interactive console of the liveloop command.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/cbegin/liveloop-go/internal/loop"
)

// Controller is the part of the runtime the console drives.
type Controller interface {
	Stop(name string) error
	StopAll() []string
	LoadFile(path string) ([]string, error)
	Status() []loop.Status
	Ticks() map[string]int
	Now() time.Duration
	BPM() float64
}

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

type Option func(*REPL)

// WithHistoryDir sets where save-history writes and purge-history cleans.
func WithHistoryDir(dir string) Option {
	return func(r *REPL) { r.history = NewHistory(dir) }
}

// WithClock replaces time.Now for timestamps and uptime.
func WithClock(now func() time.Time) Option {
	return func(r *REPL) { r.now = now }
}

type REPL struct {
	ctl     Controller
	out     io.Writer
	styles  Styles
	history *History
	now     func() time.Time
	started time.Time
}

func New(ctl Controller, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		ctl:     ctl,
		out:     out,
		styles:  NewStyles(out),
		history: NewHistory(""),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.started = r.now()
	return r
}

type command struct {
	name string
	args string
	help string
	run  func(r *REPL, args []string) (quit bool, err error)
}

var commands []command

func init() {
	commands = []command{
		{"exit", "", "stop every loop and leave", cmdExit},
		{"quit", "", "same as exit", cmdExit},
		{"stop", "[name]", "stop one loop at its next boundary, or all of them", cmdStop},
		{"stop-all", "", "stop every loop", cmdStopAll},
		{"load", "<file>", "define or redefine the loops of a loop set", cmdLoad},
		{"status", "", "list loops", cmdStatus},
		{"ticks", "", "show tick positions", cmdTicks},
		{"history", "[n | from to]", "show entered lines", cmdHistory},
		{"save-history", "", "write this session's lines to the history directory", cmdSaveHistory},
		{"purge-history", "", "delete saved sessions", cmdPurgeHistory},
		{"help", "", "list commands", cmdHelp},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run reads commands from in until exit, end of input or ctx is done. The
// session history is saved on the way out when a history directory is set.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	defer r.saveOnExit()
	r.greet()
	for {
		r.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.Exec(line)
			if err != nil {
				fmt.Fprintln(r.out, r.styles.Error.Render("error: "+err.Error()))
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *REPL) greet() {
	fmt.Fprintln(r.out, r.styles.Title.Render("liveloop"))
	fmt.Fprintln(r.out, r.styles.Dim.Render("quit/exit: leave  stop [name]: stop loops  help: commands"))
}

func (r *REPL) prompt() { fmt.Fprint(r.out, "> ") }

func (r *REPL) saveOnExit() {
	if r.history.dir == "" || r.history.Len() == 0 {
		return
	}
	if path, err := r.history.Save(r.now(), "-endofsession"); err == nil {
		fmt.Fprintln(r.out, r.styles.Dim.Render("history saved to "+path))
	}
}

// Exec runs one console line.
func (r *REPL) Exec(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	r.history.Add(r.now(), line)
	fields := strings.Fields(line)
	cmd, ok := lookup(fields[0])
	if !ok {
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return cmd.run(r, fields[1:])
}

func cmdExit(r *REPL, _ []string) (bool, error) {
	r.ctl.StopAll()
	fmt.Fprintln(r.out, r.styles.Notice.Render("Thanks! Bye!"))
	return true, nil
}

func cmdStop(r *REPL, args []string) (bool, error) {
	if len(args) == 0 {
		return cmdStopAll(r, nil)
	}
	for _, name := range args {
		if err := r.ctl.Stop(name); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "stopping %s\n", name)
	}
	return false, nil
}

func cmdStopAll(r *REPL, _ []string) (bool, error) {
	names := r.ctl.StopAll()
	if len(names) == 0 {
		fmt.Fprintln(r.out, "no loops running")
		return false, nil
	}
	fmt.Fprintf(r.out, "stopping %s\n", strings.Join(names, ", "))
	return false, nil
}

func cmdLoad(r *REPL, args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("usage: load <file>")
	}
	names, err := r.ctl.LoadFile(args[0])
	if len(names) > 0 {
		fmt.Fprintf(r.out, "defined %s\n", strings.Join(names, ", "))
	}
	return false, err
}

func cmdStatus(r *REPL, _ []string) (bool, error) {
	uptime := durafmt.Parse(r.now().Sub(r.started)).LimitFirstN(2).Format(shortUnits)
	clock := durafmt.Parse(r.ctl.Now()).LimitFirstN(2).Format(shortUnits)
	fmt.Fprintln(r.out, r.styles.Title.Render(
		fmt.Sprintf("bpm %s  clock %s  uptime %s", humanize.Ftoa(r.ctl.BPM()), clock, uptime)))
	st := r.ctl.Status()
	if len(st) == 0 {
		fmt.Fprintln(r.out, "no loops")
		return false, nil
	}
	for _, s := range st {
		sync := "-"
		if s.Sync != "" {
			sync = "sync " + s.Sync
		}
		line := fmt.Sprintf("%-12s %-12s %-14s %s cycles, %d definitions", s.Name, s.State, sync,
			humanize.Comma(int64(s.Cycles)), s.Definitions)
		if s.Sync != "" {
			line += fmt.Sprintf(", %s sync waits", humanize.Comma(int64(s.SyncWaits)))
		}
		if s.StopPending {
			line += ", stopping"
		}
		fmt.Fprintln(r.out, line)
		if s.Err != nil {
			fmt.Fprintln(r.out, r.styles.Error.Render("  "+s.Err.Error()))
		}
	}
	return false, nil
}

func cmdTicks(r *REPL, _ []string) (bool, error) {
	ticks := r.ctl.Ticks()
	if len(ticks) == 0 {
		fmt.Fprintln(r.out, "no ticks")
		return false, nil
	}
	keys := make([]string, 0, len(ticks))
	for k := range ticks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(r.out, "%-12s %s\n", k, humanize.Comma(int64(ticks[k])))
	}
	return false, nil
}

func cmdHistory(r *REPL, args []string) (bool, error) {
	from, to := 0, r.history.Len()-1
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("usage: history [n | from to]")
		}
		from, to = n, n
	case 2:
		a, errA := strconv.Atoi(args[0])
		b, errB := strconv.Atoi(args[1])
		if errA != nil || errB != nil {
			return false, fmt.Errorf("usage: history [n | from to]")
		}
		from, to = a, b
	default:
		return false, fmt.Errorf("usage: history [n | from to]")
	}
	for i, it := range r.history.Range(from, to) {
		fmt.Fprintf(r.out, "[%d] %s\n", max(from, 0)+i, it)
	}
	return false, nil
}

func cmdSaveHistory(r *REPL, _ []string) (bool, error) {
	path, err := r.history.Save(r.now(), "")
	if err != nil {
		return false, err
	}
	fmt.Fprintf(r.out, "history saved to %s\n", path)
	return false, nil
}

func cmdPurgeHistory(r *REPL, _ []string) (bool, error) {
	removed, err := r.history.Purge()
	for _, name := range removed {
		fmt.Fprintf(r.out, "%s ... removed\n", name)
	}
	if err != nil {
		return false, err
	}
	if len(removed) == 0 {
		fmt.Fprintln(r.out, "there is nothing to purge")
		return false, nil
	}
	fmt.Fprintln(r.out, "session history has been cleaned")
	return false, nil
}

func cmdHelp(r *REPL, _ []string) (bool, error) {
	for _, c := range commands {
		fmt.Fprintf(r.out, "%-14s %-14s %s\n", c.name, c.args, r.styles.Dim.Render(c.help))
	}
	return false, nil
}
