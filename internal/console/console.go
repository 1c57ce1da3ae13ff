// Package console is the interactive front end of auxlab: a line-oriented
// REPL that evaluates engine commands and interprets colon commands for
// debugging, breakpoints and inspectors.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/dshills/auxlab/internal/app"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Console reads lines, runs them against the application and prints the
// results.
type Console struct {
	app      *app.Application
	out      io.Writer
	commands []*command

	// searchTerm and searchIdx continue a history search across
	// repeated :search commands.
	searchTerm string
	searchIdx  int
}

// New creates a console writing to out.
func New(a *app.Application, out io.Writer) *Console {
	c := &Console{app: a, out: out, searchIdx: -1}
	c.commands = defaultCommands()
	return c
}

// RunTerminal runs the REPL on the process terminal with line editing and
// history navigation. When stdin is not a terminal it falls back to Run.
func (c *Console) RunTerminal(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return c.Run(ctx, os.Stdin)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(screen, c.prompt())
	t.History = c.app.History()
	if w, _, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, 0)
	}

	out := c.out
	c.out = t
	defer func() { c.out = out }()

	c.banner()
	for {
		t.SetPrompt(c.prompt())
		line, err := t.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, app.ErrQuit) {
				return nil
			}
			c.printError(err)
		}
	}
}

// Run reads commands from r until EOF or :quit.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Execute(ctx, scanner.Text()); err != nil {
			if errors.Is(err, app.ErrQuit) {
				return nil
			}
			c.printError(err)
		}
	}
	return scanner.Err()
}

// RunScript executes the lines of r, echoing each one after the prompt. It
// returns the number of lines that failed.
func (c *Console) RunScript(ctx context.Context, r io.Reader) (int, error) {
	failed := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		fmt.Fprintln(c.out, dimStyle.Render(c.prompt()+line))
		if err := c.Execute(ctx, line); err != nil {
			if errors.Is(err, app.ErrQuit) {
				break
			}
			failed++
			c.printError(err)
		}
	}
	return failed, scanner.Err()
}

// Execute runs one input line: a colon command or an engine command.
func (c *Console) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ":") {
		name, args := parseCommand(line[1:])
		cmd := c.find(name)
		if cmd == nil {
			return fmt.Errorf("unknown command :%s (try :help)", name)
		}
		return cmd.run(ctx, c, args)
	}

	v, err := c.app.SubmitCommand(line).Wait(ctx)
	if err != nil {
		return err
	}
	c.printResult(v.(app.CommandResult))
	return nil
}

func (c *Console) prompt() string {
	return c.app.Prompt()
}

func (c *Console) banner() {
	fmt.Fprintln(c.out, titleStyle.Render("auxlab")+dimStyle.Render("  type :help for commands, :quit to exit"))
}

func (c *Console) printResult(res app.CommandResult) {
	if res.Err != nil {
		fmt.Fprintln(c.out, errorStyle.Render(res.Output))
	} else if res.Output != "" {
		fmt.Fprintln(c.out, res.Output)
	}
	if res.Outcome.Anomaly != nil {
		fmt.Fprintln(c.out, warnStyle.Render("warning: "+res.Outcome.Anomaly.Error()))
	}
	if res.State.Paused {
		fmt.Fprintln(c.out, pausedStyle.Render(fmt.Sprintf("paused at %s:%d", res.State.File, res.State.Line)))
	}
}

func (c *Console) printError(err error) {
	fmt.Fprintln(c.out, errorStyle.Render("error: "+err.Error()))
}

func (c *Console) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// parseCommand splits a command line into its name and arguments.
func parseCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
