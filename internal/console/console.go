// Package console implements the line-oriented command surface.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/okian/mimic/pkg/logger"
)

// Controller is the part of the service the console drives.
type Controller interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	StartReplay(ctx context.Context) error
	StopReplay() error
	StartSampling()
	StopSampling() error
	Events(ctx context.Context) ([]model.Event, error)
	Status() service.Status
}

type command struct {
	key  string
	help string
	run  func(ctx context.Context) error
}

// Console reads one command per line and reports on out.
type Console struct {
	ctrl     Controller
	in       io.Reader
	out      io.Writer
	logger   logger.Logger
	commands []command
}

// New creates a console over ctrl.
func New(ctrl Controller, in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{ctrl: ctrl, in: in, out: out}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("console")
	}

	c.commands = []command{
		{"s", "start recording", c.ctrl.StartRecording},
		{"d", "stop recording", c.ctrl.StopRecording},
		{"f", "start replay", c.ctrl.StartReplay},
		{"g", "stop replay", func(context.Context) error { return c.ctrl.StopReplay() }},
		{"m", "start memory sampling", func(context.Context) error { c.ctrl.StartSampling(); return nil }},
		{"n", "stop memory sampling", func(context.Context) error { return c.ctrl.StopSampling() }},
		{"p", "print stored events", c.printEvents},
		{"t", "show status", c.printStatus},
		{"h", "show this help", func(context.Context) error { c.Help(); return nil }},
	}
	return c
}

// Help lists the commands.
func (c *Console) Help() {
	for _, cmd := range c.commands {
		fmt.Fprintf(c.out, "  %s  %s\n", cmd.key, cmd.help)
	}
	fmt.Fprintln(c.out, "  q  quit")
}

// Run executes commands until q, end of input or ctx cancellation. Command
// failures are reported and do not end the loop.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.Help()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read commands: %w", err)
			}
			return nil
		case line := <-lines:
			if !c.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Execute runs a single command line. It returns false on quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	key := strings.ToLower(strings.TrimSpace(line))
	switch key {
	case "":
		return true
	case "q":
		fmt.Fprintln(c.out, "exiting...")
		return false
	}

	for _, cmd := range c.commands {
		if cmd.key != key {
			continue
		}
		if err := cmd.run(ctx); err != nil {
			c.logger.Warn(ctx, "command failed", logger.String("command", cmd.help), logger.Error(err))
			fmt.Fprintf(c.out, "%s failed: %v\n", cmd.help, err)
			return true
		}
		fmt.Fprintf(c.out, "%s: ok\n", cmd.help)
		return true
	}

	fmt.Fprintln(c.out, "invalid command")
	return true
}

func (c *Console) printEvents(ctx context.Context) error {
	events, err := c.ctrl.Events(ctx)
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Fprintln(c.out, e)
	}
	fmt.Fprintf(c.out, "%d events\n", len(events))
	return nil
}

func (c *Console) printStatus(context.Context) error {
	st := c.ctrl.Status()
	fmt.Fprintf(c.out, "recording=%t replaying=%t sampling=%t\n", st.Recording, st.Replaying, st.Sampling)
	fmt.Fprintf(c.out, "session=%s buffered=%d pending=%d passes=%d\n", st.Session, st.Buffered, st.Pending, st.Passes)
	fmt.Fprintf(c.out, "memory current=%d min=%d max=%d bytes\n", st.Memory.Current, st.Memory.Min, st.Memory.Max)
	return nil
}
