// Package operator provides the human-in-the-loop fallbacks used when a
// challenge cannot be solved automatically.
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var ErrNothingPending = errors.New("no challenge awaiting acknowledgement")

// Console prints the prompt and waits for a line on the input. A single
// reader goroutine owns the input for the lifetime of the Console, so a wait
// that is cancelled never swallows the line meant for the next one.
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	once    sync.Once
	lines   chan struct{}
	closed  chan struct{}
	readErr error
}

func NewConsole(in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		in:     in,
		out:    out,
		logger: logger.With("component", "console_operator"),
		lines:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// AwaitAcknowledgement blocks until the operator enters a line. Closed input
// is not an acknowledgement: the wait then lasts until ctx ends.
func (c *Console) AwaitAcknowledgement(ctx context.Context, prompt string) error {
	c.once.Do(func() { go c.read() })

	fmt.Fprintf(c.out, "%s\nPress Enter once done... ", prompt)
	c.logger.Info("waiting for operator", "prompt", prompt)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.lines:
		return nil
	case <-c.closed:
	}

	if !errors.Is(c.readErr, io.EOF) {
		return fmt.Errorf("failed to read acknowledgement: %w", c.readErr)
	}

	c.logger.Warn("operator input closed, waiting until cancelled", "prompt", prompt)
	<-ctx.Done()
	return ctx.Err()
}

// read hands each complete line to a waiting AwaitAcknowledgement. readErr is
// written before closed is closed.
func (c *Console) read() {
	r := bufio.NewReader(c.in)
	for {
		if _, err := r.ReadString('\n'); err != nil {
			c.readErr = err
			close(c.closed)
			return
		}
		c.lines <- struct{}{}
	}
}

// Prompt describes a challenge waiting for the operator.
type Prompt struct {
	Pending bool      `json:"pending"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since,omitempty"`
}

// Gate blocks the solver until Acknowledge is called, typically from the
// operator HTTP API.
type Gate struct {
	mu     sync.Mutex
	prompt Prompt
	ack    chan struct{}
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	return &Gate{
		logger: logger.With("component", "gate_operator"),
	}
}

func (g *Gate) AwaitAcknowledgement(ctx context.Context, prompt string) error {
	ack := make(chan struct{})

	g.mu.Lock()
	g.prompt = Prompt{Pending: true, Message: prompt, Since: time.Now()}
	g.ack = ack
	g.mu.Unlock()

	g.logger.Info("waiting for operator", "prompt", prompt)

	defer func() {
		g.mu.Lock()
		g.prompt = Prompt{}
		g.ack = nil
		g.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ack:
		g.logger.Info("operator acknowledged")
		return nil
	}
}

// Acknowledge releases the waiting solver.
func (g *Gate) Acknowledge() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ack == nil {
		return ErrNothingPending
	}
	close(g.ack)
	g.ack = nil
	return nil
}

func (g *Gate) Pending() Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompt
}
