package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/harunnryd/sapa/pkg/errorsx"
)

type ConsoleConfig struct {
	// Prompt is printed before each read; empty disables it.
	Prompt string
	// Speaker prefixes every reply.
	Speaker string
}

// Console reads lines from r and writes prefixed replies to w.
type Console struct {
	cfg ConsoleConfig
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

func NewConsole(r io.Reader, w io.Writer, cfg ConsoleConfig) *Console {
	if cfg.Speaker == "" {
		cfg.Speaker = "Assistant"
	}
	c := &Console{cfg: cfg, out: w}
	if r != nil {
		c.in = bufio.NewReader(r)
	}
	return c
}

func (c *Console) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.in == nil {
		return "", io.EOF
	}
	if c.cfg.Prompt != "" {
		c.mu.Lock()
		fmt.Fprint(c.out, c.cfg.Prompt)
		c.mu.Unlock()
	}
	line, err := c.readLine(ctx)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err == io.EOF && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("console read: %w", err), errorsx.ReasonInputClosed)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readLine gives up on ctx cancellation; the pending read is abandoned and
// the console must not be read again.
func (c *Console) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (c *Console) Write(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s: %s\n", c.cfg.Speaker, text)
	return err
}

// Printf writes an unprefixed status line such as "Listening...".
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}
