package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"StudyBuddy/internal/client"
	"StudyBuddy/internal/session"
	"StudyBuddy/internal/ui"
)

// ChatBot is the interactive terminal front end of the transcript client
type ChatBot struct {
	client *client.Client
	logger *slog.Logger
	out    io.Writer
}

// New wraps c for interactive use.
func New(c *client.Client, logger *slog.Logger) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatBot{client: c, logger: logger}
}

// AwaitingHook returns a hook for client.WithAwaitingHook that prints the
// thinking indicator while a reply is pending.
func AwaitingHook(out io.Writer, theme func() session.Theme) func(bool) {
	return func(awaiting bool) {
		if awaiting {
			fmt.Fprintln(out, ui.Thinking(theme()))
		}
	}
}

// handleCommand handles slash commands. It reports whether to quit.
func (cb *ChatBot) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/theme":
		theme, err := cb.client.ToggleTheme()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(cb.out, "Switched to %s theme\n", theme)
		return false, nil

	case "/clear":
		if err := cb.client.Clear(); err != nil {
			return false, err
		}
		fmt.Fprintln(cb.out, "Transcript cleared")
		return false, nil

	case "/history":
		fmt.Fprint(cb.out, ui.Render(cb.client.Transcript(), cb.client.Theme(), cb.client.Awaiting()))
		return false, nil

	case "/help":
		fmt.Fprintln(cb.out, "Available commands:")
		fmt.Fprintln(cb.out, "  /quit, /exit   - Exit the chat")
		fmt.Fprintln(cb.out, "  /theme         - Toggle light/dark theme")
		fmt.Fprintln(cb.out, "  /clear         - Clear the transcript")
		fmt.Fprintln(cb.out, "  /history       - Show the whole transcript")
		fmt.Fprintln(cb.out, "  /help          - Show this help message")
		fmt.Fprintln(cb.out, "  //text         - Send a message that starts with /")
		return false, nil
	}
	return false, fmt.Errorf("unknown command: %s (try /help, or // to send a message starting with /)", parts[0])
}

// Run reads lines from in until EOF, /quit or ctx is cancelled. Lines
// starting with "/" are commands, "//" escapes a leading slash, and
// anything else is submitted as a message.
func (cb *ChatBot) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	cb.out = out

	fmt.Fprintln(out, ui.Header(cb.client.Theme()))
	fmt.Fprintln(out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(out)
	fmt.Fprint(out, ui.Render(cb.client.Transcript(), cb.client.Theme(), false))

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

loop:
	for {
		fmt.Fprint(out, "You: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			break loop
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				break loop
			}
			line = l
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "//"):
			line = strings.Replace(line, "/", "", 1)
		case strings.HasPrefix(trimmed, "/"):
			shouldQuit, err := cb.handleCommand(trimmed)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break loop
			}
			continue
		}

		answer, err := cb.client.Submit(ctx, line)
		switch {
		case errors.Is(err, client.ErrEmptyInput):
			continue
		case errors.Is(err, client.ErrAwaitingReply):
			fmt.Fprintln(out, "Still waiting for the previous reply")
			continue
		case err != nil:
			// the exchange is in the transcript even if saving it failed
			fmt.Fprintf(out, "Error: %v\n", err)
			cb.logger.Error("failed to save exchange", "error", err)
		}

		fmt.Fprintln(out, ui.RenderMessage(answer, cb.client.Theme()))
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Goodbye!")
	return nil
}

// readLines scans in on its own goroutine so a blocked read never holds up
// cancellation. The line channel is closed at EOF, after the scanner error
// has been sent.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}
