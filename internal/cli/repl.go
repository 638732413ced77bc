// Package cli is the interactive shell: it reads input lines, dispatches
// them through the interpreter, and renders results as plain text.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gamemaster-agent/internal/usecase"
)

const banner = `Welcome to the AI TTRPG!
Type '/new' to start, '/resume <uuid>' to continue, '/list' to see saved games, or '/help' for all commands.`

const separator = "---------------------------------------------------"

// executor dispatches one parsed command. *usecase.Interpreter satisfies it.
type executor interface {
	Execute(ctx context.Context, cmd usecase.Command) (usecase.Result, error)
}

// REPL is the interactive read-eval-print loop.
type REPL struct {
	interp executor
	in     io.Reader
	out    io.Writer
}

// New creates a REPL reading from in and writing to out.
func New(interp executor, in io.Reader, out io.Writer) (*REPL, error) {
	if interp == nil {
		return nil, errors.New("cli: interpreter must not be nil")
	}
	if in == nil || out == nil {
		return nil, errors.New("cli: input and output must not be nil")
	}
	return &REPL{interp: interp, in: in, out: out}, nil
}

// Run reads lines until EOF, a /pause, or context cancellation. resumeUUID,
// when non-empty, is resumed before the first prompt (auto-resume); a
// failure there is reported and the loop starts normally.
func (r *REPL) Run(ctx context.Context, resumeUUID string) error {
	fmt.Fprintln(r.out, banner)

	if strings.TrimSpace(resumeUUID) != "" {
		fmt.Fprintf(r.out, "Auto-resuming session: %s\n", resumeUUID)
		res, err := r.interp.Execute(ctx, usecase.Command{Kind: usecase.CommandResume, UUID: resumeUUID})
		if err != nil {
			fmt.Fprintf(r.out, "Failed to resume session %s: %s. Starting normally.\n", resumeUUID, errorLine(err))
		} else {
			r.render(res)
		}
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, "\n> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("cli: read input: %w", err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := usecase.ParseCommand(line)
		if err != nil {
			fmt.Fprintln(r.out, errorLine(err))
			continue
		}
		res, err := r.interp.Execute(ctx, cmd)
		if err != nil {
			// Partial results still matter: a failed opening turn carries the
			// new session's UUID, a failed roll turn carries the roll.
			r.render(res)
			fmt.Fprintf(r.out, "%s failed: %s\n", commandLabel(cmd), errorLine(err))
			continue
		}
		r.render(res)
		if res.Quit {
			return nil
		}
	}
}

func (r *REPL) render(res usecase.Result) {
	if res.Notice != "" {
		fmt.Fprintln(r.out, res.Notice)
	}
	if res.Roll != nil {
		fmt.Fprintln(r.out, res.Roll.Text)
	}
	if res.Sessions != nil {
		if len(res.Sessions) == 0 {
			fmt.Fprintln(r.out, "No saved sessions found.")
		} else {
			fmt.Fprintln(r.out, "--- Saved Sessions ---")
			for _, s := range res.Sessions {
				fmt.Fprintf(r.out, "UUID: %s (Created: %s)\n", s.UUID, s.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			}
		}
	}
	if res.Reply != "" {
		fmt.Fprintf(r.out, "%s\nGM:\n%s\n", separator, res.Reply)
	}
}

// errorLine formats a failure as a single specific line.
func errorLine(err error) string {
	var uerr *usecase.Error
	if errors.As(err, &uerr) {
		switch uerr.Code {
		case usecase.ErrorNoActiveSession:
			return "no active session. Type '/new' to start or '/resume <uuid>' to continue."
		case usecase.ErrorSessionNotFound:
			return "session not found. Type '/list' to see saved sessions."
		case usecase.ErrorUnknownCommand:
			return fmt.Sprintf("unknown command %q. Type /help for a list of commands.", uerr.Reason)
		case usecase.ErrorAgentTimeout:
			return "the Game Master timed out. Your turn was saved; try again."
		case usecase.ErrorAgent:
			return "the Game Master could not reply. Your turn was saved; try again."
		case usecase.ErrorStoreUnavailable:
			return "the save store is unavailable. Please try again."
		case usecase.ErrorStoreConflict:
			return "the save store rejected the operation."
		case usecase.ErrorInvariant:
			return "saved transcript is corrupted for that session."
		case usecase.ErrorInvalidInput:
			return fmt.Sprintf("invalid input (%s). Type /help for usage.", uerr.Reason)
		}
	}
	return err.Error()
}

func commandLabel(cmd usecase.Command) string {
	switch cmd.Kind {
	case usecase.CommandNew:
		return "/new"
	case usecase.CommandResume:
		return "/resume"
	case usecase.CommandList:
		return "/list"
	case usecase.CommandDelete:
		return "/delete"
	case usecase.CommandReset:
		return "/reset"
	case usecase.CommandRoll:
		return "/roll"
	case usecase.CommandPause:
		return "/pause"
	case usecase.CommandHelp:
		return "/help"
	default:
		return "your turn"
	}
}
