package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gamemaster-agent/internal/dice"
	"gamemaster-agent/internal/domain"
	"gamemaster-agent/internal/usecase"
)

// scriptedExecutor returns canned results keyed by command kind.
type scriptedExecutor struct {
	results map[usecase.CommandKind]usecase.Result
	errs    map[usecase.CommandKind]error
	seen    []usecase.Command
}

func (e *scriptedExecutor) Execute(_ context.Context, cmd usecase.Command) (usecase.Result, error) {
	e.seen = append(e.seen, cmd)
	if err, ok := e.errs[cmd.Kind]; ok {
		return e.results[cmd.Kind], err
	}
	return e.results[cmd.Kind], nil
}

func runREPL(t *testing.T, exec *scriptedExecutor, input, resumeUUID string) string {
	t.Helper()
	var out strings.Builder
	repl, err := New(exec, strings.NewReader(input), &out)
	require.NoError(t, err)
	require.NoError(t, repl.Run(context.Background(), resumeUUID))
	return out.String()
}

func TestRunRendersReplyAndNotice(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandNew: {
			Notice: "Started a new game. Your session UUID is: abc-123",
			Reply:  "Welcome, adventurer!",
		},
	}}

	out := runREPL(t, exec, "/new\n", "")
	require.Contains(t, out, "Welcome to the AI TTRPG!")
	require.Contains(t, out, "Your session UUID is: abc-123")
	require.Contains(t, out, "GM:\nWelcome, adventurer!")
}

func TestRunFreeTextBecomesSayCommand(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandSay: {Reply: "A creaking hinge..."},
	}}

	out := runREPL(t, exec, "I open the door\n", "")
	require.Contains(t, out, "A creaking hinge...")
	require.Len(t, exec.seen, 1)
	require.Equal(t, usecase.CommandSay, exec.seen[0].Kind)
	require.Equal(t, "I open the door", exec.seen[0].Text)
}

func TestRunSkipsBlankLines(t *testing.T) {
	exec := &scriptedExecutor{}

	runREPL(t, exec, "\n   \n\n", "")
	require.Empty(t, exec.seen)
}

func TestRunRendersSessionList(t *testing.T) {
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandList: {Sessions: []domain.Session{
			{ID: "1", UUID: "abc-123", CreatedAt: created},
		}},
	}}

	out := runREPL(t, exec, "/list\n", "")
	require.Contains(t, out, "--- Saved Sessions ---")
	require.Contains(t, out, "UUID: abc-123")
	require.Contains(t, out, "2026-08-30 10:00:00 UTC")
}

func TestRunRendersEmptySessionList(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandList: {Sessions: []domain.Session{}},
	}}

	out := runREPL(t, exec, "/list\n", "")
	require.Contains(t, out, "No saved sessions found.")
}

func TestRunRendersRollNarration(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandRoll: {
			Roll:  &dice.Roll{Value: 17, Text: "You rolled a D20 and got a 17."},
			Reply: "The lock clicks open.",
		},
	}}

	out := runREPL(t, exec, "/roll\n", "")
	require.Contains(t, out, "You rolled a D20 and got a 17.")
	require.Contains(t, out, "The lock clicks open.")
}

func TestRunQuitsOnPause(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandPause: {Notice: "Game paused. To continue later, run /resume abc-123", Quit: true},
	}}

	out := runREPL(t, exec, "/pause\n/list\n", "")
	require.Contains(t, out, "Game paused.")
	// Input after the quit is never dispatched.
	require.Len(t, exec.seen, 1)
}

func TestRunReportsCommandFailureAndContinues(t *testing.T) {
	exec := &scriptedExecutor{
		results: map[usecase.CommandKind]usecase.Result{
			usecase.CommandPause: {Quit: true},
		},
		errs: map[usecase.CommandKind]error{
			usecase.CommandSay: &usecase.Error{Code: usecase.ErrorNoActiveSession, Reason: "no_active_session_run_new_or_resume"},
		},
	}

	out := runREPL(t, exec, "I open the door\n/pause\n", "")
	require.Contains(t, out, "your turn failed: no active session.")
	require.Len(t, exec.seen, 2)
}

func TestRunRendersPartialResultBeforeFailureLine(t *testing.T) {
	exec := &scriptedExecutor{
		results: map[usecase.CommandKind]usecase.Result{
			usecase.CommandNew:   {Notice: "Started a new game. Your session UUID is: abc-123"},
			usecase.CommandPause: {Quit: true},
		},
		errs: map[usecase.CommandKind]error{
			usecase.CommandNew: &usecase.Error{Code: usecase.ErrorAgent, Reason: "agent_error_player_turn_saved"},
		},
	}

	out := runREPL(t, exec, "/new\n/pause\n", "")
	require.Contains(t, out, "Your session UUID is: abc-123")
	require.Contains(t, out, "/new failed:")
	require.Less(t, strings.Index(out, "abc-123"), strings.Index(out, "/new failed:"))
}

func TestRunReportsParseErrorWithoutDispatch(t *testing.T) {
	exec := &scriptedExecutor{}

	out := runREPL(t, exec, "/teleport\n", "")
	require.Contains(t, out, `unknown command "/teleport"`)
	require.Empty(t, exec.seen)
}

func TestRunAutoResume(t *testing.T) {
	exec := &scriptedExecutor{results: map[usecase.CommandKind]usecase.Result{
		usecase.CommandResume: {Notice: "Resumed session abc-123.", Reply: "A creaking hinge..."},
	}}

	out := runREPL(t, exec, "", "abc-123")
	require.Contains(t, out, "Auto-resuming session: abc-123")
	require.Contains(t, out, "Resumed session abc-123.")
	require.Contains(t, out, "A creaking hinge...")
	require.Len(t, exec.seen, 1)
	require.Equal(t, usecase.CommandResume, exec.seen[0].Kind)
	require.Equal(t, "abc-123", exec.seen[0].UUID)
}

func TestRunAutoResumeFailureStartsNormally(t *testing.T) {
	exec := &scriptedExecutor{
		results: map[usecase.CommandKind]usecase.Result{
			usecase.CommandPause: {Quit: true},
		},
		errs: map[usecase.CommandKind]error{
			usecase.CommandResume: &usecase.Error{Code: usecase.ErrorSessionNotFound, Reason: "resume_session"},
		},
	}

	out := runREPL(t, exec, "/pause\n", "ghost")
	require.Contains(t, out, "Failed to resume session ghost")
	require.Contains(t, out, "Starting normally.")
	// The loop still runs after the failed auto-resume.
	require.Len(t, exec.seen, 2)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	exec := &scriptedExecutor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	repl, err := New(exec, strings.NewReader("/list\n"), &out)
	require.NoError(t, err)
	require.ErrorIs(t, repl.Run(ctx, ""), context.Canceled)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, strings.NewReader(""), &strings.Builder{})
	require.Error(t, err)

	_, err = New(&scriptedExecutor{}, nil, &strings.Builder{})
	require.Error(t, err)
}
