package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamemaster-agent/internal/dice"
	"gamemaster-agent/internal/domain"
	"gamemaster-agent/internal/session"
	"gamemaster-agent/internal/storage"
)

const defaultAgentTimeout = 60 * time.Second

// Agent produces the next Game Master utterance for an ordered transcript.
type Agent interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Roller produces d20 rolls.
type Roller interface {
	RollD20() dice.Roll
}

// SessionManager is the session lifecycle surface the interpreter drives.
// *session.Manager satisfies it.
type SessionManager interface {
	StartNew(ctx context.Context, seed string) (domain.Session, error)
	Resume(ctx context.Context, sessionUUID string) (domain.Session, error)
	Append(ctx context.Context, role domain.Role, content string) (domain.Message, error)
	Transcript() []domain.Message
	Active() (domain.Session, bool)
	CloseActive()
	Delete(ctx context.Context, sessionUUID string) error
	Sessions(ctx context.Context) ([]domain.Session, error)
}

// Result is what the shell renders after a command.
type Result struct {
	Reply    string           // Game Master narrative
	Notice   string           // one-line informational output
	Sessions []domain.Session // /list payload
	Roll     *dice.Roll       // /roll payload
	Quit     bool             // end the interactive loop
}

// Interpreter dispatches parsed commands against the session state machine.
type Interpreter struct {
	sessions     SessionManager
	agent        Agent
	roller       Roller
	seed         string
	agentTimeout time.Duration
}

// New creates an Interpreter. seed is the system scenario message for new
// sessions; agentTimeout bounds every generative call.
func New(sessions SessionManager, agent Agent, roller Roller, seed string, agentTimeout time.Duration) (*Interpreter, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session manager must not be nil")
	}
	if agent == nil {
		return nil, errors.New("usecase: agent must not be nil")
	}
	if roller == nil {
		return nil, errors.New("usecase: roller must not be nil")
	}
	if agentTimeout <= 0 {
		agentTimeout = defaultAgentTimeout
	}
	return &Interpreter{
		sessions:     sessions,
		agent:        agent,
		roller:       roller,
		seed:         seed,
		agentTimeout: agentTimeout,
	}, nil
}

// Execute runs one command. Every transition is total: it returns either a
// Result or a *Error, and the state machine is never left ambiguous.
func (i *Interpreter) Execute(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Kind {
	case CommandNew:
		return i.startSession(ctx, openingInstruction, "Started a new game.")
	case CommandResume:
		return i.resume(ctx, cmd.UUID)
	case CommandList:
		sessions, err := i.sessions.Sessions(ctx)
		if err != nil {
			return Result{}, translateErr(ErrorStoreUnavailable, "list_sessions", err)
		}
		return Result{Sessions: sessions}, nil
	case CommandDelete:
		if err := i.sessions.Delete(ctx, cmd.UUID); err != nil {
			return Result{}, translateErr(ErrorStoreUnavailable, "delete_session", err)
		}
		return Result{Notice: fmt.Sprintf("Session %s has been deleted.", cmd.UUID)}, nil
	case CommandReset:
		if _, ok := i.sessions.Active(); !ok {
			return Result{}, newError(ErrorNoActiveSession, "reset_requires_active_session", nil)
		}
		return i.startSession(ctx, resetInstruction, "Session has been reset; a new session was started. The previous session is still resumable.")
	case CommandRoll:
		return i.roll(ctx)
	case CommandPause:
		return i.pause(), nil
	case CommandHelp:
		return Result{Notice: HelpText}, nil
	case CommandSay:
		return i.say(ctx, cmd.Text)
	default:
		return Result{}, newError(ErrorUnknownCommand, "unrecognized_command_kind", nil)
	}
}

// startSession backs /new and /reset: create and seed a session, then play
// the opening turn so the Game Master greets the player.
func (i *Interpreter) startSession(ctx context.Context, instruction, notice string) (Result, error) {
	sess, err := i.sessions.StartNew(ctx, i.seed)
	if err != nil {
		return Result{}, translateErr(ErrorStoreUnavailable, "start_session", err)
	}
	res := Result{Notice: fmt.Sprintf("%s Your session UUID is: %s", notice, sess.UUID)}
	reply, err := i.playTurn(ctx, instruction)
	if err != nil {
		// The session exists and is active; the player still needs its UUID.
		return res, err
	}
	res.Reply = reply
	return res, nil
}

func (i *Interpreter) resume(ctx context.Context, sessionUUID string) (Result, error) {
	sess, err := i.sessions.Resume(ctx, sessionUUID)
	if err != nil {
		return Result{}, translateErr(ErrorStoreUnavailable, "resume_session", err)
	}

	res := Result{Notice: fmt.Sprintf("Resumed session %s.", sess.UUID)}
	transcript := i.sessions.Transcript()
	if n := len(transcript); n > 0 && transcript[n-1].Role == domain.RoleAssistant {
		res.Reply = transcript[n-1].Content
	}
	return res, nil
}

func (i *Interpreter) roll(ctx context.Context) (Result, error) {
	if _, ok := i.sessions.Active(); !ok {
		return Result{}, newError(ErrorNoActiveSession, "roll_requires_active_session", nil)
	}

	roll := i.roller.RollD20()
	// The narration is persisted before the GM turn so the roll survives a
	// later resume even if the agent call fails.
	if _, err := i.sessions.Append(ctx, domain.RoleSystem, roll.Text); err != nil {
		return Result{}, translateErr(ErrorStoreUnavailable, "persist_roll", err)
	}
	reply, err := i.playTurn(ctx, rollFollowUp(roll.Value))
	if err != nil {
		return Result{Roll: &roll}, err
	}
	return Result{Roll: &roll, Reply: reply}, nil
}

func (i *Interpreter) pause() Result {
	res := Result{Quit: true, Notice: "Game paused. Goodbye."}
	if sess, ok := i.sessions.Active(); ok {
		res.Notice = fmt.Sprintf("Game paused. To continue later, run /resume %s", sess.UUID)
	}
	i.sessions.CloseActive()
	return res
}

func (i *Interpreter) say(ctx context.Context, text string) (Result, error) {
	if _, ok := i.sessions.Active(); !ok {
		return Result{}, newError(ErrorNoActiveSession, "no_active_session_run_new_or_resume", nil)
	}
	reply, err := i.playTurn(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Reply: reply}, nil
}

// playTurn appends the player utterance, asks the agent for the next
// narrative beat, and appends the reply. The agent call is the suspension
// point: it runs without holding any transcript lock, under the configured
// timeout. On agent failure the already-persisted player turn is kept.
func (i *Interpreter) playTurn(ctx context.Context, text string) (string, error) {
	if _, err := i.sessions.Append(ctx, domain.RoleUser, text); err != nil {
		return "", translateErr(ErrorStoreUnavailable, "persist_player_turn", err)
	}

	agentCtx, cancel := context.WithTimeout(ctx, i.agentTimeout)
	defer cancel()
	reply, err := i.agent.Generate(agentCtx, transcriptToChat(i.sessions.Transcript()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newError(ErrorAgentTimeout, "agent_timeout_player_turn_saved", err)
		}
		return "", newError(ErrorAgent, "agent_error_player_turn_saved", err)
	}

	if _, err := i.sessions.Append(ctx, domain.RoleAssistant, reply); err != nil {
		return "", translateErr(ErrorStoreUnavailable, "persist_gm_turn", err)
	}
	return reply, nil
}

// translateErr folds session and storage errors into the command-level
// taxonomy; defaultCode applies when the cause is not classified.
func translateErr(defaultCode ErrorCode, reason string, err error) *Error {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr
	}
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return newError(ErrorNoActiveSession, reason, err)
	case errors.Is(err, session.ErrInvariant):
		return newError(ErrorInvariant, reason, err)
	case errors.Is(err, storage.ErrNotFound):
		return newError(ErrorSessionNotFound, reason, err)
	case errors.Is(err, storage.ErrConflict):
		return newError(ErrorStoreConflict, reason, err)
	case errors.Is(err, storage.ErrUnavailable):
		return newError(ErrorStoreUnavailable, reason, err)
	default:
		return newError(defaultCode, reason, err)
	}
}
