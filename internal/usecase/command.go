package usecase

import "strings"

// CommandKind enumerates the fixed command grammar. Input is parsed once
// into a typed Command; dispatch never re-matches strings.
type CommandKind int

const (
	// CommandSay is free text routed to the Game Master.
	CommandSay CommandKind = iota
	CommandNew
	CommandResume
	CommandList
	CommandDelete
	CommandReset
	CommandRoll
	CommandPause
	CommandHelp
)

// Command is one parsed input line with its typed arguments.
type Command struct {
	Kind CommandKind
	UUID string // resume, delete
	Text string // say
}

// ParseCommand parses an input line. The leading token is case-insensitive;
// arguments are space-delimited. Lines without a leading slash are free text.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, newError(ErrorInvalidInput, "empty_input", nil)
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CommandSay, Text: line}, nil
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/new":
		return Command{Kind: CommandNew}, nil
	case "/resume":
		if len(fields) < 2 {
			return Command{}, newError(ErrorInvalidInput, "resume_missing_uuid", nil)
		}
		return Command{Kind: CommandResume, UUID: fields[1]}, nil
	case "/list":
		return Command{Kind: CommandList}, nil
	case "/delete":
		if len(fields) < 2 {
			return Command{}, newError(ErrorInvalidInput, "delete_missing_uuid", nil)
		}
		return Command{Kind: CommandDelete, UUID: fields[1]}, nil
	case "/reset":
		return Command{Kind: CommandReset}, nil
	case "/roll":
		return Command{Kind: CommandRoll}, nil
	case "/pause", "/exit":
		return Command{Kind: CommandPause}, nil
	case "/help":
		return Command{Kind: CommandHelp}, nil
	default:
		return Command{}, newError(ErrorUnknownCommand, strings.ToLower(fields[0]), nil)
	}
}
