package engine

import "strings"

// Command is the closed vocabulary the dispatcher understands. Keeping it a
// tagged enum instead of a name→handler map gives the dispatch switch
// compile-time coverage.
type Command int

const (
	CommandUnknown Command = iota
	CommandOpenLong
	CommandOpenShort
	CommandCloseAll
	CommandActivate
	CommandDeactivate
)

func (c Command) String() string {
	switch c {
	case CommandOpenLong:
		return "open-long"
	case CommandOpenShort:
		return "open-short"
	case CommandCloseAll:
		return "close-all"
	case CommandActivate:
		return "activate"
	case CommandDeactivate:
		return "deactivate"
	default:
		return "unknown"
	}
}

// ParseCommand maps a command name to its Command. The original spell names
// are accepted as aliases.
func ParseCommand(name string) Command {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "open-long", "expecto-long":
		return CommandOpenLong
	case "open-short", "expecto-short":
		return CommandOpenShort
	case "close-all", "finite-incantatem", "colloportus":
		return CommandCloseAll
	case "activate", "lumos":
		return CommandActivate
	case "deactivate", "nox":
		return CommandDeactivate
	default:
		return CommandUnknown
	}
}
