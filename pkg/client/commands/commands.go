// Package commands parses the slash commands typed into the chat input
package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Action identifies what a command does
type Action string

const (
	ActionSay      Action = "say" // plain text, no leading slash
	ActionJoin     Action = "join"
	ActionTopic    Action = "topic"
	ActionList     Action = "list"
	ActionReply    Action = "reply"
	ActionDirect   Action = "dm"
	ActionNickname Action = "nick"
	ActionHelp     Action = "help"
	ActionQuit     Action = "quit"
)

var (
	ErrEmptyInput     = errors.New("nothing to send")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArgs    = errors.New("missing arguments")
)

// Definition describes one slash command
type Definition struct {
	Name     string   // typed after the slash
	Aliases  []string // alternate names
	Usage    string   // argument synopsis for help
	HelpText string
	Action   Action
	MinArgs  int // 0, 1 (rest of line) or 2 (first word + rest of line)
	Priority int // help ordering, lower first
}

// Definitions lists every slash command
var Definitions = []Definition{
	{Name: "join", Aliases: []string{"j"}, Usage: "<channel>", HelpText: "Join a channel", Action: ActionJoin, MinArgs: 1, Priority: 10},
	{Name: "topic", Usage: "<text>", HelpText: "Change the channel topic", Action: ActionTopic, MinArgs: 1, Priority: 20},
	{Name: "list", Aliases: []string{"channels"}, HelpText: "Refresh the channel list", Action: ActionList, Priority: 30},
	{Name: "reply", Aliases: []string{"r"}, Usage: "<text>", HelpText: "Reply to the latest message", Action: ActionReply, MinArgs: 1, Priority: 40},
	{Name: "dm", Aliases: []string{"msg"}, Usage: "<user> <text>", HelpText: "Send a direct message", Action: ActionDirect, MinArgs: 2, Priority: 50},
	{Name: "nick", Usage: "<name>", HelpText: "Change your nickname", Action: ActionNickname, MinArgs: 1, Priority: 60},
	{Name: "help", Aliases: []string{"?"}, HelpText: "Show this help", Action: ActionHelp, Priority: 90},
	{Name: "quit", Aliases: []string{"q", "exit"}, HelpText: "Leave the chat", Action: ActionQuit, Priority: 100},
}

var byName = func() map[string]*Definition {
	m := make(map[string]*Definition)
	for i := range Definitions {
		def := &Definitions[i]
		m[def.Name] = def
		for _, alias := range def.Aliases {
			m[alias] = def
		}
	}
	return m
}()

// Invocation is a parsed line of input
type Invocation struct {
	Action Action
	Target string // channel for join, user for dm, name for nick
	Text   string // message or topic text
}

// Lookup finds a command by name or alias
func Lookup(name string) (Definition, bool) {
	def, ok := byName[strings.ToLower(name)]
	if !ok {
		return Definition{}, false
	}
	return *def, true
}

// Parse turns a line of input into an invocation. Lines that do not start
// with a slash are chat text; "//" escapes a leading slash.
func Parse(line string) (Invocation, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Invocation{}, ErrEmptyInput
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Invocation{Action: ActionSay, Text: trimmed}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return Invocation{Action: ActionSay, Text: trimmed[1:]}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	rest = strings.TrimSpace(rest)
	def, ok := Lookup(name)
	if !ok {
		return Invocation{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}

	inv := Invocation{Action: def.Action}
	switch def.MinArgs {
	case 0:
	case 1:
		if rest == "" {
			return Invocation{}, usageError(def)
		}
		switch def.Action {
		case ActionJoin, ActionNickname:
			inv.Target = rest
		default:
			inv.Text = rest
		}
	case 2:
		target, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if target == "" || text == "" {
			return Invocation{}, usageError(def)
		}
		inv.Target, inv.Text = target, text
	}
	return inv, nil
}

func usageError(def Definition) error {
	return fmt.Errorf("%w: usage /%s %s", ErrMissingArgs, def.Name, def.Usage)
}

// HelpLines renders one line per command, ordered by priority
func HelpLines() []string {
	defs := append([]Definition(nil), Definitions...)
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Priority < defs[j].Priority })

	lines := make([]string, 0, len(defs))
	for _, def := range defs {
		synopsis := "/" + def.Name
		if def.Usage != "" {
			synopsis += " " + def.Usage
		}
		lines = append(lines, fmt.Sprintf("%-22s %s", synopsis, def.HelpText))
	}
	return lines
}
