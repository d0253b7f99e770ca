package core

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ps2kbd/protocol"
)

var (
	ErrUnknownCommand = errors.New("core: unknown command")
	ErrMalformed      = errors.New("core: malformed arguments")
	ErrDuplicate      = errors.New("core: command already registered")
)

// CommandHandler decodes its own arguments from args and writes its result
// values to out. Output is discarded when the handler fails.
type CommandHandler func(args *[]byte, out protocol.OutputBuffer) error

// Command is one registered command
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument list for the dictionary, e.g. "num=%c caps=%c"
	Handler CommandHandler
}

// CommandRegistry maps command ids to handlers
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	dictionary string
}

// NewCommandRegistry returns an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command under a fixed id. Ids are part of the wire
// protocol, so they are assigned by the caller rather than handed out.
func (r *CommandRegistry) Register(id uint16, name, format string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return errors.New(ErrDuplicate.Error() + ": id " + strconv.Itoa(int(id)))
	}
	if _, exists := r.nameToID[name]; exists {
		return errors.New(ErrDuplicate.Error() + ": " + name)
	}

	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.nameToID[name] = id
	r.rebuildDictionary()
	return nil
}

// GetCommand retrieves a command by id
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Lookup retrieves a command by name
func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered under id
func (r *CommandRegistry) Dispatch(id uint16, args *[]byte, out protocol.OutputBuffer) error {
	cmd, ok := r.GetCommand(id)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(args, out)
}

// Commands returns the registered commands ordered by id
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].ID < cmds[j].ID })
	return cmds
}

// GetDictionary returns one "id name format" line per command, by id
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary must be called with the lock held
func (r *CommandRegistry) rebuildDictionary() {
	ids := make([]int, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		cmd := r.commands[uint16(id)]
		b.WriteString(strconv.Itoa(id))
		b.WriteByte(' ')
		b.WriteString(cmd.Name)
		if cmd.Format != "" {
			b.WriteByte(' ')
			b.WriteString(cmd.Format)
		}
		b.WriteByte('\n')
	}
	r.dictionary = b.String()
}
