package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoCommand      = errors.New("no command given")
)

// DefaultRegistry is the global registry used by adapters (Discord, CLI).
var DefaultRegistry = NewRegistry()

// Registry stores commands by name. Adapters look commands up and invoke
// them with their own context; Dispatch covers the argv case.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Names are unique per registry.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[c.Name()]; ok {
		return fmt.Errorf("command %q already registered", c.Name())
	}
	r.commands[c.Name()] = c
	return nil
}

// MustRegister is Register for setup code, where a duplicate is a bug.
func (r *Registry) MustRegister(c Command) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[name]
}

// GetAll returns all registered commands, sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Dispatch runs the command named by args[0] with the remaining args.
func (r *Registry) Dispatch(ctx context.Context, args []string, data interface{}) error {
	if len(args) == 0 {
		return ErrNoCommand
	}
	c := r.Get(args[0])
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return c.Run(ctx, &Invocation{Args: args[1:], Data: data})
}
