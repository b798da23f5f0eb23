// Package cmd is the transport-neutral command core shared by the Discord
// bot and the CLI. Transports put their own payload in Invocation.Data.
package cmd

import "context"

type Invocation struct {
	Args []string
	// Data is the transport payload, e.g. a slash interaction context.
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
