package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type echo struct {
	name string
	got  []string
}

func (e *echo) Name() string        { return e.name }
func (e *echo) Description() string { return "echo " + e.name }
func (e *echo) Run(_ context.Context, inv *Invocation) error {
	e.got = inv.Args
	return nil
}

func tagging(tag string, trail *[]string) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			*trail = append(*trail, tag)
			return c.Run(ctx, inv)
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&echo{name: "a"}))
	require.Error(t, r.Register(&echo{name: "a"}))
	require.Panics(t, func() { r.MustRegister(&echo{name: "a"}) })
}

func TestGetAllSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&echo{name: "b"})
	r.MustRegister(&echo{name: "a"})

	all := r.GetAll()
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].Name())
	require.Nil(t, r.Get("missing"))
}

func TestDispatch(t *testing.T) {
	r := NewRegistry()
	e := &echo{name: "resolve"}
	r.MustRegister(e)

	require.NoError(t, r.Dispatch(context.Background(), []string{"resolve", "some", "query"}, nil))
	require.Equal(t, []string{"some", "query"}, e.got)

	require.ErrorIs(t, r.Dispatch(context.Background(), nil, nil), ErrNoCommand)
	require.ErrorIs(t, r.Dispatch(context.Background(), []string{"nope"}, nil), ErrUnknownCommand)
}

func TestApplyOrderAndRoot(t *testing.T) {
	var trail []string
	inner := &echo{name: "x"}
	c := Apply(inner, tagging("first", &trail), tagging("second", &trail))

	require.NoError(t, c.Run(context.Background(), &Invocation{}))
	require.Equal(t, []string{"second", "first"}, trail)
	require.Same(t, inner, Root(c))
	require.Equal(t, "x", c.Name())
}
