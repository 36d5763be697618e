package mustache

import (
	"context"
	"fmt"
)

type renderStateKey struct{}

// renderState tracks the named templates currently being rendered by one
// top-level render call, along with the nesting depth.
type renderState struct {
	inProgress map[string]struct{}
	depth      int
}

// enterTemplate records that name is being rendered for the call carried by
// ctx, creating the call's state on first entry. An empty name only counts
// towards the depth. The returned func must be called once rendering of the
// template is done.
func enterTemplate(ctx context.Context, name string, maxDepth int) (context.Context, func(), error) {
	state, ok := ctx.Value(renderStateKey{}).(*renderState)
	if !ok {
		state = &renderState{inProgress: make(map[string]struct{})}
		ctx = context.WithValue(ctx, renderStateKey{}, state)
	}

	if maxDepth > 0 && state.depth >= maxDepth {
		return ctx, nil, fmt.Errorf("%w: nesting exceeds depth %d", ErrTemplateCycle, maxDepth)
	}
	if name != "" {
		if _, busy := state.inProgress[name]; busy {
			return ctx, nil, fmt.Errorf("%w: %q is already being rendered", ErrTemplateCycle, name)
		}
		state.inProgress[name] = struct{}{}
	}
	state.depth++

	return ctx, func() {
		state.depth--
		if name != "" {
			delete(state.inProgress, name)
		}
	}, nil
}
