// Package gallery implements the photo library: an authorization gate backed
// by a persisted state and a remote prompt, and a writer backed by an asset
// store.
package gallery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
)

const authLogPrefix = "gallery:authorizer"

// ScopeAddOnly is the authorization scope for adding images to the library.
const ScopeAddOnly = "photos.add"

// StateStore persists the authorization decision per scope.
type StateStore interface {
	// LoadState returns the stored state; ok is false if nothing was recorded.
	LoadState(ctx context.Context, scope string) (state capability.AuthorizationState, ok bool, err error)
	SaveState(ctx context.Context, scope string, state capability.AuthorizationState) error
}

// Prompter asks the user for a decision.
type Prompter interface {
	Prompt(ctx context.Context, scope string) (capability.AuthorizationState, error)
}

// Authorizer implements capability.PhotoLibraryAuthorizer. A stored
// Authorized or Denied decision is final; otherwise the user is prompted and
// a definite answer is stored.
type Authorizer struct {
	store    StateStore
	prompter Prompter
	scope    string
	// one prompt at a time
	prompting chan struct{}
}

// NewAuthorizer creates an Authorizer for ScopeAddOnly. prompter may be nil,
// in which case undecided requests stay Undetermined.
func NewAuthorizer(store StateStore, prompter Prompter) *Authorizer {
	return &Authorizer{
		store:     store,
		prompter:  prompter,
		scope:     ScopeAddOnly,
		prompting: make(chan struct{}, 1),
	}
}

// RequestAuthorization resolves to the current decision, prompting if needed.
func (a *Authorizer) RequestAuthorization(ctx context.Context) *async.Future[capability.AuthorizationState] {
	return async.Go(func() (capability.AuthorizationState, error) {
		return a.authorize(ctx)
	})
}

func (a *Authorizer) authorize(ctx context.Context) (capability.AuthorizationState, error) {
	if state, decided, err := a.stored(ctx); err != nil || decided {
		return state, err
	}
	if a.prompter == nil {
		return capability.Undetermined, nil
	}

	select {
	case a.prompting <- struct{}{}:
	case <-ctx.Done():
		return capability.Undetermined, ctx.Err()
	}
	defer func() { <-a.prompting }()

	// Another request may have prompted while this one waited.
	if state, decided, err := a.stored(ctx); err != nil || decided {
		return state, err
	}

	state, err := a.prompter.Prompt(ctx, a.scope)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - prompt for %s failed: %v", authLogPrefix, a.scope, err))
		return capability.Undetermined, nil
	}
	if state == capability.Undetermined {
		return state, nil
	}
	if err := a.store.SaveState(ctx, a.scope, state); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to persist %s=%s: %v", authLogPrefix, a.scope, state, err))
	}
	slog.Info(fmt.Sprintf("%s - %s decided: %s", authLogPrefix, a.scope, state))
	return state, nil
}

func (a *Authorizer) stored(ctx context.Context) (capability.AuthorizationState, bool, error) {
	state, ok, err := a.store.LoadState(ctx, a.scope)
	if err != nil {
		return capability.Undetermined, false, fmt.Errorf("%s - load state: %w", authLogPrefix, err)
	}
	return state, ok && state != capability.Undetermined, nil
}
