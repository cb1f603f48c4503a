package bootstrap

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/core/events"
	"github.com/artpar/warpmodel/core/runtime"
)

// RegisterHooks attaches the process-level reactions to record mutations.
// Model-level hooks are declared in model files and resolved by the
// runtime's hook registry.
func RegisterHooks(rt *runtime.Runtime, bus *events.Bus, logger zerolog.Logger) {
	if bus != nil {
		bus.Subscribe("*", auditLog(logger.With().Str("component", "audit").Logger()))
	}

	logger.Debug().
		Strs("hook_types", rt.Hooks().List()).
		Msg("hooks registered")
}

// auditLog records every create, update and destroy with the caller's
// client metadata.
func auditLog(logger zerolog.Logger) events.Handler {
	return func(_ context.Context, e events.Event) error {
		logger.Info().
			Str("class", e.Class).
			Str("op", e.Operation).
			Interface("id", e.ID).
			Interface("client", e.Meta["client"]).
			Interface("app_version", e.Meta["appVersion"]).
			Msg("record changed")
		return nil
	}
}
