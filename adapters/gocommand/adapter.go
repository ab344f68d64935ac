package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

var errNoRegistry = fmt.Errorf("gocommand: registry is not configured")

// RegistryAdapter owns the go-command registry the bdpay handlers are
// registered on.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// MirrorToQueue copies every registered handler into a go-job command
// registry during Initialize, so callbacks can be reconciled by a worker.
func (a *RegistryAdapter) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return errNoRegistry
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "bdpay.queue"
	}
	return a.registry.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return errNoRegistry
	}
	return a.registry.Initialize()
}

// RegisterCommand subscribes cmd on the global dispatcher and adds it to
// the registry. The subscription is released when registration fails.
func RegisterCommand[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errNoRegistry
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	sub := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	return keep(sub, adapter.registry.RegisterCommand(cmd))
}

// RegisterQuery is RegisterCommand for queriers.
func RegisterQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errNoRegistry
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	sub := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	return keep(sub, adapter.registry.RegisterCommand(qry))
}

func keep(sub commanddispatcher.Subscription, err error) (commanddispatcher.Subscription, error) {
	if err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

// Dispatch validates msg and sends it to its command handler.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := validate(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// Query validates msg and returns its query handler's result.
func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := validate(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func validate(msg any) error {
	typed, ok := msg.(command.Message)
	if !ok || strings.TrimSpace(typed.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return command.ValidateMessage(msg)
}
