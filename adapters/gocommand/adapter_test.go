package gocommand

import (
	"context"
	"errors"
	"testing"

	bdpaycmd "github.com/goliatone/go-bdpay/command"
	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	bdpayquery "github.com/goliatone/go-bdpay/query"
	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "bdpay.command.test" }

type untypedMessage struct{}

func (untypedMessage) Type() string { return "" }

type rejectedMessage struct{}

func (rejectedMessage) Type() string { return "bdpay.command.rejected" }

func (rejectedMessage) Validate() error { return errors.New("invalid payload") }

type queueMessage struct{}

func (queueMessage) Type() string { return "bdpay.command.queue" }

func TestRegisterCommandAndDispatch(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	executed := 0

	cmd := command.CommandFunc[dispatchMessage](func(_ context.Context, msg dispatchMessage) error {
		if msg.ID != "m1" {
			t.Fatalf("unexpected message %#v", msg)
		}
		executed++
		return nil
	})
	sub, err := RegisterCommand[dispatchMessage](adapter, cmd)
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	defer sub.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestDispatchRejectsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	if err := Dispatch(ctx, untypedMessage{}); err == nil {
		t.Fatalf("expected empty type to be rejected")
	}
	if err := Dispatch(ctx, rejectedMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if _, err := Query[untypedMessage, string](ctx, untypedMessage{}); err == nil {
		t.Fatalf("expected query with empty type to be rejected")
	}
}

func TestRegisterRequiresAdapterAndHandler(t *testing.T) {
	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error { return nil })
	if _, err := RegisterCommand[dispatchMessage](nil, cmd); err == nil {
		t.Fatalf("expected missing registry error")
	}
	if _, err := RegisterCommand[dispatchMessage](NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing command error")
	}
	if err := (*RegistryAdapter)(nil).Initialize(); err == nil {
		t.Fatalf("expected nil adapter to fail initialization")
	}
}

func TestMirrorToQueue(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.MirrorToQueue("", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := adapter.MirrorToQueue("queue", nil); err == nil {
		t.Fatalf("expected missing queue registry error")
	}
	if err := adapter.Registry().RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("bdpay.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterHandlersDispatchesBDPayMessages(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	gateway := &balanceGateway{balance: map[string]any{"balance": "750000"}}
	ldg, err := ledger.New(ledger.NewMemoryStore())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	subs, err := RegisterHandlers(adapter, Handlers{
		Gateway:      gateway,
		Ledger:       ldg,
		Transactions: ldg.Store(),
	})
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()
	if len(subs) != 10 {
		t.Fatalf("expected 10 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	balance, err := Query[bdpayquery.GetBalanceMessage, map[string]any](ctx, bdpayquery.GetBalanceMessage{})
	if err != nil {
		t.Fatalf("query balance: %v", err)
	}
	if balance["balance"] != "750000" {
		t.Fatalf("unexpected balance: %#v", balance)
	}

	err = Dispatch(ctx, bdpaycmd.CreateStaticVAMessage{Request: core.StaticVARequest{
		CustomerName:  "Budi",
		CustomerEmail: "budi@example.com",
		CustomerPhone: "0812",
	}})
	if err != nil {
		t.Fatalf("dispatch static va: %v", err)
	}
	if gateway.staticCalls != 1 {
		t.Fatalf("expected one static va call, got %d", gateway.staticCalls)
	}
}

func TestRegisterHandlersRequiresRegistry(t *testing.T) {
	if _, err := RegisterHandlers(nil, Handlers{}); err == nil {
		t.Fatalf("expected missing registry error")
	}
}

type balanceGateway struct {
	balance     map[string]any
	staticCalls int
}

func (g *balanceGateway) CreateVA(context.Context, core.PaymentRequest) (map[string]any, error) {
	return map[string]any{}, nil
}

func (g *balanceGateway) CreatePaymentLink(context.Context, core.PaymentRequest) (map[string]any, error) {
	return map[string]any{}, nil
}

func (g *balanceGateway) CreateStaticVA(context.Context, core.StaticVARequest) (map[string]any, error) {
	g.staticCalls++
	return map[string]any{"vaNumber": "9001"}, nil
}

func (g *balanceGateway) GetPaymentStatus(context.Context, string) (map[string]any, error) {
	return map[string]any{"status": "PENDING"}, nil
}

func (g *balanceGateway) CreateDisbursement(context.Context, core.DisbursementRequest) (map[string]any, error) {
	return map[string]any{}, nil
}

func (g *balanceGateway) GetDisbursementStatus(context.Context, string) (map[string]any, error) {
	return map[string]any{"status": "PENDING"}, nil
}

func (g *balanceGateway) GetBalance(context.Context) (map[string]any, error) {
	return g.balance, nil
}
