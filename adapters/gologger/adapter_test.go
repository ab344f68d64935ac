package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolvePrefersProviderThenLogger(t *testing.T) {
	direct := &capturingLogger{id: "direct"}
	fromProvider := &capturingLogger{id: "provider"}

	_, resolved := Resolve("bdpay.ledger", &capturingProvider{logger: fromProvider}, direct)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger, got %q", got.id)
	}

	provider, resolved := Resolve("bdpay.ledger", nil, direct)
	if got := resolved.(*capturingLogger); got.id != "direct" {
		t.Fatalf("expected direct logger without provider, got %q", got.id)
	}
	if provider == nil {
		t.Fatalf("expected provider wrapping the direct logger")
	}

	if _, resolved = Resolve("   ", nil, nil); resolved == nil {
		t.Fatalf("expected nop logger for blank name")
	}
	if loggerName(" ") != RootLogger {
		t.Fatalf("expected blank names to fall back to %q", RootLogger)
	}
}

func TestResolveForJobBridgesReconcileWorkerLogs(t *testing.T) {
	workerLogger := &capturingLogger{id: "worker"}
	provider := &capturingProvider{logger: workerLogger}

	_, _, jobProvider, jobLogger := ResolveForJob("", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job bridges, got provider=%v logger=%v", jobProvider, jobLogger)
	}

	jobProvider.GetLogger(RootLogger+".webhooks").Info("BDPay reconcile job done", "order_id", "ORD-1")
	captured := workerLogger.lastInfo
	if captured.msg != "BDPay reconcile job done" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if len(captured.args) != 2 || captured.args[0] != "order_id" || captured.args[1] != "ORD-1" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}

	if ToJobProvider(nil) != nil || ToJobLogger(nil) != nil {
		t.Fatalf("expected nil bridges for nil inputs")
	}
}

func TestComponentLoggerNames(t *testing.T) {
	provider := &namingProvider{}
	Component(provider, "webhooks")
	Component(provider, " ")
	if len(provider.names) != 2 {
		t.Fatalf("expected two lookups, got %d", len(provider.names))
	}
	if provider.names[0] != "bdpay.webhooks" {
		t.Fatalf("expected component logger name, got %q", provider.names[0])
	}
	if provider.names[1] != RootLogger {
		t.Fatalf("expected root logger name, got %q", provider.names[1])
	}
	if Component(nil, "ledger") == nil {
		t.Fatalf("expected nop logger without provider")
	}
}

type namingProvider struct {
	names []string
}

func (p *namingProvider) GetLogger(name string) glog.Logger {
	p.names = append(p.names, name)
	return glog.Nop()
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
