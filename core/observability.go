package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// NopMetricsRecorder drops every sample.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// taggedFields are the request attributes promoted from log fields to
// metric tags when present.
var taggedFields = []string{"method", "endpoint", "status_code"}

// observeOperation emits bdpay.<op>.total and bdpay.<op>.duration_ms and
// logs the outcome: errors at error level, successes at debug.
func (c *Client) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if c == nil {
		return
	}
	operation = firstNonEmpty(normalizeOperation(operation), "unknown")
	elapsed := time.Since(startedAt)
	env := c.config.EnvironmentName()
	status := "success"
	if err != nil {
		status = "failure"
	}

	tags := map[string]string{"operation": operation, "status": status, "environment": env}
	for _, key := range taggedFields {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	if c.metricsRecorder != nil {
		c.metricsRecorder.IncCounter(ctx, "bdpay."+operation+".total", 1, maps.Clone(tags))
		c.metricsRecorder.ObserveHistogram(ctx, "bdpay."+operation+".duration_ms", float64(elapsed.Milliseconds()), maps.Clone(tags))
	}

	logged := cloneFields(fields)
	logged["event_type"] = operation
	logged["status"] = status
	logged["environment"] = env
	logged["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logged["error"] = err.Error()
		c.log(ctx, LogLevelError, operation+" failed", logged)
		return
	}
	c.log(ctx, LogLevelDebug, operation+" succeeded", logged)
}

func (c *Client) log(ctx context.Context, level LogLevel, message string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logAt(ctx, c.logger, level, message, fields)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

// CloneFields returns a shallow copy of a payload map.
func CloneFields(fields map[string]any) map[string]any {
	return cloneFields(fields)
}

// flattenFields turns fields into sorted key/value pairs for loggers
// without field support.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}

var (
	_ Gateway         = (*Client)(nil)
	_ MetricsRecorder = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
