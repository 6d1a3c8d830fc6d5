package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/pdv/catalogsync/internal/domain/catalogsync"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// MaxLabelValueLength caps label values to keep profile cardinality bounded.
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profile labels. SKUs and ids change
// per item and would explode the number of series.
var highCardinalityLabels = map[string]bool{
	"sku":        true,
	"local_id":   true,
	"remote_id":  true,
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
	"run_id":     true,
}

// Do runs fn with the sync operation attached as a profiling label, so CPU
// and allocation samples can be split by sync_products, update_stock and so
// on. pprof labels are applied even when shipping to Pyroscope is disabled.
func (p *Profiler) Do(ctx context.Context, op catalogsync.Operation, fn func(context.Context)) {
	WithProfilingLabels(ctx, map[string]string{ProfilingLabelOperation: string(op)}, fn)
}

// WithProfilingLabels runs fn with the sanitized labels applied.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns sorted key/value pairs with empty, high-cardinality
// and malformed keys removed and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		clean := sanitizeLabelKey(key)
		if clean == "" || highCardinalityLabels[clean] {
			continue
		}
		pairs = append(pairs, clean, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases the key and keeps only [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}
