package telemetry

import (
	"context"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Profile label keys.
const (
	ProfileLabelOperation = "operation"
	ProfileLabelRoute     = "route"
	ProfileLabelMethod    = "method"
)

const maxProfileLabelLength = 128

// unboundedLabels would blow up profile series cardinality.
var unboundedLabels = map[string]bool{
	"user_id":    true,
	"order_id":   true,
	"product_id": true,
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
}

// Profiled runs fn with the given pprof labels attached, so CPU and
// allocation samples taken inside fn can be filtered by them. Unbounded keys
// and empty values are dropped and long values are truncated.
func Profiled(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := labelPairs(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// ProfileOperation is Profiled with a single operation label. Nested calls
// replace the outer operation for the inner region.
func ProfileOperation(ctx context.Context, operation string, fn func(context.Context)) {
	Profiled(ctx, map[string]string{ProfileLabelOperation: operation}, fn)
}

func labelPairs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" || unboundedLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := labels[k]
		if len(v) > maxProfileLabelLength {
			v = v[:maxProfileLabelLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
