package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestAppendAndGetCommonAttrs(t *testing.T) {
	ctx := AppendCommonAttrs(context.Background(),
		attribute.Int64("mt5.login", 123456),
	)
	ctx = AppendCommonAttrs(ctx, attribute.String("mt5.server", "Demo-Server"))

	attrs := GetCommonAttrs(ctx)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("mt5.login"), attrs[0].Key)
	assert.Equal(t, attribute.Key("mt5.server"), attrs[1].Key)
}

func TestGetAttrsEmptyContext(t *testing.T) {
	assert.Empty(t, GetCommonAttrs(context.Background()))
	assert.Empty(t, GetEventAttrs(context.Background()))
	assert.Empty(t, GetMetricAttrs(context.Background()))
}

func TestAppendAttrsDoesNotShareBacking(t *testing.T) {
	parent := AppendCommonAttrs(context.Background(), attribute.String("a", "1"))
	childA := AppendCommonAttrs(parent, attribute.String("b", "2"))
	childB := AppendCommonAttrs(parent, attribute.String("c", "3"))

	a := GetCommonAttrs(childA)
	b := GetCommonAttrs(childB)
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, attribute.Key("b"), a[1].Key)
	assert.Equal(t, attribute.Key("c"), b[1].Key)
	assert.Len(t, GetCommonAttrs(parent), 1)
}

func TestLogAttrsMergeOrder(t *testing.T) {
	ctx := AppendCommonAttrs(context.Background(), attribute.String("common", "x"))
	ctx = AppendEventAttrs(ctx, attribute.String("event", "y"))

	merged := logAttrs(ctx, []attribute.KeyValue{attribute.String("call", "z")})
	require.Len(t, merged, 3)
	assert.Equal(t, attribute.Key("common"), merged[0].Key)
	assert.Equal(t, attribute.Key("event"), merged[1].Key)
	assert.Equal(t, attribute.Key("call"), merged[2].Key)
}

func TestMetricAttrsIgnoreEventAttrs(t *testing.T) {
	ctx := AppendEventAttrs(context.Background(), attribute.String("event", "y"))
	ctx = AppendMetricAttrs(ctx, attribute.String("metric", "m"))

	merged := metricAttrs(ctx, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, attribute.Key("metric"), merged[0].Key)
}

func TestLogAttrsPassThroughWithoutContext(t *testing.T) {
	explicit := []attribute.KeyValue{attribute.String("only", "one")}
	merged := logAttrs(context.Background(), explicit)
	require.Len(t, merged, 1)
	assert.Equal(t, attribute.Key("only"), merged[0].Key)
}
