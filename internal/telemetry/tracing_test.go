package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "order-api", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
