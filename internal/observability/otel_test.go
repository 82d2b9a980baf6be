package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/courier/internal/config"
)

func TestInitOTLP_Disabled(t *testing.T) {
	shutdown, err := InitOTLP(context.Background(), config.OTLPConfig{}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitOTLP_Protocols(t *testing.T) {
	for _, proto := range []string{"grpc", "http", ""} {
		t.Run(proto, func(t *testing.T) {
			shutdown, err := InitOTLP(context.Background(), config.OTLPConfig{
				Endpoint:    "localhost:4317",
				Protocol:    proto,
				ServiceName: "courier-test",
				Insecure:    true,
			}, "test")
			require.NoError(t, err)
			require.NotNil(t, shutdown)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = shutdown(ctx)
		})
	}
}

func TestInitOTLP_UnknownProtocol(t *testing.T) {
	_, err := InitOTLP(context.Background(), config.OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"}, "test")
	assert.Error(t, err)
}
