package mcp

import (
	"context"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func TestRequestUserDefaultsEmpty(t *testing.T) {
	require.Equal(t, "", requestUser(context.Background()))
}

func TestNoAuthMiddlewareInjectsUser(t *testing.T) {
	var seen string
	next := func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		seen = requestUser(ctx)
		return nil, nil
	}

	h := noAuthMiddleware("default")(next)
	_, err := h(context.Background(), "tools/call", nil)
	require.NoError(t, err)
	require.Equal(t, "default", seen)
}

func TestAuthMiddlewareSkipsProtocolMethods(t *testing.T) {
	called := false
	next := func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		called = true
		return nil, nil
	}

	h := authMiddleware(nil)(next)
	for _, method := range []string{"initialize", "ping"} {
		called = false
		_, err := h(context.Background(), method, nil)
		require.NoError(t, err)
		require.True(t, called, "%s must pass through without credentials", method)
	}
}
