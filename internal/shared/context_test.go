package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientFromRequestStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:52110"
	req.Header.Set("User-Agent", "vantage-test/1.0")

	client := ClientFromRequest(req)
	require.Equal(t, "203.0.113.9", client.IP)
	require.Equal(t, "vantage-test/1.0", client.UserAgent)
}

func TestClientFromRequestKeepsBareAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9"

	require.Equal(t, "203.0.113.9", ClientFromRequest(req).IP)
}

func TestClientContextRoundtrip(t *testing.T) {
	ctx := ContextWithClient(context.Background(), Client{IP: "198.51.100.4", UserAgent: "vantage-test/1.0"})

	client := ClientFromContext(ctx)
	require.Equal(t, "198.51.100.4", client.IP)
	require.Equal(t, "vantage-test/1.0", client.UserAgent)

	// Absent value reads as unknown, not a panic.
	require.Zero(t, ClientFromContext(context.Background()))
}
