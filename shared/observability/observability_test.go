package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMetricsServesCounters(t *testing.T) {
	m, err := SetupMetrics("whatsjuju-test")
	require.NoError(t, err)
	defer m.Provider.Shutdown(context.Background())

	counter, err := m.Provider.Meter("test").Int64Counter("replies_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	srv := httptest.NewServer(m.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "replies")
}
