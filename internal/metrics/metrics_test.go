package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ChecksTotal.WithLabelValues("hosted", "ok"))
	ChecksTotal.WithLabelValues("hosted", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ChecksTotal.WithLabelValues("hosted", "ok")))
}

func TestHandler(t *testing.T) {
	CacheLookups.WithLabelValues("fresh").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "corrector_cache_lookups_total")
}
