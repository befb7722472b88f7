package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunLoad(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := runLoad(context.Background(), loadConfig{Engines: 3, Txs: 200, Seed: 7}, reg)
	require.NoError(t, err)

	assert.Equal(t, 600, r.Commits+r.Rollbacks+r.Undos)
	assert.Positive(t, r.Commits)
	assert.Len(t, r.Latencies, r.Commits+r.Rollbacks)
	assert.LessOrEqual(t, r.percentile(0.5), r.percentile(1))

	n, err := testutil.GatherAndCount(reg, "schemagraph_engine_commits_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per engine")
}

func TestRunLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runLoad(ctx, loadConfig{Engines: 2, Txs: 10, Seed: 1}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
