package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permutex/internal/types"
)

func TestPlanBalancedTwoShards(t *testing.T) {
	p, err := Profile{Kind: ProfileBalanced}.Resolve(2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Workers)

	got := Plan(100, p)
	assert.Equal(t, []Range{{0, 50}, {50, 100}}, got)
}

func TestPlanCoversExactly(t *testing.T) {
	profiles := []Profile{
		{Kind: ProfileMax},
		{Kind: ProfileBalanced},
		{Kind: ProfilePowerSaver},
		{Kind: ProfileCustom, Workers: 3, ShardSize: 7},
	}
	for _, prof := range profiles {
		p, err := prof.Resolve(8)
		require.NoError(t, err)
		for _, total := range []uint64{1, 2, 7, 31, 100, 1001} {
			ranges := Plan(total, p)
			require.NotEmpty(t, ranges)
			assert.Equal(t, uint64(0), ranges[0].Start)
			assert.Equal(t, total, ranges[len(ranges)-1].End)
			for i := 1; i < len(ranges); i++ {
				assert.Equal(t, ranges[i-1].End, ranges[i].Start, "%s total=%d", p, total)
			}
			for _, r := range ranges {
				assert.Greater(t, r.End, r.Start)
			}
		}
	}
	assert.Empty(t, Plan(0, Profile{Kind: ProfileMax, Workers: 4, Multiplier: 4}))
}

func TestProfileResolve(t *testing.T) {
	cases := []struct {
		kind            ProfileKind
		cpus            int
		workers, shards int
		checkpointEvery int
	}{
		{ProfileMax, 8, 8, 32, 5000},
		{ProfileBalanced, 8, 4, 8, 2000},
		{ProfilePowerSaver, 8, 2, 2, 1000},
		{ProfilePowerSaver, 2, 1, 1, 1000},
	}
	for _, tc := range cases {
		p, err := Profile{Kind: tc.kind}.Resolve(tc.cpus)
		require.NoError(t, err)
		assert.Equal(t, tc.workers, p.Workers, tc.kind)
		assert.Equal(t, uint64(tc.shards), p.ShardCount(1_000_000), tc.kind)
		assert.Equal(t, tc.checkpointEvery, p.CheckpointEvery, tc.kind)
	}

	custom, err := Profile{Kind: ProfileCustom, Workers: 3, ShardSize: 10}.Resolve(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), custom.ShardCount(101))
	assert.Equal(t, uint64(5), custom.ShardCount(5), "never more shards than indexes")

	_, err = Profile{Kind: ProfileCustom}.Resolve(8)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = ParseProfileKind("turbo")
	assert.ErrorIs(t, err, types.ErrConfiguration)
	k, err := ParseProfileKind("Power-Saver")
	require.NoError(t, err)
	assert.Equal(t, ProfilePowerSaver, k)
}

func TestPlanRunAssignsDenseIDs(t *testing.T) {
	p, err := Profile{Kind: ProfileBalanced}.Resolve(2)
	require.NoError(t, err)
	shards := PlanRun([]Space{
		{Engine: types.EngineMutation, Total: 3},
		{Engine: types.EngineAtomic, Total: 100},
	}, p)

	require.Len(t, shards, 4)
	for i, s := range shards {
		assert.Equal(t, i, s.ID)
		assert.Equal(t, OutputPath(i), s.Output)
		assert.Equal(t, types.ShardStatePending, s.State)
		assert.Equal(t, s.Start, s.Cursor)
	}
	assert.Equal(t, types.EngineMutation, shards[1].Engine)
	assert.Equal(t, types.EngineAtomic, shards[2].Engine)
	assert.Equal(t, uint64(50), shards[3].Start)
	assert.Equal(t, "shards/shard_00003.txt", shards[3].Output)
}
