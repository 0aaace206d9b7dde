package sharding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/sharding"
)

func TestKeySharder_StableAcrossInstances(t *testing.T) {
	cfg := sharding.Config{NumShards: 8, Seed: "deployment-seed"}
	a, err := sharding.New(cfg)
	require.NoError(t, err)
	b, err := sharding.New(cfg)
	require.NoError(t, err)

	for _, key := range []string{"user:1", "user:2", "campaign:99"} {
		shardA, _ := a.ShardNumForKey(key)
		shardB, _ := b.ShardNumForKey(key)
		assert.Equal(t, shardA, shardB)
		assert.GreaterOrEqual(t, shardA, 0)
		assert.Less(t, shardA, 8)
	}
}

func TestKeySharder_DifferentSeedsCanDiffer(t *testing.T) {
	a, err := sharding.New(sharding.Config{NumShards: 16, Seed: "seed-a"})
	require.NoError(t, err)
	b, err := sharding.New(sharding.Config{NumShards: 16, Seed: "seed-b"})
	require.NoError(t, err)

	differed := false
	for i := 0; i < 50; i++ {
		shardA, _ := a.ShardNumForKey(testKey(i))
		shardB, _ := b.ShardNumForKey(testKey(i))
		if shardA != shardB {
			differed = true
			break
		}
	}
	assert.True(t, differed, "different seeds should eventually disagree on placement")
}

func testKey(i int) string {
	return "k" + string(rune('a'+i%26)) + string(rune('0'+i%10))
}

func TestKeySharder_RegexCaptureDeterminesShardingKey(t *testing.T) {
	ks, err := sharding.New(sharding.Config{
		NumShards:        4,
		ShardingKeyRegex: `^campaign:(\d+):.*$`,
		Seed:             "seed",
	})
	require.NoError(t, err)

	assert.Equal(t, "42", ks.ShardingKeyFor("campaign:42:creative-7"))
	assert.Equal(t, "no-match-here", ks.ShardingKeyFor("no-match-here"))

	shard1, key1 := ks.ShardNumForKey("campaign:42:creative-7")
	shard2, key2 := ks.ShardNumForKey("campaign:42:creative-99")
	assert.Equal(t, "42", key1)
	assert.Equal(t, "42", key2)
	assert.Equal(t, shard1, shard2, "same sharding key must land on the same shard")
}

func TestKeySharder_RejectsZeroShards(t *testing.T) {
	_, err := sharding.New(sharding.Config{NumShards: 0})
	assert.Error(t, err)
}
