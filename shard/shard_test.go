// File: shard/shard_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreshard/runtime/shard"
)

func TestNewCreatesOneShardPerCPUEntry(t *testing.T) {
	set, err := shard.New([]int{0, 0, 0})
	require.NoError(t, err)
	t.Cleanup(func() { set.Close() })

	require.Len(t, set.Shards(), 3)
	for i, sh := range set.Shards() {
		require.Equal(t, i, sh.ID())
	}
}

func TestByIDReturnsNilOutOfRange(t *testing.T) {
	set, err := shard.New([]int{0})
	require.NoError(t, err)
	t.Cleanup(func() { set.Close() })

	require.Nil(t, set.ByID(5))
	require.Nil(t, set.ByID(-1))
	require.NotNil(t, set.ByID(0))
}

func TestPostRoutesTaskToTargetShardsMailbox(t *testing.T) {
	set, err := shard.New([]int{0, 0})
	require.NoError(t, err)

	done := make(chan error, 2)
	for _, sh := range set.Shards() {
		sh := sh
		go func() { done <- sh.Run() }()
	}
	t.Cleanup(func() {
		set.Close()
		<-done
		<-done
	})

	ran := make(chan struct{})
	require.NoError(t, set.Post(0, 1, func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task posted to shard 1 never ran")
	}
}

func TestPostToUnknownShardReturnsError(t *testing.T) {
	set, err := shard.New([]int{0})
	require.NoError(t, err)
	t.Cleanup(func() { set.Close() })

	err = set.Post(0, 99, func() {})
	require.Error(t, err)
}
