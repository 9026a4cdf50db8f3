// File: metrics/metrics_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package metrics_test

import (
	"testing"
	"time"

	"github.com/coreshard/runtime/metrics"
)

func TestCollectReturnsMostRecentReportPerShard(t *testing.T) {
	reg := metrics.NewRegistry()
	now := time.Now()

	reg.Report(0, metrics.Counters{BytesRead: 10}, now)
	reg.Report(0, metrics.Counters{BytesRead: 20}, now.Add(time.Second))
	reg.Report(1, metrics.Counters{BytesRead: 5}, now)

	snaps := reg.Collect()
	if len(snaps) != 2 {
		t.Fatalf("len(snaps)=%d, want 2", len(snaps))
	}

	byShard := map[int]metrics.Snapshot{}
	for _, s := range snaps {
		byShard[s.ShardID] = s
	}
	if byShard[0].BytesRead != 20 {
		t.Fatalf("shard 0 BytesRead=%d, want 20 (latest report)", byShard[0].BytesRead)
	}
	if byShard[1].BytesRead != 5 {
		t.Fatalf("shard 1 BytesRead=%d, want 5", byShard[1].BytesRead)
	}
}

func TestCollectOnEmptyRegistryReturnsEmptySlice(t *testing.T) {
	reg := metrics.NewRegistry()
	if len(reg.Collect()) != 0 {
		t.Fatal("expected no snapshots from an empty registry")
	}
}
