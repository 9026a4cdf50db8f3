// File: netio/connection_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/future"
	"github.com/coreshard/runtime/netio"
	"github.com/coreshard/runtime/reactor"
	"github.com/coreshard/runtime/wire"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func runReactor(t *testing.T, re *reactor.Reactor) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- re.Run() }()
	t.Cleanup(func() { re.Close(); <-done })
}

func TestReadResolvesWithDataWrittenByPeer(t *testing.T) {
	re, err := reactor.New(0, 1)
	require.NoError(t, err)

	fd, peer := socketPair(t)
	c := netio.New(fd, re, 0)
	runReactor(t, re)

	got := make(chan []byte, 1)
	re.Post(0, func() {
		future.Then(c.Read(), func(data []byte) future.Unit {
			got <- data
			return future.Unit{}
		})
	})
	_, _ = unix.Write(peer, []byte("hello"))

	select {
	case data := <-got:
		require.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("Read future never resolved")
	}
}

func TestSecondConcurrentReadHasPanicked(t *testing.T) {
	re, err := reactor.New(0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { re.Close() })

	fd, _ := socketPair(t)
	c := netio.New(fd, re, 0)

	c.Read()
	require.Panics(t, func() { c.Read() })
}

func TestWriteFastPathResolvesWithFullByteCount(t *testing.T) {
	re, err := reactor.New(0, 1)
	require.NoError(t, err)

	fd, peer := socketPair(t)
	c := netio.New(fd, re, 0)
	runReactor(t, re)

	result := make(chan int, 1)
	re.Post(0, func() {
		pkt := wire.FromString("payload")
		future.Then(c.Write(pkt), func(n int) future.Unit {
			result <- n
			return future.Unit{}
		})
	})

	select {
	case n := <-result:
		require.Equal(t, len("payload"), n)
	case <-time.After(2 * time.Second):
		t.Fatal("write future never resolved")
	}

	buf := make([]byte, 64)
	n, err := unix.Read(peer, buf)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf[:n]))
}

func TestCloseIsIdempotentAndResolvesPendingRead(t *testing.T) {
	re, err := reactor.New(0, 1)
	require.NoError(t, err)

	fd, _ := socketPair(t)
	c := netio.New(fd, re, 0)
	runReactor(t, re)

	result := make(chan []byte, 1)
	re.Post(0, func() {
		future.Then(c.Read(), func(data []byte) future.Unit {
			result <- data
			return future.Unit{}
		})
		c.Close()
		c.Close() // idempotent, must not panic
	})

	select {
	case data := <-result:
		require.Nil(t, data)
	case <-time.After(2 * time.Second):
		t.Fatal("pending read was not resolved by Close")
	}
	require.True(t, c.Closed())
}
