// File: cmd/echo-shard/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// echo-shard is a runnable sample exercising spec.md section 8's
// scenarios 1-2: a single-shard TCP echo server built entirely on
// reactor, future, netio and sock.
package main

import (
	"flag"
	"log"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/future"
	"github.com/coreshard/runtime/metrics"
	"github.com/coreshard/runtime/netio"
	"github.com/coreshard/runtime/shard"
	"github.com/coreshard/runtime/sock"
	"github.com/coreshard/runtime/wire"
)

func main() {
	cpu := flag.Int("cpu", 0, "CPU core to pin the shard to")
	port := flag.Int("port", 9090, "TCP port to listen on")
	flag.Parse()

	set, err := shard.New([]int{*cpu})
	if err != nil {
		log.Fatalf("echo-shard: %v", err)
	}
	defer set.Close()

	sh := set.ByID(0)
	counters := &metrics.Counters{}
	reg := metrics.NewRegistry()

	addr := &unix.SockaddrInet4{Port: *port}
	listener, err := sock.Listen(addr, sh.Reactor(), sh.ID(), 1024, func(c *netio.Connection) {
		counters.ConnectionsAccepted++
		serveEcho(c, counters)
	})
	if err != nil {
		log.Fatalf("echo-shard: listen: %v", err)
	}
	defer listener.Close()

	r := sh.Reactor()
	var reportTick func()
	reportTick = func() {
		reg.Report(sh.ID(), *counters, time.Now())
		r.RunAfter(5*time.Second, reportTick)
	}
	r.RunAfter(5*time.Second, reportTick)

	log.Printf("echo-shard: listening on :%d, pinned to cpu %d", *port, *cpu)
	if err := sh.Run(); err != nil {
		log.Fatalf("echo-shard: run: %v", err)
	}
}

// serveEcho chains read to write, recursing on every successful write so
// the connection keeps echoing until the peer closes (a zero-length Read
// result, spec.md section 4.7 "Close").
func serveEcho(c *netio.Connection, counters *metrics.Counters) {
	var step func(f *future.Future[[]byte])
	step = func(f *future.Future[[]byte]) {
		future.Then(f, func(data []byte) future.Unit {
			if len(data) == 0 {
				counters.ConnectionsClosed++
				return future.Unit{}
			}
			counters.BytesRead += uint64(len(data))

			pkt := wire.New(data)
			future.Then(c.Write(pkt), func(n int) future.Unit {
				pkt.Release()
				if n < 0 {
					counters.ConnectionsClosed++
					return future.Unit{}
				}
				counters.BytesWritten += uint64(n)
				step(c.Read())
				return future.Unit{}
			})
			return future.Unit{}
		})
	}
	step(c.Read())
}
