// File: netio/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netio

import (
	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/future"
	"github.com/coreshard/runtime/reactor"
	"github.com/coreshard/runtime/wire"
)

// readChunk is the fixed chunk size reserved per read-drain iteration
// (spec.md section 4.7, default 16 KiB).
const readChunk = 16 * 1024

// Connection multiplexes one non-blocking descriptor's reads and writes
// through a single, never-changing epoll registration.
type Connection struct {
	fd       int
	r        *reactor.Reactor
	srcShard int

	in  []byte
	out []byte

	writeIndex     int
	totalWriteSize int

	pendingRead  *future.Promise[[]byte]
	pendingWrite *future.Promise[int]

	closed bool
	mask   uint32
}

// New registers fd with r for input-readable interest and returns the
// connection handle. Registration happens exactly once for the lifetime
// of the connection (spec.md section 4.7). A registration failure is
// fatal: New panics with the error from Reactor.Add.
func New(fd int, r *reactor.Reactor, srcShard int) *Connection {
	c := &Connection{fd: fd, r: r, srcShard: srcShard, mask: unix.EPOLLIN}
	if err := r.Add(fd, c.mask, c.handleEvents); err != nil {
		panic(err)
	}
	return c
}

// FD returns the underlying descriptor.
func (c *Connection) FD() int { return c.fd }

// Closed reports whether the connection has transitioned to its terminal
// state.
func (c *Connection) Closed() bool { return c.closed }

func (c *Connection) handleEvents(mask uint32) {
	if mask&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		c.handleClose()
		return
	}
	if mask&unix.EPOLLIN != 0 {
		c.readDrain()
	}
	if mask&unix.EPOLLOUT != 0 {
		c.writeDrain()
	}
}

// readDrain loops read() until the kernel reports would-block, eliding
// the final guaranteed-EAGAIN syscall whenever a read returns fewer bytes
// than requested (spec.md section 4.7 "Read-drain").
func (c *Connection) readDrain() {
	for {
		start := len(c.in)
		c.in = append(c.in, make([]byte, readChunk)...)

		n, err := unix.Read(c.fd, c.in[start:])
		if n > 0 {
			c.in = c.in[:start+n]
			if n < readChunk {
				break
			}
			continue
		}

		c.in = c.in[:start]
		if n == 0 {
			c.handleClose()
			return
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		c.handleClose()
		return
	}

	// Move the pending producer out before resolving: resolving may run a
	// continuation that immediately calls Read again, installing a new
	// pending producer that must not be clobbered by this cleanup
	// (spec.md section 4.7).
	if c.pendingRead != nil && len(c.in) > 0 {
		p := c.pendingRead
		c.pendingRead = nil
		data := c.in
		c.in = nil
		p.SetValue(data)
	}
}

// Read returns a future for the next chunk of data. Only one Read may be
// pending at a time; a second call while one is outstanding is a
// programming error (spec.md section 4.7).
func (c *Connection) Read() *future.Future[[]byte] {
	p := future.NewPromise[[]byte](c.r)

	if c.closed {
		p.SetValue(nil)
		return p.GetFuture()
	}
	if len(c.in) > 0 {
		data := c.in
		c.in = nil
		p.SetValue(data)
		return p.GetFuture()
	}
	if c.pendingRead != nil {
		panic("netio: concurrent Read on the same connection")
	}
	c.pendingRead = p
	return p.GetFuture()
}

// Write attempts to drain pkt's bytes immediately (the fast path). On
// complete success it resolves synchronously with zero epoll_ctl calls.
// If the kernel send buffer fills, the remainder is buffered and
// output-writable interest is enabled; writeDrain finishes the transfer
// (spec.md section 4.7 "write() public operation").
func (c *Connection) Write(pkt wire.Packet) *future.Future[int] {
	p := future.NewPromise[int](c.r)

	if c.closed {
		p.SetValue(-1)
		return p.GetFuture()
	}

	data := pkt.Data()
	if len(data) == 0 {
		p.SetValue(0)
		return p.GetFuture()
	}

	total := len(data)
	remaining := data
	for len(remaining) > 0 {
		n, err := unix.Write(c.fd, remaining)
		if n > 0 {
			remaining = remaining[n:]
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		p.SetValue(-1)
		return p.GetFuture()
	}

	if len(remaining) == 0 {
		p.SetValue(total)
		return p.GetFuture()
	}

	c.out = append([]byte(nil), remaining...)
	c.writeIndex = 0
	c.totalWriteSize = total
	c.pendingWrite = p
	c.enableWrite()
	return p.GetFuture()
}

// writeDrain finishes a buffered write on output-writable readiness
// (spec.md section 4.7 "Write-drain").
func (c *Connection) writeDrain() {
	for c.writeIndex < len(c.out) {
		n, err := unix.Write(c.fd, c.out[c.writeIndex:])
		if n > 0 {
			c.writeIndex += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		c.disableWrite()
		if c.pendingWrite != nil {
			p := c.pendingWrite
			c.pendingWrite = nil
			p.SetValue(-1)
		}
		return
	}

	c.out = c.out[:0]
	c.writeIndex = 0
	c.disableWrite()

	if c.pendingWrite != nil {
		p := c.pendingWrite
		c.pendingWrite = nil
		p.SetValue(c.totalWriteSize)
	}
}

func (c *Connection) enableWrite() {
	if c.mask&unix.EPOLLOUT == 0 {
		c.mask |= unix.EPOLLOUT
		_ = c.r.ModifyEvents(c.fd, c.mask)
	}
}

func (c *Connection) disableWrite() {
	if c.mask&unix.EPOLLOUT != 0 {
		c.mask &^= unix.EPOLLOUT
		_ = c.r.ModifyEvents(c.fd, c.mask)
	}
}

// handleClose is idempotent and terminal: it unregisters the descriptor
// and resolves any outstanding pending read/write with the close
// sentinels (spec.md section 4.7 "Close").
func (c *Connection) handleClose() {
	if c.closed {
		return
	}
	c.closed = true
	c.r.Remove(c.fd)

	if c.pendingRead != nil {
		p := c.pendingRead
		c.pendingRead = nil
		p.SetValue(nil)
	}
	if c.pendingWrite != nil {
		p := c.pendingWrite
		c.pendingWrite = nil
		p.SetValue(-1)
	}
}

// Close is the public entry point for a graceful shutdown initiated by
// the application rather than by a peer hangup.
func (c *Connection) Close() { c.handleClose() }
