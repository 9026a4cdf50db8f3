// File: sock/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sock wraps the POSIX listening-socket lifecycle (create, bind,
// listen, accept) and the edge-triggered accept loop that hands freshly
// accepted descriptors to netio.New. The descriptor-exhaustion recovery
// in acceptLoop is ported from Mini_SeaStar_v3/Socket.h's reserved-fd
// trick (see SPEC_FULL.md "SUPPLEMENTAL FEATURES").
package sock

import (
	"golang.org/x/sys/unix"

	"github.com/coreshard/runtime/netio"
	"github.com/coreshard/runtime/reactor"
	"github.com/coreshard/runtime/rterr"
)

// Listener accepts inbound connections on a single shard and hands each
// one to onAccept.
type Listener struct {
	fd       int
	r        *reactor.Reactor
	srcShard int
	onAccept func(*netio.Connection)

	// reserved holds one spare descriptor, closed and reopened around an
	// EMFILE/ENFILE condition so accept() has room to succeed even when
	// the process is at its descriptor limit (Socket.h's guard).
	reserved int
}

// Listen creates a non-blocking, SO_REUSEADDR+SO_REUSEPORT TCP listener
// bound to addr (host:port form is not parsed here; callers supply a
// raw unix.SockaddrInet4/6), registers it on r for accept readiness, and
// invokes onAccept once per successfully accepted connection
// (spec.md section 8, scenarios 1-2).
func Listen(sa unix.Sockaddr, r *reactor.Reactor, srcShard, backlog int, onAccept func(*netio.Connection)) (*Listener, error) {
	domain := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: socket failed", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: SO_REUSEADDR failed", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: SO_REUSEPORT failed", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: bind failed", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: listen failed", err).WithContext("backlog", backlog)
	}

	reserved, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(fd)
		return nil, rterr.Wrap(rterr.CodeSyscallFailed, "sock: reserve fd failed", err)
	}

	l := &Listener{fd: fd, r: r, srcShard: srcShard, onAccept: onAccept, reserved: reserved}
	if err := r.Add(fd, unix.EPOLLIN, l.acceptLoop); err != nil {
		unix.Close(fd)
		unix.Close(reserved)
		return nil, err
	}
	return l, nil
}

// FD returns the listening descriptor.
func (l *Listener) FD() int { return l.fd }

// acceptLoop drains every pending connection on one edge-triggered
// readiness notification, applying the EMFILE/ENFILE guard whenever the
// process is momentarily out of descriptors (spec.md section 8
// "graceful degradation under fd exhaustion").
func (l *Listener) acceptLoop(mask uint32) {
	for {
		connFD, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			// Accepted connections get Nagle off and keep-alive on.
			_ = unix.SetsockoptInt(connFD, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			_ = unix.SetsockoptInt(connFD, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
			l.onAccept(netio.New(connFD, l.r, l.srcShard))
			continue
		}

		switch err {
		case unix.EAGAIN:
			return
		case unix.EMFILE, unix.ENFILE:
			l.acceptWithReservedGuard()
			return
		case unix.ECONNABORTED, unix.EINTR:
			continue
		default:
			return
		}
	}
}

// acceptWithReservedGuard frees the one descriptor held in reserve,
// accepts and immediately rejects exactly one pending connection so the
// backlog doesn't wedge, then restores the reserve. This mirrors
// Socket.h's strategy of always keeping one fd in hand to service the
// next accept() even at the process fd ceiling.
func (l *Listener) acceptWithReservedGuard() {
	if l.reserved >= 0 {
		unix.Close(l.reserved)
		l.reserved = -1
	}

	connFD, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err == nil {
		unix.Close(connFD)
	}

	if fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0); err == nil {
		l.reserved = fd
	}
}

// Close stops accepting and releases both the listening and reserved
// descriptors.
func (l *Listener) Close() {
	l.r.Remove(l.fd)
	unix.Close(l.fd)
	if l.reserved >= 0 {
		unix.Close(l.reserved)
	}
}
