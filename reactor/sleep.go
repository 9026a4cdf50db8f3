// File: reactor/sleep.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sleep is a convenience timer wrapper carried forward from
// Mini_SeaStar_v2/Reactor.cpp's Reactor::sleep (see SPEC_FULL.md
// "SUPPLEMENTAL FEATURES").

package reactor

import (
	"time"

	"github.com/coreshard/runtime/future"
)

// Sleep returns a future that resolves once d has elapsed.
func (r *Reactor) Sleep(d time.Duration) *future.Future[future.Unit] {
	p := future.NewPromise[future.Unit](r)
	r.RunAfter(d, func() {
		p.SetValue(future.Unit{})
	})
	return p.GetFuture()
}
