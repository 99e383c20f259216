// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package sched

import (
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Stats counts scheduler decisions since the Scheduler was built.
type Stats struct {
	PickIntrBind     int64 `json:"pickIntrBind"`
	PickIdleAffinity int64 `json:"pickIdleAffinity"`
	PickAffinity     int64 `json:"pickAffinity"`
	PickLowest       int64 `json:"pickLowest"`
	PickLocal        int64 `json:"pickLocal"`
	PickMigration    int64 `json:"pickMigration"`
	PickFallback     int64 `json:"pickFallback"`

	Switches      int64 `json:"switches"`
	VolSwitches   int64 `json:"volSwitches"`
	InvolSwitches int64 `json:"involSwitches"`
	Preemptions   int64 `json:"preemptions"`
	Migrations    int64 `json:"migrations"`
	Steals        int64 `json:"steals"`
	BalanceRuns   int64 `json:"balanceRuns"`
	BalanceMoves  int64 `json:"balanceMoves"`
	Notifications int64 `json:"notifications"`
	IdleWakeups   int64 `json:"idleWakeups"`
}

type stat struct {
	n atomic.Int64
	c tally.Counter
}

func newStat(c tally.Counter) *stat { return &stat{c: c} }

func (s *stat) inc() {
	s.n.Inc()
	s.c.Inc(1)
}

// observer records every Stats counter in tally as well.
type observer struct {
	pickIntrBind     *stat
	pickIdleAffinity *stat
	pickAffinity     *stat
	pickLowest       *stat
	pickLocal        *stat
	pickMigration    *stat
	pickFallback     *stat

	switches      *stat
	volSwitches   *stat
	involSwitches *stat
	preemptions   *stat
	migrations    *stat
	steals        *stat
	balanceRuns   *stat
	balanceMoves  *stat
	notifications *stat
	idleWakeups   *stat
}

func newObserver(scope tally.Scope) *observer {
	pick := scope.SubScope("pickcpu")
	reason := func(r string) tally.Counter {
		return pick.Tagged(map[string]string{"reason": r}).Counter("picks")
	}
	sw := scope.SubScope("switch")
	kind := func(k string) tally.Counter {
		return sw.Tagged(map[string]string{"kind": k}).Counter("by_kind")
	}
	return &observer{
		pickIntrBind:     newStat(reason("intrbind")),
		pickIdleAffinity: newStat(reason("idle_affinity")),
		pickAffinity:     newStat(reason("affinity")),
		pickLowest:       newStat(reason("lowest")),
		pickLocal:        newStat(reason("local")),
		pickMigration:    newStat(pick.Counter("migrations")),
		pickFallback:     newStat(pick.Counter("fallbacks")),

		switches:      newStat(sw.Counter("switches")),
		volSwitches:   newStat(kind("voluntary")),
		involSwitches: newStat(kind("involuntary")),
		preemptions:   newStat(sw.Counter("preemptions")),
		migrations:    newStat(sw.Counter("migrations")),
		steals:        newStat(scope.Counter("steals")),
		balanceRuns:   newStat(scope.Counter("balance_runs")),
		balanceMoves:  newStat(scope.Counter("balance_moves")),
		notifications: newStat(scope.Counter("notifications")),
		idleWakeups:   newStat(scope.Counter("idle_wakeups")),
	}
}

func (o *observer) switched(flags SwitchFlags) {
	o.switches.inc()
	if flags&SwitchVoluntary != 0 {
		o.volSwitches.inc()
	} else {
		o.involSwitches.inc()
	}
	if flags&SwitchPreempt != 0 {
		o.preemptions.inc()
	}
}

func (o *observer) snapshot() Stats {
	return Stats{
		PickIntrBind:     o.pickIntrBind.n.Load(),
		PickIdleAffinity: o.pickIdleAffinity.n.Load(),
		PickAffinity:     o.pickAffinity.n.Load(),
		PickLowest:       o.pickLowest.n.Load(),
		PickLocal:        o.pickLocal.n.Load(),
		PickMigration:    o.pickMigration.n.Load(),
		PickFallback:     o.pickFallback.n.Load(),
		Switches:         o.switches.n.Load(),
		VolSwitches:      o.volSwitches.n.Load(),
		InvolSwitches:    o.involSwitches.n.Load(),
		Preemptions:      o.preemptions.n.Load(),
		Migrations:       o.migrations.n.Load(),
		Steals:           o.steals.n.Load(),
		BalanceRuns:      o.balanceRuns.n.Load(),
		BalanceMoves:     o.balanceMoves.n.Load(),
		Notifications:    o.notifications.n.Load(),
		IdleWakeups:      o.idleWakeups.n.Load(),
	}
}
