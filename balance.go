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
	"go.uber.org/sched/internal/runq"
	"go.uber.org/sched/topology"
	"go.uber.org/zap"
)

// lockPair locks two queues in the order they were created.
func lockPair(one, two *tdq) {
	if one == two {
		one.mu.Lock()
		return
	}
	if one.seq < two.seq {
		one.mu.Lock()
		two.mu.Lock()
	} else {
		two.mu.Lock()
		one.mu.Lock()
	}
}

func unlockPair(one, two *tdq) {
	one.mu.Unlock()
	if one != two {
		two.mu.Unlock()
	}
}

// balance runs the periodic balancer from the balancing CPU's clock tick
// and schedules the next run between half and one and a half intervals out.
// The caller holds self's lock; it is released while balancing.
func (s *Scheduler) balance(self *tdq) {
	interval := s.tun.balanceInterval()
	next := interval / 2
	if next < 1 {
		next = 1
	}
	s.balanceMu.Lock()
	next += s.rand.Intn(interval)
	s.balanceMu.Unlock()
	s.balanceTicks.Store(int32(next))

	if !s.smp || !s.tun.rebalance() {
		return
	}
	s.obs.balanceRuns.inc()
	self.mu.Unlock()
	s.balanceGroup(s.top)
	self.mu.Lock()
}

// balanceGroup repeatedly moves load from the most to the least loaded CPU
// of cg until they coincide or no pair makes progress, then recurses into
// the children.
func (s *Scheduler) balanceGroup(cg *topology.Group) {
	mask := cg.Mask.Clone()
	for {
		low, high := s.both(cg, mask)
		if low == high || low == -1 || high == -1 {
			break
		}
		if s.balancePair(s.tdq(high), s.tdq(low)) > 0 {
			break
		}
		// Nothing moved: drop whichever side cannot take part and retry.
		if s.tdq(high).transferable.Load() == 0 {
			mask.Clear(high)
		} else {
			mask.Clear(low)
		}
	}

	for _, child := range cg.Children {
		s.balanceGroup(child)
	}
}

// balancePair moves half the load difference, rounded up and bounded by
// what is transferable, from high to low and kicks low to reschedule.
func (s *Scheduler) balancePair(high, low *tdq) int {
	lockPair(high, low)
	transferable := int(high.transferable.Load())
	moved := 0
	if transferable != 0 {
		diff := int(high.load.Load()) - int(low.load.Load())
		move := diff / 2
		if diff&1 != 0 {
			move++
		}
		if move > transferable {
			move = transferable
		}
		for i := 0; i < move; i++ {
			moved += s.move(high, low)
		}
		s.interrupter.SendPreempt(low.id)
	}
	unlockPair(high, low)

	if moved > 0 {
		s.obs.balanceMoves.inc()
		s.logger.Debug("balanced cpus",
			zap.Int("from", high.id),
			zap.Int("to", low.id),
			zap.Int("moved", moved))
	}
	return moved
}

// move transfers one stealable thread from one queue to another. Both
// locks are held.
func (s *Scheduler) move(from, to *tdq) int {
	td := from.steal(to.id)
	if td == nil {
		return 0
	}
	// A thread still being handed to this queue by another CPU has a
	// blocked lock until that CPU finishes its switch.
	td.lock.spin()
	s.rem(td)
	td.ts.cpu = to.id
	td.lock.store(&to.mu)
	to.add(td, AddYielding)
	s.obs.migrations.inc()
	return 1
}

// steal picks the most urgent thread that may run on cpu: realtime, then
// timeshare from the removal index skipping the next thread to run, then
// idle.
func (q *tdq) steal(cpu int) *Thread {
	if td := stealFrom(&q.realtime, cpu, 0, false); td != nil {
		return td
	}
	if td := stealFrom(&q.timeshare, cpu, q.ridx, true); td != nil {
		return td
	}
	return stealFrom(&q.idle, cpu, 0, false)
}

func stealFrom(rq *runq.Queue, cpu, start int, skipFirst bool) *Thread {
	var found *Thread
	first := !skipFirst
	rq.EachFrom(start, func(e *runq.Entry) bool {
		td := e.Value.(*Thread)
		if first && td.canMigrate() && td.canSched(cpu) {
			found = td
			return false
		}
		first = true
		return true
	})
	return found
}

// idled tries to steal work for an idle CPU, searching outward from its
// own group. It returns true after switching to a stolen thread. The
// caller does not hold q's lock.
func (s *Scheduler) idled(q *tdq) bool {
	if !s.smp || !s.tun.stealIdle() {
		return false
	}
	mask := s.top.Mask.Clone()
	mask.Clear(q.id)

	for cg := q.cg; cg != nil; {
		thresh := s.tun.stealThresh()
		if cg.IsThreadGroup() {
			if !s.tun.stealHTT() {
				cg = cg.Parent
				continue
			}
			thresh = 1
		}
		cpu := s.highest(cg, mask, thresh)
		if cpu == -1 {
			cg = cg.Parent
			continue
		}
		victim := s.tdq(cpu)
		mask.Clear(cpu)
		lockPair(q, victim)
		if int(victim.load.Load()) < thresh || victim.transferable.Load() == 0 {
			unlockPair(q, victim)
			continue
		}
		// Work may have arrived while searching; if so there is nothing
		// to steal. A failed move means affinity got in the way.
		if q.load.Load() == 0 && s.move(victim, q) == 0 {
			unlockPair(q, victim)
			continue
		}
		victim.mu.Unlock()
		s.obs.steals.inc()
		s.switchLocked(q, q.curthread, SwitchVoluntary)
		q.mu.Unlock()
		return true
	}
	return false
}
