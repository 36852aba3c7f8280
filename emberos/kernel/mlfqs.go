package kernel

import "ember/emberos/fixed"

var (
	loadDecay  = fixed.FromInt(59).DivInt(60)
	loadWeight = fixed.FromInt(1).DivInt(60)
)

// mlfqsTick runs the feedback bookkeeping for one timer tick.
func (k *Kernel) mlfqsTick(cur *Thread) {
	if cur != k.idle {
		cur.recentCPU = cur.recentCPU.AddInt(1)
	}
	if k.ticks%uint64(k.opts.TimerFreq) == 0 {
		k.updateLoadAvg(cur)
		for _, t := range k.all {
			k.decayRecentCPU(t)
		}
	}
	if k.ticks%recalcTicks == 0 {
		for _, t := range k.all {
			k.mlfqsPriority(t)
		}
	}
}

// updateLoadAvg folds the number of ready or running non-idle threads into
// the exponentially weighted load average.
func (k *Kernel) updateLoadAvg(cur *Thread) {
	n := k.ready.len()
	if cur != k.idle {
		n++
	}
	k.loadAvg = loadDecay.Mul(k.loadAvg).Add(loadWeight.MulInt(n))
	k.record(EventLoadAvg, 0, 0, k.loadAvg.Scaled())
}

func (k *Kernel) decayRecentCPU(t *Thread) {
	twice := k.loadAvg.MulInt(2)
	coef := twice.Div(twice.AddInt(1))
	t.recentCPU = coef.Mul(t.recentCPU).AddInt(t.nice)
}

// mlfqsPriority derives t's priority from its recent CPU and niceness.
func (k *Kernel) mlfqsPriority(t *Thread) {
	p := fixed.FromInt(PriMax).Sub(t.recentCPU.DivInt(4)).SubInt(t.nice * 2).Round()
	p = clamp(p, PriMin, PriMax)
	t.priority = p
	t.originPriority = p
}

func (k *Kernel) setNice(t *Thread, nice int) {
	t.nice = clamp(nice, NiceMin, NiceMax)
	if k.opts.MLFQS {
		k.mlfqsPriority(t)
		k.record(EventPriority, t.tid, 0, t.priority)
	}
}
