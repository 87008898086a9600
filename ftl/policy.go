package ftl

// Victim selection. All three policies are deterministic given identical
// input: Greedy takes the queue root, Random consumes the configured RNG
// verbatim, Cost-Benefit keeps the first maximum it encounters.

type victimSelectFunc func(f *FTL, force bool) *Line

const (
	msToNs  = 1_000_000
	secToNs = 1_000_000_000
)

// Age bands for the cost-benefit weight. Young lines are protected by
// locality; anything past a minute is effectively static data and worth
// collecting even with few invalid pages.
const (
	thresholdVeryHot = 100 * msToNs
	thresholdHot     = 5 * secToNs
	thresholdWarm    = 60 * secToNs
)

func ageWeight(ageNs uint64) uint64 {
	switch {
	case ageNs < thresholdVeryHot:
		return 1
	case ageNs < thresholdHot:
		return 5
	case ageNs < thresholdWarm:
		return 20
	default:
		return 100
	}
}

// selectVictimGreedy pops the queue root (minimum vpc). Without force it
// refuses victims still holding more than pgs_per_line/div valid pages;
// copying that much is not worth the reclaim.
func selectVictimGreedy(f *FTL, force bool) *Line {
	lm := &f.lm
	item := lm.victimPQ.Peek()
	if item == nil {
		return nil
	}
	victim := item.(*Line)

	if !force && uint64(victim.VPC) > f.ssd.SP.PgsPerLine/uint64(f.cfg.GreedyThresDiv) {
		return nil
	}

	f.stats.recordVictimAge((f.cfg.Now() - victim.LastModified) / msToNs)
	lm.victimPQ.Pop()
	victim.pos = 0
	lm.victimLineCnt--
	return victim
}

// selectVictimRandom removes a uniformly drawn candidate by positional
// handle.
func selectVictimRandom(f *FTL, force bool) *Line {
	lm := &f.lm
	q := lm.victimPQ
	if q.Len() == 0 {
		return nil
	}

	victim := q.At(1 + f.cfg.Rand.Intn(q.Len())).(*Line)
	q.Remove(victim)
	victim.pos = 0
	lm.victimLineCnt--
	return victim
}

// selectVictimCostBenefit scans the queue's dense array and maximizes
// age_weight * ipc / (vpc + 1). The queue order is meaningless here:
// age moves for every line at once, so a heap frozen at insert time
// cannot rank candidates.
func selectVictimCostBenefit(f *FTL, force bool) *Line {
	lm := &f.lm
	q := lm.victimPQ

	if q.Len() == 0 {
		return nil
	}

	var best *Line
	var bestScore uint64
	var bestAge uint64
	now := f.cfg.Now()

	for i := 1; i <= q.Len(); i++ {
		item := q.At(i)
		if item == nil {
			continue
		}
		cand := item.(*Line)
		var age uint64
		if now > cand.LastModified {
			age = now - cand.LastModified
		}
		score := ageWeight(age) * uint64(cand.IPC) / uint64(cand.VPC+1)
		if score > bestScore {
			bestScore = score
			bestAge = age
			best = cand
		} else if best == nil {
			// A zero score still beats having no candidate at all.
			best = cand
			bestAge = age
		}
	}

	if best != nil {
		f.stats.recordVictimAge(bestAge / msToNs)
		q.Remove(best)
		best.pos = 0
		lm.victimLineCnt--
	}
	return best
}
