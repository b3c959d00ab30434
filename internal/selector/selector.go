// Package selector implements the weighted round-robin assignment order
// (the "lucky user" computation) for an event type's host pool.
//
// Priority convention: HIGHER numeric priority is MORE important. Only the
// highest-priority tier present in the input is eligible; lower tiers are
// considered only when the pool contains nobody above them. Within a tier,
// the host most behind their weight-proportional fair share goes first.
package selector

import "sort"

// DefaultWeight substitutes for hosts without a configured weight
// (weight <= 0), so partial data never divides by zero or starves a host.
const DefaultWeight = 100

// Host is one round-robin pool member.
type Host struct {
	UserID int64

	// Weight is the host's share of assignments relative to tier-mates.
	// Non-positive means "not configured" and is treated as DefaultWeight.
	Weight int

	// Priority is the host's tier; higher values are served first.
	Priority int
}

// Standing exposes the data behind one host's position in the ordering so
// callers can explain the result, not just consume the winner.
type Standing struct {
	Weight      int     `json:"weight"`
	Priority    int     `json:"priority"`
	Assignments int     `json:"assignments"`
	Score       float64 `json:"score"`
}

// Result is an ordered assignment sequence over the eligible tier.
// It is immutable once returned.
type Result struct {
	// OrderedUserIDs lists every host of the eligible tier from most- to
	// least-due.
	OrderedUserIDs []int64

	// PerUser maps each listed host to its fairness standing.
	PerUser map[int64]Standing
}

// Select computes the assignment order for the given hosts.
//
// assignments maps user ids to the number of assignments each host has
// already received in the accounting window; missing entries mean zero.
//
// The ordering is deterministic: same hosts, weights, priorities, and
// history always produce the same sequence. Ties on the fairness score
// break by ascending user id. Zero hosts yields an empty result, not an
// error.
func Select(hosts []Host, assignments map[int64]int) Result {
	result := Result{
		OrderedUserIDs: []int64{},
		PerUser:        map[int64]Standing{},
	}
	if len(hosts) == 0 {
		return result
	}

	tier := highestPriorityTier(hosts)

	ordered := make([]Host, len(tier))
	copy(ordered, tier)

	scores := make(map[int64]float64, len(ordered))
	for _, h := range ordered {
		scores[h.UserID] = fairnessScore(h, assignments[h.UserID])
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i].UserID], scores[ordered[j].UserID]
		if si != sj {
			return si < sj
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	for _, h := range ordered {
		result.OrderedUserIDs = append(result.OrderedUserIDs, h.UserID)
		result.PerUser[h.UserID] = Standing{
			Weight:      effectiveWeight(h),
			Priority:    h.Priority,
			Assignments: assignments[h.UserID],
			Score:       scores[h.UserID],
		}
	}

	return result
}

// highestPriorityTier filters hosts down to the maximum priority present.
// A lower-tier host is never returned while any higher-tier host exists,
// regardless of weight skew.
func highestPriorityTier(hosts []Host) []Host {
	max := hosts[0].Priority
	for _, h := range hosts[1:] {
		if h.Priority > max {
			max = h.Priority
		}
	}

	var tier []Host
	for _, h := range hosts {
		if h.Priority == max {
			tier = append(tier, h)
		}
	}
	return tier
}

// fairnessScore is assignments-received divided by weight: the host with
// the lowest ratio is the one most behind their fair share.
func fairnessScore(h Host, assigned int) float64 {
	return float64(assigned) / float64(effectiveWeight(h))
}

func effectiveWeight(h Host) int {
	if h.Weight <= 0 {
		return DefaultWeight
	}
	return h.Weight
}
