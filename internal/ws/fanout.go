package ws

import "github.com/samber/lo"

// Fanout pushes each outbound to its targets through the registry. A user
// listed twice for the same envelope receives it once. Offline targets are
// skipped. It returns the number of successful deliveries.
func Fanout(r *Registry, outs []Outbound) int {
	delivered := 0
	for _, out := range outs {
		for _, id := range lo.Uniq(out.Targets) {
			if r.Deliver(id, out.Envelope) {
				delivered++
			}
		}
	}
	return delivered
}
