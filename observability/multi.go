package observability

import "context"

// MultiObserver fans each event out to every observer it holds, in order.
type MultiObserver []Observer

// Tee combines observers into a single Observer. Nil entries are dropped;
// a single remaining observer is returned as-is.
func Tee(observers ...Observer) Observer {
	multi := make(MultiObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			multi = append(multi, obs)
		}
	}
	if len(multi) == 1 {
		return multi[0]
	}
	return multi
}

func (m MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m {
		obs.OnEvent(ctx, event)
	}
}
