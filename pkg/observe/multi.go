package observe

import (
	"context"

	"github.com/goclaw/sigslot/pkg/signal"
)

// Multi fans events out to several observers in order. nil entries are skipped.
func Multi(observers ...signal.Observer) signal.Observer {
	list := make([]signal.Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return signal.ObserverFunc(func(ctx context.Context, ev signal.Event) {
		for _, o := range list {
			o.Observe(ctx, ev)
		}
	})
}
