package index

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/podseek/podseek/pkg/natsutil"
)

// SyncSubject is the NATS subject reindex requests are published on.
const SyncSubject = "podseek.index.sync"

// SyncRequest asks the indexer to run a sync. An empty Podcasts list means
// the whole corpus.
type SyncRequest struct {
	Podcasts []string `json:"podcasts,omitempty"`
}

// StartConsumer subscribes the pipeline to reindex requests. Runs are
// serialized through a buffered channel so overlapping requests queue
// instead of racing the existence scan.
func (p *Pipeline) StartConsumer(ctx context.Context, nc *nats.Conn) (*nats.Subscription, error) {
	requests := make(chan SyncRequest, 16)

	sub, err := natsutil.Subscribe(nc, SyncSubject, func(_ context.Context, req SyncRequest) {
		select {
		case requests <- req:
		default:
			p.deps.Log.Warn("sync request dropped, queue full")
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-requests:
				n, err := p.SyncPodcasts(ctx, req.Podcasts)
				if err != nil {
					p.deps.Log.Error("sync failed", "error", err)
					continue
				}
				p.deps.Log.Info("sync complete", "uploaded", n, "podcasts", req.Podcasts)
			}
		}
	}()

	return sub, nil
}
