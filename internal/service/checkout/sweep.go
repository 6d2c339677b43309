package checkout

import (
	"context"
	"time"
)

// SweepExpired deletes every draft past its TTL, releasing nothing because
// drafts never hold stock or wallet funds.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.orders.SweepExpiredDrafts(ctx, s.now())
}

// RunSweeper runs SweepExpired on a fixed interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.logger.Printf("draft sweep failed: %v", err)
				continue
			}
			if n > 0 {
				s.logger.Printf("swept %d expired draft orders", n)
			}
		}
	}
}
