package auth

import (
	"context"
	"log"
	"time"
)

// StartTokenJanitor launches a background loop that prunes expired tokens
// from the database. Expired tokens are already rejected at validation time;
// the janitor keeps the table from growing unbounded. It stops when ctx is
// cancelled.
func (s *Service) StartTokenJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.PruneExpiredTokens(ctx); err != nil {
					log.Printf("prune expired tokens: %v", err)
				} else if n > 0 {
					log.Printf("pruned %d expired tokens", n)
				}
			}
		}
	}()
}

// PruneExpiredTokens deletes every token past its expiry and reports how many
// rows were removed.
func (s *Service) PruneExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
