package relaysvc

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweep забывает сессии старше ttl. Сессии провайдера истекают сами.
func (s *Relay) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	return s.Store.DeleteSessionsBefore(ctx, s.Now().Add(-ttl))
}

// StartGC стартует периодическую очистку устаревших сессий.
func StartGC(svc Service, ttl time.Duration, every time.Duration, log *slog.Logger) func() {
	if every <= 0 || ttl <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := svc.Sweep(context.Background(), ttl)
				if err != nil {
					log.Warn("session gc", "err", err)
				} else if n > 0 {
					log.Info("session gc", "removed", n)
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}
