package internal

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// StartCron schedules periodic updates for every registered coordinator at
// the given interval. Ticks go through Trigger, so a tick landing during a
// manual refresh coalesces instead of racing.
func StartCron(registry *Registry, scanIntervalMinutes int) (*cron.Cron, error) {
	c := cron.New()

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for _, coordinator := range registry.coordinators {
		coordinator := coordinator
		schedule := fmt.Sprintf("@every %dm", scanIntervalMinutes)
		if _, err := c.AddFunc(schedule, func() {
			coordinator.Trigger(false)
		}); err != nil {
			return nil, err
		}
		log.Printf("scheduled updates for instance %q every %d minutes", coordinator.Instance, scanIntervalMinutes)
	}

	c.Start()
	return c, nil
}
