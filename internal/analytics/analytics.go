package analytics

import (
	"context"
	"time"

	"github.com/joelikes8/Random-bot/internal/storage"
)

const overrideEvent = "policy_override"

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total     int
	ByLevel   map[string]int
	ByEvent   map[string]int
	Overrides int
	Since     time.Time
}

func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int), Since: since}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.Event == overrideEvent {
			report.Overrides++
		}
	}
	return report, nil
}
