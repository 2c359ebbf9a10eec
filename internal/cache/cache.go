package cache

import (
	"context"
	"fmt"
	"time"

	"repairdesk/backend/internal/domain"
)

// ReportCache stores built report documents. Keys embed the snapshot epoch
// and version, so a reload makes older entries unreachable without explicit
// invalidation and processes sharing one cache never read each other's
// entries.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ReportDocument, bool, error)
	Set(ctx context.Context, key string, value *domain.ReportDocument, ttl time.Duration) error
}

func ReportKey(shopID string, date string, epoch string, version uint64) string {
	return fmt.Sprintf("repairdesk:report:%s:%s:%s:v%d", shopID, date, epoch, version)
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ReportDocument, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ReportDocument, _ time.Duration) error {
	return nil
}
