package ports

import (
	"context"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
)

// DatasetSource provides the static collections rendered by the dashboard.
type DatasetSource interface {
	Load(ctx context.Context) (emergency.Datasets, error)
}
