package interfaces

import (
	"context"

	"github.com/m-mizutani/pagecraft/pkg/domain/model"
)

// Notifier delivers a completion record to an evaluation callback
type Notifier interface {
	Notify(ctx context.Context, url string, record *model.NotificationRecord) (*model.Delivery, error)
}

// Alerter reports rounds that did not fully succeed to operators
type Alerter interface {
	Alert(ctx context.Context, req *model.TaskRequest, result *model.RoundResult, cause error) error
}
