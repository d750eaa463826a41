package notifications

import (
	"fmt"

	"github.com/BearBump/MarketShip/internal/models"
)

// ConfigurationError means a notification cannot be built: the type has no
// template and the caller gave no custom title and message.
type ConfigurationError struct {
	Type   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("notification type %q: %s", e.Type, e.Reason)
}

// DeliveryError is one channel's failure. It never leaves the dispatcher
// except inside a DeliveryResult.
type DeliveryError struct {
	Channel models.Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
