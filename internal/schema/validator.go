// Package schema validates outbound event payloads before they leave the
// service, so malformed handoffs surface here instead of in a downstream
// consumer's dead-letter queue.
package schema

import (
	"errors"
	"fmt"
	"time"
)

const maxDeliveryScore = 25.0

// ValidateScoringEvent checks the invariants every scoring consumer relies
// on: a session id, a completion timestamp and a delivery score on the fixed
// scale.
func ValidateScoringEvent(sessionID string, completedAt time.Time, deliveryScore float64) error {
	if sessionID == "" {
		return errors.New("scoring event missing session id")
	}
	if completedAt.IsZero() {
		return errors.New("scoring event missing completion time")
	}
	if deliveryScore < 0 || deliveryScore > maxDeliveryScore {
		return fmt.Errorf("delivery score %v outside [0, %v]", deliveryScore, maxDeliveryScore)
	}
	return nil
}
