package relay

import (
	"fmt"

	"earnings/events"
)

// SubjectFor maps a domain event to its NATS subject under prefix
func SubjectFor(prefix string, event events.Event) string {
	switch event.Type() {
	case events.EventTypePlatformsFrozen:
		return prefix + ".period.platforms_frozen"
	case events.EventTypePlatformsUnfrozen:
		return prefix + ".period.platforms_unfrozen"
	case events.EventTypePeriodClosed:
		return prefix + ".period.closed"
	case events.EventTypeRateActivated:
		return prefix + ".rates.activated"
	case events.EventTypePayoutConfigUpdated:
		return prefix + ".config.updated"
	default:
		return fmt.Sprintf("%s.unknown.%s", prefix, event.Type())
	}
}

// relayedTypes lists the event types forwarded to NATS
var relayedTypes = []events.EventType{
	events.EventTypePlatformsFrozen,
	events.EventTypePlatformsUnfrozen,
	events.EventTypePeriodClosed,
	events.EventTypeRateActivated,
	events.EventTypePayoutConfigUpdated,
}
