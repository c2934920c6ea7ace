package domain

import (
	"context"
	"log/slog"
)

// EnrichPlace replaces the placeholder label of an event with a reverse
// geocoded place. Events that already carry a label are returned unchanged.
// If geocoder is nil or the lookup fails, the event keeps its placeholder
// (graceful degradation).
func EnrichPlace(ctx context.Context, event Event, geocoder Geocoder, logger *slog.Logger) Event {
	if geocoder == nil || event.Place != UnknownPlace {
		return event
	}

	result, err := geocoder.ReverseGeocode(ctx, event.Lat, event.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"lat", event.Lat,
			"lon", event.Lon,
			"error", err,
		)
		return event
	}
	if result.FormattedAddress != "" {
		event.Place = "Near " + result.FormattedAddress
	}
	return event
}
