// Package domain models USGS earthquake summary feed data and the canonical
// event shape shared by the store, the map renderer, and the outbound adapters.
//
// # Data Source
//
// Events come from the USGS real-time GeoJSON summary feeds, one document per
// feed window (https://earthquake.usgs.gov/earthquakes/feed/v1.0/geojson.php):
//
//	all_hour.geojson   past hour, updated every minute
//	all_day.geojson    past day
//	all_week.geojson   past seven days
//
// Each feature carries a stable identity ("us7000abcd", "ci40712345"), a
// properties object, and a Point geometry.
//
// # USGS Data Conventions
//
// Coordinates:
//
//	[longitude, latitude, depth]  depth in kilometers, positive down.
//	Shallow events may report small negative depths (above sea level).
//
// Magnitude:
//
//	"mag" is a decimal in the reporting network's scale (ml, md, mb, mww...).
//	It is null for events the network has not yet sized; such records are
//	dropped by [Normalize] rather than plotted at zero.
//
// Time:
//
//	"time" is the origin time in milliseconds since the Unix epoch, UTC.
//
// Place:
//
//	Free text such as "12 km SSW of Ridgecrest, CA". Missing labels are
//	replaced with [UnknownPlace].
//
// # Identity
//
// The feed identity is used as-is. The same identity reappears in every poll
// while the event is within the window; later polls may revise magnitude,
// depth, or place, and the store overwrites in place.
package domain
