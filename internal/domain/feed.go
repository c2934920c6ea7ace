package domain

// FeedDocument is the subset of a USGS GeoJSON summary document the service
// consumes. Fields are pointers where the feed is known to send null.
type FeedDocument struct {
	Type     string        `json:"type"`
	Metadata *FeedMetadata `json:"metadata,omitempty"`
	Features []RawFeature  `json:"features"`
}

// FeedMetadata describes the generated document.
type FeedMetadata struct {
	Generated int64  `json:"generated"`
	Title     string `json:"title"`
	Count     int    `json:"count"`
}

// RawFeature is one unvalidated feed record.
type RawFeature struct {
	ID         string         `json:"id"`
	Properties RawProperties  `json:"properties"`
	Geometry   *RawPointShape `json:"geometry"`
}

// RawProperties holds the feature properties used for normalization.
type RawProperties struct {
	Mag   *float64 `json:"mag"`
	Place *string  `json:"place"`
	Time  int64    `json:"time"`
}

// RawPointShape is a GeoJSON Point with an optional depth component.
type RawPointShape struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}
