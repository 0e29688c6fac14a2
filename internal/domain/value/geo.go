package value

// GeoSample is the result of one POI/transit lookup around a coordinate.
type GeoSample struct {
	Stations int `json:"stations"` // transit stops within the search radius
	POIs     int `json:"pois"`     // commercial POIs within the search radius
}
