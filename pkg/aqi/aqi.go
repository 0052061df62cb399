// Package aqi fuses satellite column readings into a composite 0-500 Air
// Quality Index and maps index values to EPA-style categories and colors.
package aqi

import "math"

// Locale selects the language of category labels.
type Locale string

const (
	Spanish Locale = "es"
	English Locale = "en"
)

// NoDataColor is shown for points without a usable index.
const NoDataColor = "#808080"

type category struct {
	max     int
	color   string
	spanish string
	english string
}

// categories are ordered by ascending upper bound; the last band is open-ended.
var categories = []category{
	{50, "#00E400", "Bueno", "Good"},
	{100, "#FFFF00", "Moderado", "Moderate"},
	{150, "#FF7E00", "Poco saludable para sensibles", "Unhealthy for Sensitive Groups"},
	{200, "#FF0000", "Poco saludable", "Unhealthy"},
	{300, "#8F3F97", "Muy poco saludable", "Very Unhealthy"},
	{math.MaxInt, "#7E0023", "Peligroso", "Hazardous"},
}

func lookup(aqi int) category {
	for _, c := range categories {
		if aqi <= c.max {
			return c
		}
	}
	return categories[len(categories)-1]
}

// Category returns the category label for an index value, or the
// "no data" label when aqi is nil.
func Category(aqi *int, loc Locale) string {
	if aqi == nil {
		if loc == English {
			return "No data"
		}
		return "Sin datos"
	}
	c := lookup(*aqi)
	if loc == English {
		return c.english
	}
	return c.spanish
}

// Color returns the standard display color for an index value
func Color(aqi *int) string {
	if aqi == nil {
		return NoDataColor
	}
	return lookup(*aqi).color
}
