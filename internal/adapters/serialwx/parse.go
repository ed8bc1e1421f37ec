package serialwx

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alexrobin/osh-video/internal/domain"
)

// Columns is the line layout weather loggers write, one observation per line.
var Columns = []string{
	"stationName", "time", "lat", "lon", "el",
	"temperature", "dewPoint", "relativeHumidity", "windSpeed", "windDirection",
	"airPressure", "precipitation", "heatIndex", "windChill", "windGust",
	"rain3h", "rain6h", "rain24h", "maxTemp24h", "minTemp24h",
	"cloudCeiling", "visibility",
}

const (
	colName = iota
	colTime
	colLat
	colLon
	colElevation
	colTemperature
	colDewPoint
	colHumidity
	colWindSpeed
	colWindDirection
	colAirPressure
	colPrecipitation
	colHeatIndex
	colWindChill
	colWindGust
	colRain3h
	colRain6h
	colRain24h
	colMaxTemp
	colMinTemp
	colCloudCeiling
	colVisibility
)

// isHeader reports whether line is the column header some loggers print on
// reset.
func isHeader(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), Columns[0]+",")
}

// ParseLine decodes one CSV observation. Empty numeric columns become NaN, or
// zero for the integer distances.
func ParseLine(line string) (domain.StationReading, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(line)))
	r.FieldsPerRecord = len(Columns)
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return domain.StationReading{}, fmt.Errorf("%w: %v", domain.ErrMalformedReading, err)
	}

	p := fieldParser{fields: fields}
	ts, err := time.Parse(time.RFC3339, fields[colTime])
	if err != nil {
		return domain.StationReading{}, fmt.Errorf("%w: time: %v", domain.ErrMalformedReading, err)
	}
	reading := domain.StationReading{
		Station: domain.Station{
			Name:      fields[colName],
			Latitude:  p.float(colLat),
			Longitude: p.float(colLon),
			Elevation: p.float(colElevation),
		},
		SampleTime:          ts.UTC(),
		Temperature:         p.float(colTemperature),
		DewPoint:            p.float(colDewPoint),
		RelativeHumidity:    p.float(colHumidity),
		WindSpeed:           p.float(colWindSpeed),
		WindDirection:       p.float(colWindDirection),
		WindGust:            p.float(colWindGust),
		MinDailyTemperature: p.float(colMinTemp),
		MaxDailyTemperature: p.float(colMaxTemp),
		CloudCeiling:        p.int(colCloudCeiling),
		Visibility:          p.int(colVisibility),
	}
	if p.err != nil {
		return domain.StationReading{}, fmt.Errorf("%w: %v", domain.ErrMalformedReading, p.err)
	}
	return reading, nil
}

type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) float(col int) float64 {
	s := p.fields[col]
	if s == "" || p.err != nil {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %v", Columns[col], err)
	}
	return v
}

func (p *fieldParser) int(col int) int64 {
	s := p.fields[col]
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %v", Columns[col], err)
	}
	return int64(math.Round(v))
}
