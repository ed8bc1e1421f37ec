package domain

import "time"

// Station identifies a weather station and where it stands.
type Station struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
}

// StationReading is one logical weather observation pulled from a source.
// Temperatures are in degF, speeds in mph, distances in feet.
type StationReading struct {
	Station             Station   `json:"station"`
	SampleTime          time.Time `json:"time"`
	Temperature         float64   `json:"temperature"`
	DewPoint            float64   `json:"dew_point"`
	RelativeHumidity    float64   `json:"relative_humidity"`
	WindSpeed           float64   `json:"wind_speed"`
	WindDirection       float64   `json:"wind_direction"`
	WindGust            float64   `json:"wind_gust"`
	MinDailyTemperature float64   `json:"min_daily_temperature"`
	MaxDailyTemperature float64   `json:"max_daily_temperature"`
	CloudCeiling        int64     `json:"cloud_ceiling"`
	Visibility          int64     `json:"visibility"`
}
