package station

import "github.com/alexrobin/osh-video/internal/domain"

// OutputName is the record and output name of a weather station.
const OutputName = "GenericWeatherStation"

const (
	ontology     = "http://sensorml.com/ont/swe/property/"
	cfOntology   = "http://mmisw.org/ont/cf/parameter/"
	defStationID = ontology + "StationID"
)

// NewSchema describes one weather observation. The field order is the record
// order.
func NewSchema() (*domain.RecordSchema, error) {
	return domain.NewRecordSchema(domain.Group(OutputName, []*domain.Component{
		domain.Scalar("stationName", domain.TypeText, domain.WithDefinition(defStationID)),
		domain.Scalar("time", domain.TypeTime,
			domain.WithDefinition(domain.DefSamplingTime), domain.WithUOM(domain.UOMISOTime)),
		domain.Scalar("lat", domain.TypeDouble,
			domain.WithDefinition(ontology+"GeodeticLatitude"), domain.WithUOM("deg"),
			domain.WithReferenceFrame(domain.CRSWGS84Height, "Lat")),
		domain.Scalar("lon", domain.TypeDouble,
			domain.WithDefinition(ontology+"Longitude"), domain.WithUOM("deg"),
			domain.WithReferenceFrame(domain.CRSWGS84Height, "Long")),
		domain.Scalar("alt", domain.TypeDouble,
			domain.WithDefinition(ontology+"HeightAboveEllipsoid"), domain.WithUOM("m"),
			domain.WithReferenceFrame(domain.CRSWGS84Height, "h")),
		domain.Scalar("temperature", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"air_temperature"), domain.WithUOM("[degF]")),
		domain.Scalar("dewPoint", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"dew_point_temperature"), domain.WithUOM("[degF]")),
		domain.Scalar("relativeHumidity", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"relative_humidity"), domain.WithUOM("%")),
		domain.Scalar("windSpeed", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"wind_speed"), domain.WithUOM("[mi_i]/h")),
		domain.Scalar("windDirection", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"wind_from_direction"), domain.WithUOM("deg")),
		domain.Scalar("windGust", domain.TypeDouble,
			domain.WithDefinition(cfOntology+"wind_speed_of_gust"), domain.WithUOM("[mi_i]/h")),
		domain.Scalar("minDailyTemperature", domain.TypeDouble,
			domain.WithDefinition(ontology+"MinimumTemperature"), domain.WithUOM("[degF]")),
		domain.Scalar("maxDailyTemperature", domain.TypeDouble,
			domain.WithDefinition(ontology+"MaximumTemperature"), domain.WithUOM("[degF]")),
		domain.Scalar("cloudCeiling", domain.TypeInt,
			domain.WithDefinition(ontology+"CloudCeiling"), domain.WithUOM("[ft_i]")),
		domain.Scalar("visibility", domain.TypeInt,
			domain.WithDefinition(cfOntology+"visibility_in_air"), domain.WithUOM("[ft_i]")),
	}))
}

// NewEncoding is comma separated values, one observation per line.
func NewEncoding() *domain.TextEncoding {
	return domain.NewTextEncoding(",", "\n")
}

// ToRecord maps a reading onto the schema positionally. Nothing is derived.
func ToRecord(r domain.StationReading) *domain.Record {
	return domain.NewRecord(
		r.Station.Name,
		r.SampleTime,
		r.Station.Latitude,
		r.Station.Longitude,
		r.Station.Elevation,
		r.Temperature,
		r.DewPoint,
		r.RelativeHumidity,
		r.WindSpeed,
		r.WindDirection,
		r.WindGust,
		r.MinDailyTemperature,
		r.MaxDailyTemperature,
		r.CloudCeiling,
		r.Visibility,
	)
}
