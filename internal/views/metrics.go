package views

import (
	"strconv"
	"strings"

	"cloudpico-node/internal/sensor"
)

const (
	deviceType = "pico-w"

	sensorBoard      = "pico-w"
	sensorAnemometer = "anemometer"
)

// metricFamily is one entry of the exposition document. The table order,
// names, help text and label set are consumed by scrapers; changing any of
// them breaks dashboards.
type metricFamily struct {
	name   string
	help   string
	sensor func(barometer string) string
	value  func(s sensor.Sample, d sensor.Derived) float64
}

func board(string) string { return sensorBoard }

func anemometer(string) string { return sensorAnemometer }

func barometer(b string) string { return b }

var metricFamilies = []metricFamily{
	{
		name:   "wifi_signal_strength",
		help:   "Wifi signal strength in dBm.",
		sensor: board,
		value:  func(s sensor.Sample, _ sensor.Derived) float64 { return float64(s.SignalStrengthDBm) },
	},
	{
		name:   "cpu_temperature",
		help:   "CPU temperature in degree Celsius.",
		sensor: board,
		value:  func(s sensor.Sample, _ sensor.Derived) float64 { return s.CPUTemperatureC },
	},
	{
		name:   "wind_speed_m_s",
		help:   "Wind speed in meters per second.",
		sensor: anemometer,
		value:  func(_ sensor.Sample, d sensor.Derived) float64 { return d.WindSpeedMS },
	},
	{
		name:   "wind_speed_ft_s",
		help:   "Wind speed in feet per second.",
		sensor: anemometer,
		value:  func(_ sensor.Sample, d sensor.Derived) float64 { return d.WindSpeedFtS },
	},
	{
		name:   "wind_speed_mp_h",
		help:   "Wind speed in miles per hour.",
		sensor: anemometer,
		value:  func(_ sensor.Sample, d sensor.Derived) float64 { return d.WindSpeedMPH },
	},
	{
		name:   "pressure_hpa",
		help:   "Barometric pressure in hPa.",
		sensor: barometer,
		value:  func(s sensor.Sample, _ sensor.Derived) float64 { return s.PressureHPa },
	},
	{
		name:   "ambient_temperature_c",
		help:   "Ambient temperature in degree Celsius.",
		sensor: barometer,
		value:  func(s sensor.Sample, _ sensor.Derived) float64 { return s.TemperatureC },
	},
	{
		name:   "ambient_temperature_f",
		help:   "Ambient temperature in degree Fahrenheit.",
		sensor: barometer,
		value:  func(_ sensor.Sample, d sensor.Derived) float64 { return d.TemperatureF },
	},
}

// MetricsOptions carries the per-device label that is not part of Identity.
type MetricsOptions struct {
	// BarometerName is the sensor_name label for pressure and ambient
	// temperature. Defaults to "lps22".
	BarometerName string
}

// RenderMetrics renders the Prometheus text exposition for one sample.
// Identical inputs produce byte-identical output.
func RenderMetrics(id sensor.Identity, s sensor.Sample, opts MetricsOptions) Document {
	baro := opts.BarometerName
	if baro == "" {
		baro = "lps22"
	}
	derived := sensor.Derive(s)
	deviceName := escapeLabelValue(id.Name)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(escapeComment(id.Name))
	b.WriteString(" metrics\n")

	for _, f := range metricFamilies {
		b.WriteString("#\n")
		b.WriteString("# TYPE ")
		b.WriteString(f.name)
		b.WriteString(" gauge\n")
		b.WriteString("# HELP ")
		b.WriteString(f.name)
		b.WriteByte(' ')
		b.WriteString(f.help)
		b.WriteByte('\n')

		b.WriteString(f.name)
		b.WriteString(`{device_type="`)
		b.WriteString(deviceType)
		b.WriteString(`",device_name="`)
		b.WriteString(deviceName)
		b.WriteString(`",sensor_name="`)
		b.WriteString(escapeLabelValue(f.sensor(baro)))
		b.WriteString(`"} `)
		b.WriteString(formatValue(f.value(s, derived)))
		b.WriteByte('\n')
	}

	return Document{ContentType: ContentTypeMetrics, Body: []byte(b.String())}
}

// formatValue prints the shortest decimal that round-trips, never in
// exponent form.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

func escapeLabelValue(s string) string {
	return labelEscaper.Replace(s)
}

// A newline in the device name would end the header comment early.
var commentEscaper = strings.NewReplacer("\n", " ", "\r", " ")

func escapeComment(s string) string {
	return commentEscaper.Replace(s)
}
