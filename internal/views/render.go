package views

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"strconv"

	"cloudpico-node/internal/sensor"
)

const (
	ContentTypeHTML    = "text/html; charset=utf-8"
	ContentTypeMetrics = "text/plain; version=0.0.4"

	MetricsPath = "/metrics"
)

//go:embed templates/*.html
var viewsFS embed.FS

var statusTmpl *template.Template

// Document is a rendered response body and its media type.
type Document struct {
	ContentType string
	Body        []byte
}

// loadTemplatesFromFS loads the status template from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFS(sub, "status.html")
	if err != nil {
		return err
	}
	statusTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded status template. Call during startup
// before serving requests; if it returns an error, do not start the loop.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type statusData struct {
	Name           string
	LocalURL       string
	CPUTemperature string
	SSID           string
	SignalStrength string
	Address        string
	MetricsPath    string
}

// LocalURL is the address the device advertises over mDNS.
func LocalURL(name string) string {
	return "http://" + name + ".local/"
}

// RenderStatus renders the human-readable status page.
func RenderStatus(id sensor.Identity, h sensor.Health) (Document, error) {
	if statusTmpl == nil {
		return Document{}, errors.New("status template not loaded: call views.LoadTemplates during startup")
	}

	var buf bytes.Buffer
	err := statusTmpl.Execute(&buf, statusData{
		Name:           id.Name,
		LocalURL:       LocalURL(id.Name),
		CPUTemperature: formatValue(h.CPUTemperatureC),
		SSID:           id.WiFiSSID,
		SignalStrength: strconv.Itoa(h.SignalStrengthDBm),
		Address:        id.BoundAddress,
		MetricsPath:    MetricsPath,
	})
	if err != nil {
		return Document{}, err
	}
	return Document{ContentType: ContentTypeHTML, Body: buf.Bytes()}, nil
}
