package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPeriph    = "periph"
	BackendSimulated = "sim"

	BarometerLPS22  = "lps22"
	BarometerBMX280 = "bmx280"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// Identity, read once at boot.
	DeviceName   string
	WiFiSSID     string
	WiFiPassword Secret

	WiFiInterface string
	// BindAddress overrides the address detected on WiFiInterface.
	BindAddress string

	HTTPAddr           string
	PollTimeout        time.Duration
	RequestReadTimeout time.Duration

	SensorBackend    string
	I2CBus           string
	ADCAddress       uint16
	ADCChannel       int
	Barometer        string
	BarometerAddress uint16
	LEDPin           string

	// ThermalZone is the N of /sys/class/thermal/thermal_zoneN.
	ThermalZone string
	SysPath     string
	ProcPath    string

	MDNSEnable bool

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
}

// MQTTEnabled reports whether telemetry should be mirrored to a broker.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	deviceName := strings.TrimSpace(os.Getenv("DEVICE_NAME"))
	if deviceName == "" {
		return Config{}, fmt.Errorf("DEVICE_NAME is required")
	}
	wifiSSID := strings.TrimSpace(os.Getenv("WIFI_SSID"))
	if wifiSSID == "" {
		return Config{}, fmt.Errorf("WIFI_SSID is required")
	}
	// Credentials may legitimately carry leading or trailing spaces.
	wifiPassword := Secret(os.Getenv("WIFI_PASSWORD"))

	wifiInterface := strings.TrimSpace(os.Getenv("WIFI_INTERFACE"))
	if wifiInterface == "" {
		wifiInterface = "wlan0"
	}
	bindAddress := strings.TrimSpace(os.Getenv("BIND_ADDRESS"))

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":80"
	}

	pollTimeout, err := parsePositiveDuration("POLL_TIMEOUT", "250ms")
	if err != nil {
		return Config{}, err
	}
	requestReadTimeout, err := parsePositiveDuration("REQUEST_READ_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SENSOR_BACKEND")))
	if backend == "" {
		backend = BackendPeriph
	}
	switch backend {
	case BackendPeriph, BackendSimulated:
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_BACKEND %q (allowed: periph, sim)", backend)
	}

	i2cBus := strings.TrimSpace(os.Getenv("I2C_BUS"))

	adcAddress, err := parseI2CAddress("ADC_ADDRESS", "0x48")
	if err != nil {
		return Config{}, err
	}

	adcChannelStr := strings.TrimSpace(os.Getenv("ADC_CHANNEL"))
	if adcChannelStr == "" {
		adcChannelStr = "0"
	}
	adcChannel, err := strconv.Atoi(adcChannelStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADC_CHANNEL %q: %w", adcChannelStr, err)
	}
	if adcChannel < 0 || adcChannel > 3 {
		return Config{}, fmt.Errorf("ADC_CHANNEL must be between 0 and 3, got %d", adcChannel)
	}

	barometer := strings.ToLower(strings.TrimSpace(os.Getenv("BAROMETER")))
	if barometer == "" {
		barometer = BarometerLPS22
	}
	var defaultBaroAddress string
	switch barometer {
	case BarometerLPS22:
		defaultBaroAddress = "0x5D"
	case BarometerBMX280:
		defaultBaroAddress = "0x76"
	default:
		return Config{}, fmt.Errorf("invalid BAROMETER %q (allowed: lps22, bmx280)", barometer)
	}
	barometerAddress, err := parseI2CAddress("BAROMETER_ADDRESS", defaultBaroAddress)
	if err != nil {
		return Config{}, err
	}

	thermalZone := strings.TrimPrefix(strings.TrimSpace(os.Getenv("THERMAL_ZONE")), "thermal_zone")
	if thermalZone == "" {
		thermalZone = "0"
	}
	sysPath := strings.TrimSpace(os.Getenv("SYS_PATH"))
	if sysPath == "" {
		sysPath = "/sys"
	}
	procPath := strings.TrimSpace(os.Getenv("PROC_PATH"))
	if procPath == "" {
		procPath = "/proc"
	}
	ledPin := strings.TrimSpace(os.Getenv("LED_PIN"))

	mdnsEnableStr := strings.TrimSpace(os.Getenv("MDNS_ENABLE"))
	if mdnsEnableStr == "" {
		mdnsEnableStr = "true"
	}
	mdnsEnable, err := strconv.ParseBool(mdnsEnableStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MDNS_ENABLE %q: %w", mdnsEnableStr, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = deviceName
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		DeviceName:         deviceName,
		WiFiSSID:           wifiSSID,
		WiFiPassword:       wifiPassword,
		WiFiInterface:      wifiInterface,
		BindAddress:        bindAddress,
		HTTPAddr:           httpAddr,
		PollTimeout:        pollTimeout,
		RequestReadTimeout: requestReadTimeout,
		SensorBackend:      backend,
		I2CBus:             i2cBus,
		ADCAddress:         adcAddress,
		ADCChannel:         adcChannel,
		Barometer:          barometer,
		BarometerAddress:   barometerAddress,
		ThermalZone:        thermalZone,
		SysPath:            sysPath,
		ProcPath:           procPath,
		LEDPin:             ledPin,
		MDNSEnable:         mdnsEnable,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
	}, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseI2CAddress(key, def string) (uint16, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	addr, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got %#x", key, addr)
	}
	return uint16(addr), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
