// Package config loads placemap.cfg.json through viper and exposes typed views
// of each section.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/myplaces/placemap/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "placemap.cfg.json"

// ErrNotFound is returned by Load when no config file exists. Defaults are
// still in effect.
var ErrNotFound = errors.New("config file not found")

// SeedMarker is a marker added at startup.
type SeedMarker struct {
	Lat       float64 `json:"lat" mapstructure:"lat"`
	Lng       float64 `json:"lng" mapstructure:"lng"`
	Draggable bool    `json:"draggable" mapstructure:"draggable"`
}

// Position returns the seed marker's position.
func (s SeedMarker) Position() core.Position {
	return core.Position{Lat: s.Lat, Lng: s.Lng}
}

// MapConfig holds the initial map view sent to the frontend.
type MapConfig struct {
	Center      core.Position
	Zoom        int
	TileURL     string
	SeedMarkers []SeedMarker
}

// LocationConfig selects the device location provider.
type LocationConfig struct {
	// Provider is "replay", "manual" or "none".
	Provider  string
	Interval  time.Duration
	Positions []core.Position
	Buffer    int
}

// RendererConfig selects where marker updates are drawn.
type RendererConfig struct {
	// Type is "log" or "websocket".
	Type   string
	URL    string
	Secret string
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// JournalConfig selects the activity journal backend.
type JournalConfig struct {
	// Type is "none", "sqlite" or "postgres".
	Type string
	// Path is the sqlite file. Empty means in-memory.
	Path string
	DB   DBConfig
}

// InfluxConfig holds InfluxDB settings for fix telemetry.
type InfluxConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// GraylogConfig holds the GELF input address.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("map.center.lat", 28.626137)
	viper.SetDefault("map.center.lng", 79.821603)
	viper.SetDefault("map.zoom", 16)
	viper.SetDefault("map.tileUrl", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("map.seedMarkers", []map[string]any{
		{"lat": 28.625485, "lng": 79.821091, "draggable": true},
		{"lat": 28.625293, "lng": 79.817926, "draggable": false},
		{"lat": 28.625182, "lng": 79.81464, "draggable": true},
	})

	viper.SetDefault("location.provider", "replay")
	viper.SetDefault("location.interval", "2s")
	viper.SetDefault("location.buffer", 16)
	viper.SetDefault("location.positions", []map[string]any{
		{"lat": 28.625043, "lng": 79.810135},
		{"lat": 28.625512, "lng": 79.813384},
		{"lat": 28.626, "lng": 79.822},
	})

	viper.SetDefault("renderer.type", "log")
	viper.SetDefault("renderer.url", "ws://localhost:5000/map")
	viper.SetDefault("renderer.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")

	viper.SetDefault("journal.type", "none")
	viper.SetDefault("journal.path", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "placemap")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "placemap")
	viper.SetDefault("influx.bucket", "self_location")
	viper.SetDefault("influx.backupDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "placemap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// yields ErrNotFound with defaults applied.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrNotFound, configDir)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Used returns the path of the loaded config file, empty if none.
func Used() string {
	return viper.ConfigFileUsed()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func positions(key string) []core.Position {
	var out []core.Position
	if err := viper.UnmarshalKey(key, &out); err != nil {
		return nil
	}
	return out
}

// GetMapConfig returns the initial map view and seed markers.
func GetMapConfig() MapConfig {
	var seeds []SeedMarker
	if err := viper.UnmarshalKey("map.seedMarkers", &seeds); err != nil {
		seeds = nil
	}
	return MapConfig{
		Center: core.Position{
			Lat: viper.GetFloat64("map.center.lat"),
			Lng: viper.GetFloat64("map.center.lng"),
		},
		Zoom:        viper.GetInt("map.zoom"),
		TileURL:     viper.GetString("map.tileUrl"),
		SeedMarkers: seeds,
	}
}

// GetLocationConfig returns the location provider settings.
func GetLocationConfig() LocationConfig {
	return LocationConfig{
		Provider:  viper.GetString("location.provider"),
		Interval:  viper.GetDuration("location.interval"),
		Positions: positions("location.positions"),
		Buffer:    viper.GetInt("location.buffer"),
	}
}

// GetRendererConfig returns the renderer settings.
func GetRendererConfig() RendererConfig {
	return RendererConfig{
		Type:   viper.GetString("renderer.type"),
		URL:    viper.GetString("renderer.url"),
		Secret: viper.GetString("renderer.secret"),
	}
}

// GetJournalConfig returns the journal settings, including the shared db section.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Type: viper.GetString("journal.type"),
		Path: viper.GetString("journal.path"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetGraylogConfig returns the Graylog settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
