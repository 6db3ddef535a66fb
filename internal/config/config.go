package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "arena.cfg.json"

// SimConfig holds the client simulation tuning.
type SimConfig struct {
	TickRate          time.Duration
	ReportInterval    time.Duration
	Acceleration      float64
	Deceleration      float64
	AimScale          float64
	InterpDuration    time.Duration
	ProjectileSpeed   float64
	ProjectileEpsilon float64
	HitRadius         float64
	CooldownK         float64
	MinCooldown       time.Duration
	Seed              uint64
	Bounds            BoundsConfig
}

// BoundsConfig is the rectangular play area.
type BoundsConfig struct {
	MinX float64 `json:"minX" mapstructure:"minX"`
	MinY float64 `json:"minY" mapstructure:"minY"`
	MaxX float64 `json:"maxX" mapstructure:"maxX"`
	MaxY float64 `json:"maxY" mapstructure:"maxY"`
}

// RelayConfig holds the relay connection settings.
type RelayConfig struct {
	URL            string
	Token          string
	Codec          string
	SendBuffer     int
	MaxReconnect   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PongWait       time.Duration
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	OutputDir    string
	DumpInterval time.Duration
}

// PostgresConfig holds the postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// StorageConfig selects and configures the event sink.
type StorageConfig struct {
	Type     string
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Influx   InfluxConfig
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
	Metrics      bool
}

// GraylogConfig holds the GELF output settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// APIConfig holds the results publisher settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
}

// RelayServerConfig holds the dev relay settings.
type RelayServerConfig struct {
	Listen        string
	MinPlayers    int
	Duration      time.Duration
	RespawnDelay  time.Duration
	RejoinGrace   time.Duration
	ChatPerSecond float64
	ChatBurst     int
	MapID         string
	Token         string
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./arenalogs")

	viper.SetDefault("relay.url", "ws://localhost:8090/ws")
	viper.SetDefault("relay.token", "")
	viper.SetDefault("relay.codec", "json")
	viper.SetDefault("relay.sendBuffer", 256)
	viper.SetDefault("relay.maxReconnect", 10)
	viper.SetDefault("relay.initialBackoff", "1s")
	viper.SetDefault("relay.maxBackoff", "30s")
	viper.SetDefault("relay.pongWait", "60s")

	viper.SetDefault("sim.tickRate", "16ms")
	viper.SetDefault("sim.reportInterval", "50ms")
	viper.SetDefault("sim.acceleration", 1000.0)
	viper.SetDefault("sim.deceleration", 1500.0)
	viper.SetDefault("sim.aimScale", 15.0)
	viper.SetDefault("sim.interpDuration", "100ms")
	viper.SetDefault("sim.projectileSpeed", 1200.0)
	viper.SetDefault("sim.projectileEpsilon", 10.0)
	viper.SetDefault("sim.hitRadius", 25.0)
	viper.SetDefault("sim.cooldownK", 15.0)
	viper.SetDefault("sim.minCooldown", "50ms")
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.bounds.minX", 0.0)
	viper.SetDefault("sim.bounds.minY", 0.0)
	viper.SetDefault("sim.bounds.maxX", 1600.0)
	viper.SetDefault("sim.bounds.maxY", 1200.0)

	viper.SetDefault("server.listen", ":8090")
	viper.SetDefault("server.minPlayers", 2)
	viper.SetDefault("server.duration", "180s")
	viper.SetDefault("server.respawnDelay", "3s")
	// covers the client's full reconnect backoff
	viper.SetDefault("server.rejoinGrace", "200s")
	viper.SetDefault("server.chatPerSecond", 2.0)
	viper.SetDefault("server.chatBurst", 5)
	viper.SetDefault("server.mapId", "dunes")
	viper.SetDefault("server.token", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./results")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./results")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "arena")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "arena-metrics")
	viper.SetDefault("influx.bucket", "arena")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "arena")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metrics", false)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults installs the default values without reading a file.
func LoadDefaults() {
	setDefaults()
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

// Set overrides a value, used for CLI flags.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickRate:          viper.GetDuration("sim.tickRate"),
		ReportInterval:    viper.GetDuration("sim.reportInterval"),
		Acceleration:      viper.GetFloat64("sim.acceleration"),
		Deceleration:      viper.GetFloat64("sim.deceleration"),
		AimScale:          viper.GetFloat64("sim.aimScale"),
		InterpDuration:    viper.GetDuration("sim.interpDuration"),
		ProjectileSpeed:   viper.GetFloat64("sim.projectileSpeed"),
		ProjectileEpsilon: viper.GetFloat64("sim.projectileEpsilon"),
		HitRadius:         viper.GetFloat64("sim.hitRadius"),
		CooldownK:         viper.GetFloat64("sim.cooldownK"),
		MinCooldown:       viper.GetDuration("sim.minCooldown"),
		Seed:              viper.GetUint64("sim.seed"),
		Bounds: BoundsConfig{
			MinX: viper.GetFloat64("sim.bounds.minX"),
			MinY: viper.GetFloat64("sim.bounds.minY"),
			MaxX: viper.GetFloat64("sim.bounds.maxX"),
			MaxY: viper.GetFloat64("sim.bounds.maxY"),
		},
	}
}

// GetRelayConfig returns the relay connection settings.
func GetRelayConfig() RelayConfig {
	return RelayConfig{
		URL:            viper.GetString("relay.url"),
		Token:          viper.GetString("relay.token"),
		Codec:          viper.GetString("relay.codec"),
		SendBuffer:     viper.GetInt("relay.sendBuffer"),
		MaxReconnect:   viper.GetInt("relay.maxReconnect"),
		InitialBackoff: viper.GetDuration("relay.initialBackoff"),
		MaxBackoff:     viper.GetDuration("relay.maxBackoff"),
		PongWait:       viper.GetDuration("relay.pongWait"),
	}
}

// GetRelayServerConfig returns the dev relay settings.
func GetRelayServerConfig() RelayServerConfig {
	return RelayServerConfig{
		Listen:        viper.GetString("server.listen"),
		MinPlayers:    viper.GetInt("server.minPlayers"),
		Duration:      viper.GetDuration("server.duration"),
		RespawnDelay:  viper.GetDuration("server.respawnDelay"),
		RejoinGrace:   viper.GetDuration("server.rejoinGrace"),
		ChatPerSecond: viper.GetFloat64("server.chatPerSecond"),
		ChatBurst:     viper.GetInt("server.chatBurst"),
		MapID:         viper.GetString("server.mapId"),
		Token:         viper.GetString("server.token"),
	}
}

// GetStorageConfig returns the event sink settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Influx: InfluxConfig{
			Host:     viper.GetString("influx.host"),
			Port:     viper.GetString("influx.port"),
			Protocol: viper.GetString("influx.protocol"),
			Token:    viper.GetString("influx.token"),
			Org:      viper.GetString("influx.org"),
			Bucket:   viper.GetString("influx.bucket"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		Metrics:      viper.GetBool("otel.metrics"),
	}
}

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetAPIConfig returns the results publisher settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
