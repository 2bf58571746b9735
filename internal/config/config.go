package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"presstrack"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address          string `envconfig:"PRESSTRACK_ADDRESS" default:":3443"`
	MetricsAddress   string `envconfig:"PRESSTRACK_METRICS_ADDRESS" default:":8080"`
	BaseUrl          string `envconfig:"PRESSTRACK_BASE_URL" default:"http://localhost:3443"`
	LogLevel         string `envconfig:"PRESSTRACK_LOG_LEVEL" default:"info"`
	ReplayBacklog    int    `envconfig:"PRESSTRACK_REPLAY_BACKLOG" default:"256"`
	ClientOutbox     int    `envconfig:"PRESSTRACK_CLIENT_OUTBOX" default:"64"`
	PriorityHighDays int    `envconfig:"PRESSTRACK_PRIORITY_HIGH_DAYS" default:"7"`
	PriorityMedDays  int    `envconfig:"PRESSTRACK_PRIORITY_MEDIUM_DAYS" default:"3"`
	StaleCeilingDays int    `envconfig:"PRESSTRACK_STALE_CEILING_DAYS" default:"10"`
	Auth             Auth
}

type Auth struct {
	AuthenticationType string `envconfig:"PRESSTRACK_AUTH" default:""`
	JwtSecret          string `envconfig:"PRESSTRACK_JWT_SECRET" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config suitable for tests: an in-memory sqlite store
// and no authentication.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: "file::memory:?cache=shared",
		},
		Service: &svcConfig{
			LogLevel:         "debug",
			ReplayBacklog:    256,
			ClientOutbox:     64,
			PriorityHighDays: 7,
			PriorityMedDays:  3,
			StaleCeilingDays: 10,
		},
	}
}
