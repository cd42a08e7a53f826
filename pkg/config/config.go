package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "groupline"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GROUPLINE_DB_DSN"
	EnvDBHost = "GROUPLINE_DB_HOST"
	EnvDBUser = "GROUPLINE_DB_USER"
	EnvDBName = "GROUPLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Engine        EngineConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROUPLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"GROUPLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GROUPLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GROUPLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GROUPLINE_DB_DSN"`
	Driver string `envconfig:"GROUPLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GROUPLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"GROUPLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GROUPLINE_DB_USER"`
	LegacyPassword string `envconfig:"GROUPLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"GROUPLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"GROUPLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROUPLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROUPLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROUPLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROUPLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GROUPLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GROUPLINE_REDIS_ADDR"`
	Password     string        `envconfig:"GROUPLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROUPLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROUPLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROUPLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROUPLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROUPLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROUPLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GROUPLINE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GROUPLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"GROUPLINE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"GROUPLINE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GROUPLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GROUPLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GROUPLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GROUPLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GROUPLINE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"GROUPLINE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// EngineConfig tunes authorization engine behavior that the original design
// left ambiguous.
type EngineConfig struct {
	// StrictRoleChange raises FORBIDDEN on unauthorized role changes instead
	// of swallowing them as a zero-effect no-op.
	StrictRoleChange bool `envconfig:"GROUPLINE_STRICT_ROLE_CHANGE" default:"false"`
	// InvitationTTL is the validity window applied when an invitation is
	// created without an explicit expiry. Zero means no expiry.
	InvitationTTL time.Duration `envconfig:"GROUPLINE_INVITATION_TTL" default:"0"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GROUPLINE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
