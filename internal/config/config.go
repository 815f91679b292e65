package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

// Store and lock backends.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	LockLocal   = "local"
	LockRedis   = "redis"
)

// Mongo connection defaults.
const (
	DefaultMongoURI      = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabase = "outages"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StoreBackend  string
	MongoURI      string
	MongoDatabase string

	LockBackend   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEventsTopic string

	JWTSecret string

	// Lifecycle policy.
	Region                domain.BoundingBox
	NearbyRadiusMeters    float64
	NearbyMaxRadiusMeters float64
	VoteRadiusMeters      float64
	ReportCooldown        time.Duration
	ResolutionQuorum      int
	CreatorCanResolve     bool
	RewardPolicy          domain.RewardPolicy
	NearbyLimit           int
	UpdateAttempts        int

	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoreBackend:  sharedcfg.EnvOrDefault("STORE_BACKEND", StoreMemory),
		MongoURI:      sharedcfg.EnvOrDefault("MONGO_URI", DefaultMongoURI),
		MongoDatabase: sharedcfg.EnvOrDefault("MONGO_DATABASE", DefaultMongoDatabase),

		LockBackend:   sharedcfg.EnvOrDefault("LOCK_BACKEND", LockLocal),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: sharedcfg.EnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0, 0),
		LockTTL:       p.duration("LOCK_TTL", 5*time.Second),

		KafkaEnabled:     p.bool("KAFKA_ENABLED", false),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "outage-report-events"),

		JWTSecret: sharedcfg.EnvOrDefault("JWT_SECRET", ""),

		Region:                p.region(),
		NearbyRadiusMeters:    p.float("NEARBY_RADIUS_METERS", domain.DefaultNearbyRadiusMeters),
		NearbyMaxRadiusMeters: p.float("NEARBY_MAX_RADIUS_METERS", domain.DefaultMaxNearbyRadiusMeters),
		VoteRadiusMeters:      p.float("VOTE_RADIUS_METERS", domain.DefaultEligibilityRadiusMeters),
		ReportCooldown:        p.duration("REPORT_COOLDOWN", domain.DefaultReportCooldown),
		ResolutionQuorum:      p.int("RESOLUTION_QUORUM", domain.DefaultResolutionQuorum, 1),
		CreatorCanResolve:     p.bool("CREATOR_CAN_RESOLVE", true),
		NearbyLimit:           p.int("NEARBY_LIMIT", 100, 1),
		UpdateAttempts:        p.int("UPDATE_ATTEMPTS", 3, 1),

		HTTPRateLimitRPS:   p.float("HTTP_RATE_LIMIT_RPS", 10),
		HTTPRateLimitBurst: p.int("HTTP_RATE_LIMIT_BURST", 20, 1),
	}
	if p.err != nil {
		return nil, p.err
	}

	policy, err := domain.ParseRewardPolicy(sharedcfg.EnvOrDefault("REWARD_POLICY", string(domain.RewardEveryAlignedVote)))
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_POLICY: %w", err)
	}
	cfg.RewardPolicy = policy

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRegion reads only the REGION_* bounds, for tools that check locations
// against the operating territory without the rest of the service settings.
func LoadRegion() (domain.BoundingBox, error) {
	p := parser{}
	region := p.region()
	if p.err != nil {
		return domain.BoundingBox{}, p.err
	}
	if err := validateRegion(region); err != nil {
		return domain.BoundingBox{}, err
	}
	return region, nil
}

func validateRegion(b domain.BoundingBox) error {
	if b.MinLng >= b.MaxLng || b.MinLat >= b.MaxLat {
		return errors.New("REGION_MIN_* must be below REGION_MAX_*")
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_BACKEND is mongo")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want memory or mongo", c.StoreBackend)
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when LOCK_BACKEND is redis")
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q: want local or redis", c.LockBackend)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaEventsTopic == "" {
			return errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if err := validateRegion(c.Region); err != nil {
		return err
	}
	if c.NearbyRadiusMeters <= 0 {
		return errors.New("NEARBY_RADIUS_METERS must be positive")
	}
	if c.NearbyMaxRadiusMeters < c.NearbyRadiusMeters {
		return errors.New("NEARBY_MAX_RADIUS_METERS must not be below NEARBY_RADIUS_METERS")
	}
	if c.VoteRadiusMeters <= 0 {
		return errors.New("VOTE_RADIUS_METERS must be positive")
	}
	if c.HTTPRateLimitRPS <= 0 {
		return errors.New("HTTP_RATE_LIMIT_RPS must be positive")
	}
	return nil
}

// parser reads typed env values and keeps the first error. Durations may be
// zero but not negative.
type parser struct {
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (p *parser) region() domain.BoundingBox {
	return domain.BoundingBox{
		MinLng: p.float("REGION_MIN_LNG", domain.DefaultRegion.MinLng),
		MaxLng: p.float("REGION_MAX_LNG", domain.DefaultRegion.MaxLng),
		MinLat: p.float("REGION_MIN_LAT", domain.DefaultRegion.MinLat),
		MaxLat: p.float("REGION_MAX_LAT", domain.DefaultRegion.MaxLat),
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if d < 0 {
		p.fail(key, errors.New("must not be negative"))
		return def
	}
	return d
}

func (p *parser) int(key string, def, minimum int) int {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	if n < minimum {
		p.fail(key, fmt.Errorf("must be at least %d", minimum))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		err = errors.New("must be a finite number")
	}
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}
