package lifecycle

import (
	"github.com/couchcryptid/outage-verify-service/internal/config"
	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

// DefaultNearbyLimit caps the active reports returned by Nearby.
const DefaultNearbyLimit = 100

// DefaultUpdateAttempts bounds the retries after a version conflict.
const DefaultUpdateAttempts = 3

// Policy gathers the tunable rules of the lifecycle.
type Policy struct {
	Gate           domain.GeoGate
	Limiter        domain.RateLimiter
	Quorum         domain.QuorumPolicy
	Scorer         domain.CredibilityScorer
	NearbyLimit    int
	UpdateAttempts int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Gate:           domain.DefaultGeoGate(),
		Limiter:        domain.RateLimiter{Cooldown: domain.DefaultReportCooldown},
		Quorum:         domain.DefaultQuorumPolicy(),
		Scorer:         domain.DefaultCredibilityScorer(),
		NearbyLimit:    DefaultNearbyLimit,
		UpdateAttempts: DefaultUpdateAttempts,
	}
}

// PolicyFromConfig builds the policy described by cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Gate: domain.GeoGate{
			Region:            cfg.Region,
			NearbyRadius:      cfg.NearbyRadiusMeters,
			MaxNearbyRadius:   cfg.NearbyMaxRadiusMeters,
			EligibilityRadius: cfg.VoteRadiusMeters,
		},
		Limiter: domain.RateLimiter{Cooldown: cfg.ReportCooldown},
		Quorum: domain.QuorumPolicy{
			Required:        cfg.ResolutionQuorum,
			CreatorShortcut: cfg.CreatorCanResolve,
		},
		Scorer: domain.CredibilityScorer{
			Policy: cfg.RewardPolicy,
			Points: domain.DefaultRewardPoints,
			Cap:    domain.MaxCredibility,
		},
		NearbyLimit:    cfg.NearbyLimit,
		UpdateAttempts: cfg.UpdateAttempts,
	}
}
