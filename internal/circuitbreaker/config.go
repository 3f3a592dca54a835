package circuitbreaker

import "time"

// DefaultConfig provides balanced settings for most call paths.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// ProviderConfig is tuned for external calendar APIs: trip quickly and
// probe cautiously, since a provider outage affects every account.
func ProviderConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// OAuthConfig tolerates fewer failures before tripping; repeated token
// failures are more likely bad credentials than a transient outage.
func OAuthConfig() Config {
	return Config{
		FailureThreshold: 3,
		ResetTimeout:     2 * time.Minute,
		HalfOpenMaxCalls: 1,
	}
}
