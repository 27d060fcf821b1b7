package resilience

import "time"

// Preset bundles the retry and breaker settings of one dependency
type Preset struct {
	Name    string
	Retry   RetryConfig
	Breaker Settings
}

// Dependency names used as circuit keys
const (
	DependencyLLM       = "llm"
	DependencyInventory = "inventory"
	DependencyMessaging = "messaging"
)

var (
	// LLM calls are slow, they get the longest attempt timeout
	LLM = Preset{
		Name: DependencyLLM,
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialDelay:   1 * time.Second,
			MaxDelay:       8 * time.Second,
			Multiplier:     2,
			AttemptTimeout: 30 * time.Second,
		},
		Breaker: Settings{FailureThreshold: 5, SuccessThreshold: 2, ResetTimeout: 60 * time.Second},
	}

	Inventory = Preset{
		Name: DependencyInventory,
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2,
			AttemptTimeout: 15 * time.Second,
		},
		Breaker: Settings{FailureThreshold: 3, SuccessThreshold: 2, ResetTimeout: 30 * time.Second},
	}

	// Messaging gets the shortest attempt timeout
	Messaging = Preset{
		Name: DependencyMessaging,
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       4 * time.Second,
			Multiplier:     2,
			AttemptTimeout: 10 * time.Second,
		},
		Breaker: Settings{FailureThreshold: 3, SuccessThreshold: 2, ResetTimeout: 30 * time.Second},
	}
)

// Presets lists the built-in dependency presets
func Presets() []Preset {
	return []Preset{LLM, Inventory, Messaging}
}
