package models

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	AgentConfigVersion         = 1
	DefaultConfidenceThreshold = 0.65
	DefaultRiskTolerance       = "moderate"
)

type Agent struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Active          bool      `json:"active"`
	WalletID        string    `json:"walletId,omitempty"`
	SocialProfileID string    `json:"socialProfileId,omitempty"`
	ConfigJSON      string    `json:"config"`
	CreatedAt       time.Time `json:"createdAt"`
}

// AgentConfig is the parsed form of an agent's free-form configuration blob.
type AgentConfig struct {
	Version             int      `json:"version"`
	AutoVote            bool     `json:"autoVote"`
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
	Values              []string `json:"values"`
	FocusAreas          []string `json:"focusAreas"`
	RiskTolerance       string   `json:"riskTolerance"`
	Delegator           string   `json:"delegator,omitempty"`
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Version:             AgentConfigVersion,
		AutoVote:            false,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Values:              []string{},
		FocusAreas:          []string{},
		RiskTolerance:       DefaultRiskTolerance,
	}
}

// rawAgentConfig accepts both camelCase and snake_case keys. Pointers
// distinguish "absent" from zero values.
type rawAgentConfig struct {
	Version                  *int     `json:"version"`
	AutoVote                 *bool    `json:"autoVote"`
	AutoVoteSnake            *bool    `json:"auto_vote"`
	ConfidenceThreshold      *float64 `json:"confidenceThreshold"`
	ConfidenceThresholdSnake *float64 `json:"confidence_threshold"`
	Values                   []string `json:"values"`
	FocusAreas               []string `json:"focusAreas"`
	FocusAreasSnake          []string `json:"focus_areas"`
	RiskTolerance            *string  `json:"riskTolerance"`
	RiskToleranceSnake       *string  `json:"risk_tolerance"`
	Delegator                *string  `json:"delegator"`
}

// ParseAgentConfig never fails. Empty, malformed or mistyped input yields
// DefaultAgentConfig; absent keys keep their individual defaults.
func ParseAgentConfig(raw string) AgentConfig {
	cfg := DefaultAgentConfig()
	if strings.TrimSpace(raw) == "" {
		return cfg
	}

	var r rawAgentConfig
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return DefaultAgentConfig()
	}

	if r.Version != nil && *r.Version > 0 {
		cfg.Version = *r.Version
	}
	switch {
	case r.AutoVote != nil:
		cfg.AutoVote = *r.AutoVote
	case r.AutoVoteSnake != nil:
		cfg.AutoVote = *r.AutoVoteSnake
	}
	switch {
	case r.ConfidenceThreshold != nil:
		cfg.ConfidenceThreshold = clampUnit(*r.ConfidenceThreshold)
	case r.ConfidenceThresholdSnake != nil:
		cfg.ConfidenceThreshold = clampUnit(*r.ConfidenceThresholdSnake)
	}
	if r.Values != nil {
		cfg.Values = r.Values
	}
	switch {
	case r.FocusAreas != nil:
		cfg.FocusAreas = r.FocusAreas
	case r.FocusAreasSnake != nil:
		cfg.FocusAreas = r.FocusAreasSnake
	}
	risk := r.RiskTolerance
	if risk == nil {
		risk = r.RiskToleranceSnake
	}
	if risk != nil {
		switch v := strings.ToLower(strings.TrimSpace(*risk)); v {
		case "conservative", "moderate", "aggressive":
			cfg.RiskTolerance = v
		}
	}
	if r.Delegator != nil {
		cfg.Delegator = strings.TrimSpace(*r.Delegator)
	}
	return cfg
}

func (a *Agent) Config() AgentConfig {
	return ParseAgentConfig(a.ConfigJSON)
}

func (a *Agent) HasWallet() bool {
	return strings.TrimSpace(a.WalletID) != ""
}

// AgentValues is what the analysis service sees of an agent.
type AgentValues struct {
	AgentID       string   `json:"agentId"`
	Name          string   `json:"name"`
	Values        []string `json:"values"`
	FocusAreas    []string `json:"focusAreas"`
	RiskTolerance string   `json:"riskTolerance"`
}

func (a *Agent) ValuesFor(cfg AgentConfig) AgentValues {
	return AgentValues{
		AgentID:       a.ID,
		Name:          a.Name,
		Values:        cfg.Values,
		FocusAreas:    cfg.FocusAreas,
		RiskTolerance: cfg.RiskTolerance,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
