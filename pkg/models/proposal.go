package models

import (
	"strings"
	"time"
)

const (
	StatusVoting = "voting"

	NoDescription = "No description provided."
)

// Realm is a governance container (a DAO) whose proposals are tracked.
type Realm struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Tracked   bool      `json:"tracked"`
	CreatedAt time.Time `json:"createdAt"`
}

type Tally struct {
	For     string `json:"for"`
	Against string `json:"against"`
	Abstain string `json:"abstain"`
}

// Proposal is what the proposal source reports for one realm.
type Proposal struct {
	Address      string     `json:"address"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Tally        Tally      `json:"tally"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	VotingEndsAt *time.Time `json:"votingEndsAt,omitempty"`
}

func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// IsActive reports whether the proposal is in voting and, when the window end
// is known, the window has not yet closed.
func (p *Proposal) IsActive(now time.Time) bool {
	if NormalizeStatus(p.Status) != StatusVoting {
		return false
	}
	if p.VotingEndsAt != nil && !p.VotingEndsAt.After(now) {
		return false
	}
	return true
}

// ProposalContext is the flattened view of a proposal handed to the engine.
type ProposalContext struct {
	Address      string     `json:"address"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	RealmName    string     `json:"realmName"`
	RealmAddress string     `json:"realmAddress"`
	Status       string     `json:"status"`
	Tally        Tally      `json:"tally"`
	VotingEndsAt *time.Time `json:"votingEndsAt,omitempty"`
}

func NewProposalContext(realm Realm, p Proposal) ProposalContext {
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		desc = NoDescription
	}
	return ProposalContext{
		Address:      p.Address,
		Title:        p.Title,
		Description:  desc,
		RealmName:    realm.Name,
		RealmAddress: realm.Address,
		Status:       NormalizeStatus(p.Status),
		Tally:        p.Tally,
		VotingEndsAt: p.VotingEndsAt,
	}
}
