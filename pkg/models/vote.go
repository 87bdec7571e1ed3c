package models

import (
	"strings"
	"time"
)

type VoteDirection string

const (
	VoteFor     VoteDirection = "for"
	VoteAgainst VoteDirection = "against"
	VoteAbstain VoteDirection = "abstain"
)

// ParseVoteDirection maps FOR/AGAINST/ABSTAIN in any case. Anything else is
// treated as an abstention.
func ParseVoteDirection(s string) VoteDirection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "for":
		return VoteFor
	case "against":
		return VoteAgainst
	default:
		return VoteAbstain
	}
}

// Recommendation is the structured answer of the analysis service.
type Recommendation struct {
	Vote       string   `json:"vote"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Conditions []string `json:"conditions,omitempty"`
}

func (r *Recommendation) Direction() VoteDirection {
	return ParseVoteDirection(r.Vote)
}

func (r *Recommendation) NormalizedConfidence() float64 {
	return clampUnit(r.Confidence)
}

// VoteRecord is the durable, idempotent outcome for one (agent, proposal).
type VoteRecord struct {
	ID              string        `json:"id"`
	AgentID         string        `json:"agentId"`
	ProposalAddress string        `json:"proposalAddress"`
	RealmAddress    string        `json:"realmAddress,omitempty"`
	Vote            VoteDirection `json:"vote"`
	Reasoning       string        `json:"reasoning"`
	Confidence      float64       `json:"confidence"`
	TxSignature     *string       `json:"txSignature,omitempty"`
	SocialPostID    *string       `json:"socialPostId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// AnalysisRecord keeps the raw recommendation for audit. Rewritten on every
// analysis of the same pair.
type AnalysisRecord struct {
	ID              string         `json:"id"`
	AgentID         string         `json:"agentId"`
	ProposalAddress string         `json:"proposalAddress"`
	Recommendation  Recommendation `json:"recommendation"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type VoteTxRequest struct {
	ProposalAddress string        `json:"proposal"`
	RealmAddress    string        `json:"realm"`
	Voter           string        `json:"voter"`
	Vote            VoteDirection `json:"vote"`
	Delegator       string        `json:"delegator,omitempty"`
}

type SocialPost struct {
	ProfileID       string        `json:"profileId"`
	AgentID         string        `json:"agentId"`
	AgentName       string        `json:"agentName"`
	ProposalAddress string        `json:"proposal"`
	ProposalTitle   string        `json:"proposalTitle"`
	Vote            VoteDirection `json:"vote"`
	Reasoning       string        `json:"reasoning"`
	Confidence      float64       `json:"confidence"`
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
