package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Promptonauts/ballot/pkg/models"
)

// ProposalSource lists the proposals of one realm.
type ProposalSource struct {
	c *jsonClient
}

func NewProposalSource(opts Options) *ProposalSource {
	return &ProposalSource{c: newJSONClient("proposals", opts)}
}

func (p *ProposalSource) ListProposals(ctx context.Context, realm models.Realm) ([]models.Proposal, error) {
	var resp struct {
		Proposals []models.Proposal `json:"proposals"`
	}
	path := "/realms/" + url.PathEscape(realm.Address) + "/proposals"
	if err := p.c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Proposals, nil
}

// Analyzer asks the analysis model for a recommendation.
type Analyzer struct {
	c *jsonClient
}

func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{c: newJSONClient("analysis", opts)}
}

func (a *Analyzer) Analyze(ctx context.Context, proposal models.ProposalContext, values models.AgentValues) (*models.Recommendation, error) {
	req := struct {
		Proposal models.ProposalContext `json:"proposal"`
		Agent    models.AgentValues     `json:"agent"`
	}{proposal, values}

	var rec models.Recommendation
	if err := a.c.do(ctx, http.MethodPost, "/analyze", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// TxBuilder builds unsigned vote transactions.
type TxBuilder struct {
	c *jsonClient
}

func NewTxBuilder(opts Options) *TxBuilder {
	return &TxBuilder{c: newJSONClient("txbuilder", opts)}
}

func (b *TxBuilder) BuildVoteTx(ctx context.Context, req models.VoteTxRequest) (string, error) {
	var resp struct {
		Transaction string `json:"transaction"`
	}
	if err := b.c.do(ctx, http.MethodPost, "/transactions/vote", req, &resp); err != nil {
		return "", err
	}
	if resp.Transaction == "" {
		return "", fmt.Errorf("txbuilder: empty transaction")
	}
	return resp.Transaction, nil
}

// Signer signs and submits transactions with a custodial wallet. It answers
// 429 when its own rate limit is hit.
type Signer struct {
	c *jsonClient
}

func NewSigner(opts Options) *Signer {
	return &Signer{c: newJSONClient("signer", opts)}
}

func (s *Signer) SignAndSubmit(ctx context.Context, walletID, agentID, tx string) (string, error) {
	req := struct {
		AgentID     string `json:"agentId"`
		Transaction string `json:"transaction"`
	}{agentID, tx}

	var resp struct {
		Signature string `json:"signature"`
	}
	path := "/wallets/" + url.PathEscape(walletID) + "/sign-and-send"
	if err := s.c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("signer: empty signature")
	}
	return resp.Signature, nil
}

// Publisher posts vote reasoning to the social graph.
type Publisher struct {
	c *jsonClient
}

func NewPublisher(opts Options) *Publisher {
	return &Publisher{c: newJSONClient("social", opts)}
}

func (p *Publisher) Publish(ctx context.Context, post models.SocialPost) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := p.c.do(ctx, http.MethodPost, "/posts", post, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
