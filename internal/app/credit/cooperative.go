package credit

import (
	"fmt"

	"github.com/loka-network/loka/internal/domain"
)

// NodeFilter narrows a registry query for the cooperative router.
type NodeFilter struct {
	Model            string
	Region           string
	MinTokensPerSec  float64
	MaxBatteryStress float64
}

// NodeFinder is the subset of the mesh registry the cooperative router
// needs, kept small here to avoid an import cycle between credit and mesh.
type NodeFinder interface {
	Find(filter NodeFilter) []domain.MeshNode
}

// CooperativeRequest describes one unit of work a node wants the mesh to
// perform on its behalf, paid for out of its own credit balance.
type CooperativeRequest struct {
	NodeID             string
	Model              string
	Region             string
	EstimatedInputTok  int
	EstimatedOutputTok int
}

// rate table: credits per 1k tokens, input and output combined at a flat
// rate since cooperative work is valued in the mesh's own currency, not EUR.
const creditsPer1kTokens = 1.0

// EstimateCredits converts a token estimate into the cooperative router's
// flat credit rate.
func EstimateCredits(inputTok, outputTok int) float64 {
	return float64(inputTok+outputTok) / 1000.0 * creditsPer1kTokens
}

// CooperativeRouter reserves credits, asks the node registry for a
// candidate, and releases the reservation if none is found.
type CooperativeRouter struct {
	ledger *Ledger
	nodes  NodeFinder
}

// NewCooperativeRouter wires a cooperative router against a ledger and a
// node finder (normally the mesh registry).
func NewCooperativeRouter(ledger *Ledger, nodes NodeFinder) *CooperativeRouter {
	return &CooperativeRouter{ledger: ledger, nodes: nodes}
}

// Route reserves the estimated cost, looks for a matching node, and either
// returns the best match (leaving the reservation in place for the caller
// to convert into a spend once work completes) or releases the reservation
// and returns ErrNoMatchingNode.
func (r *CooperativeRouter) Route(req CooperativeRequest) (domain.MeshNode, error) {
	estimate := EstimateCredits(req.EstimatedInputTok, req.EstimatedOutputTok)

	balance, err := r.ledger.Balance(req.NodeID)
	if err != nil {
		return domain.MeshNode{}, fmt.Errorf("cooperative: read balance: %w", err)
	}
	if balance < estimate {
		return domain.MeshNode{}, domain.ErrInsufficientCredits
	}

	if _, err := r.ledger.Record(req.NodeID, domain.CreditReserve, estimate, "cooperative reserve"); err != nil {
		return domain.MeshNode{}, fmt.Errorf("cooperative: reserve: %w", err)
	}

	candidates := r.nodes.Find(NodeFilter{
		Model:            req.Model,
		Region:           req.Region,
		MaxBatteryStress: 60,
	})
	if len(candidates) == 0 {
		if _, relErr := r.ledger.Record(req.NodeID, domain.CreditRelease, estimate, "cooperative release: no nodes"); relErr != nil {
			return domain.MeshNode{}, fmt.Errorf("cooperative: release after no match: %w", relErr)
		}
		return domain.MeshNode{}, domain.ErrNoMatchingNode
	}

	best := candidates[0]
	bestScore := best.TokensPerSecond*10 - best.BatteryStress
	for _, c := range candidates[1:] {
		score := c.TokensPerSecond*10 - c.BatteryStress
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	return best, nil
}
