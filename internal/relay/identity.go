package relay

import (
	"context"
	"log/slog"

	"github.com/StacksTasker/x402-stacks-agent-console/internal/marketplace"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/stacks"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

// Identity is the resolved agent identity set: local wallet addresses in both
// network encodings plus the remote agent ids registered against them.
// Read-only after resolution.
type Identity struct {
	addresses map[string]struct{}
	agentIDs  map[string]struct{}
}

// AgentDirectory is the part of the marketplace client identity resolution needs.
type AgentDirectory interface {
	ListAgents(ctx context.Context) ([]marketplace.Agent, error)
}

// ResolveIdentity fetches the remote agent directory once and matches its
// registered wallet addresses against the local wallet set. A directory
// failure is non-fatal: the relay continues with zero resolved agent ids and
// only wallet-address matching until restart.
func ResolveIdentity(ctx context.Context, directory AgentDirectory, walletAddresses []string) *Identity {
	log := logger.Named("identity")

	id := &Identity{
		addresses: make(map[string]struct{}, len(walletAddresses)),
		agentIDs:  make(map[string]struct{}),
	}
	for _, addr := range walletAddresses {
		id.addresses[addr] = struct{}{}
	}

	agents, err := directory.ListAgents(ctx)
	if err != nil {
		log.Warn("agent directory unavailable, continuing with wallet addresses only", slog.Any("error", err))
		return id
	}

	for _, agent := range agents {
		if agent.WalletAddress == "" {
			continue
		}
		mainnet, testnet, err := stacks.Variants(agent.WalletAddress)
		if err != nil {
			continue
		}
		if _, ok := id.addresses[mainnet]; !ok {
			if _, ok := id.addresses[testnet]; !ok {
				continue
			}
		}
		id.agentIDs[agent.ID] = struct{}{}
	}

	log.Info("identity resolved",
		slog.Int("wallet_addresses", len(id.addresses)),
		slog.Int("agent_ids", len(id.agentIDs)),
	)
	return id
}

// NewIdentity builds an Identity from already-known sets. Used by tests and
// by callers that resolve out of band.
func NewIdentity(addresses, agentIDs []string) *Identity {
	id := &Identity{
		addresses: make(map[string]struct{}, len(addresses)),
		agentIDs:  make(map[string]struct{}, len(agentIDs)),
	}
	for _, addr := range addresses {
		id.addresses[addr] = struct{}{}
	}
	for _, agentID := range agentIDs {
		id.agentIDs[agentID] = struct{}{}
	}
	return id
}

// IsOurTask reports whether a snapshot belongs to a locally-controlled
// identity: its assignee or poster matches a resolved agent id or any local
// wallet address encoding. Pure predicate, no side effects.
func (id *Identity) IsOurTask(task marketplace.Task) bool {
	if id == nil {
		return false
	}
	if task.AssignedAgent != "" {
		if _, ok := id.agentIDs[task.AssignedAgent]; ok {
			return true
		}
		if _, ok := id.addresses[task.AssignedAgent]; ok {
			return true
		}
	}
	if task.PosterAddress != "" {
		if _, ok := id.addresses[task.PosterAddress]; ok {
			return true
		}
	}
	return false
}

// AgentIDCount returns the number of resolved remote agent ids.
func (id *Identity) AgentIDCount() int {
	return len(id.agentIDs)
}
