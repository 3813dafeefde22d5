package wallet

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/stacks"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

// Wallet is one local wallet file with both network encodings derived.
type Wallet struct {
	Filename       string `json:"filename"`
	Label          string `json:"label"`
	Address        string `json:"address"`
	Network        string `json:"network"`
	TestnetAddress string `json:"testnetAddress"`
	MainnetAddress string `json:"mainnetAddress"`
}

// walletFile is the on-disk shape of a wallet file.
type walletFile struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

// Set holds every wallet loaded at startup. Read-only after LoadDir.
type Set struct {
	Files   []string
	Wallets []Wallet
}

// LoadDir reads every *.json wallet file under dir. Malformed files are
// skipped with a warning; a missing directory yields an empty set.
func LoadDir(dir string) *Set {
	log := logger.Named("wallet")
	set := &Set{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("wallet directory unreadable", slog.String("dir", dir), slog.Any("error", err))
		return set
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		set.Files = append(set.Files, entry.Name())

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn("skipping unreadable wallet file", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}

		var wf walletFile
		if err := json.Unmarshal(content, &wf); err != nil {
			log.Warn("skipping malformed wallet file", slog.String("file", entry.Name()),
				slog.Any("error", xerrors.Wrap(xerrors.CodeWalletFile, err, "parse wallet file")))
			continue
		}
		if wf.Address == "" {
			log.Warn("skipping wallet file without address", slog.String("file", entry.Name()))
			continue
		}

		version, _, err := stacks.DecodeAddress(wf.Address)
		if err != nil {
			log.Warn("skipping wallet file with invalid address", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		network, err := stacks.NetworkOf(version)
		if err != nil {
			log.Warn("skipping wallet file with unknown address version", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		mainnet, testnet, err := stacks.Variants(wf.Address)
		if err != nil {
			log.Warn("skipping wallet file", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}

		label := wf.Label
		if label == "" {
			label = strings.TrimSuffix(entry.Name(), ".json")
		}

		set.Wallets = append(set.Wallets, Wallet{
			Filename:       entry.Name(),
			Label:          label,
			Address:        wf.Address,
			Network:        string(network),
			TestnetAddress: testnet,
			MainnetAddress: mainnet,
		})
	}

	sort.Slice(set.Wallets, func(i, j int) bool {
		return set.Wallets[i].Filename < set.Wallets[j].Filename
	})

	return set
}

// Addresses returns every encoding of every loaded wallet.
func (s *Set) Addresses() []string {
	seen := make(map[string]struct{}, len(s.Wallets)*2)
	var out []string
	for _, w := range s.Wallets {
		for _, addr := range []string{w.MainnetAddress, w.TestnetAddress} {
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	return out
}
