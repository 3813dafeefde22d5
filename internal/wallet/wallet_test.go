package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StacksTasker/x402-stacks-agent-console/internal/stacks"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func validAddress(t *testing.T, version byte, seed byte) string {
	t.Helper()
	var hash [stacks.Hash160Size]byte
	for i := range hash {
		hash[i] = seed
	}
	return stacks.EncodeAddress(version, hash)
}

func TestLoadDirReadsValidWallets(t *testing.T) {
	dir := t.TempDir()
	addr := validAddress(t, stacks.VersionTestnetP2PKH, 0x42)
	writeFile(t, dir, "agent.json", `{"label":"agent","address":"`+addr+`"}`)

	set := LoadDir(dir)

	require.Len(t, set.Wallets, 1)
	w := set.Wallets[0]
	assert.Equal(t, "agent.json", w.Filename)
	assert.Equal(t, "agent", w.Label)
	assert.Equal(t, addr, w.Address)
	assert.Equal(t, "testnet", w.Network)
	assert.Equal(t, addr, w.TestnetAddress)
	assert.NotEmpty(t, w.MainnetAddress)
	assert.NotEqual(t, w.TestnetAddress, w.MainnetAddress)
}

func TestLoadDirDefaultsLabelToFilename(t *testing.T) {
	dir := t.TempDir()
	addr := validAddress(t, stacks.VersionMainnetP2PKH, 0x11)
	writeFile(t, dir, "treasury.json", `{"address":"`+addr+`"}`)

	set := LoadDir(dir)

	require.Len(t, set.Wallets, 1)
	assert.Equal(t, "treasury", set.Wallets[0].Label)
	assert.Equal(t, "mainnet", set.Wallets[0].Network)
}

func TestLoadDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	addr := validAddress(t, stacks.VersionTestnetP2PKH, 0x42)
	writeFile(t, dir, "good.json", `{"address":"`+addr+`"}`)
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "empty.json", `{"label":"no address"}`)
	writeFile(t, dir, "badaddr.json", `{"address":"SPnotarealaddress"}`)
	writeFile(t, dir, "notes.txt", `ignored`)

	set := LoadDir(dir)

	// Every *.json file is listed, even the skipped ones.
	assert.ElementsMatch(t, []string{"good.json", "broken.json", "empty.json", "badaddr.json"}, set.Files)
	require.Len(t, set.Wallets, 1)
	assert.Equal(t, "good.json", set.Wallets[0].Filename)
}

func TestLoadDirMissingDirectory(t *testing.T) {
	set := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, set.Files)
	assert.Empty(t, set.Wallets)
}

func TestLoadDirSortsByFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"address":"`+validAddress(t, stacks.VersionTestnetP2PKH, 0x01)+`"}`)
	writeFile(t, dir, "a.json", `{"address":"`+validAddress(t, stacks.VersionTestnetP2PKH, 0x02)+`"}`)

	set := LoadDir(dir)

	require.Len(t, set.Wallets, 2)
	assert.Equal(t, "a.json", set.Wallets[0].Filename)
	assert.Equal(t, "b.json", set.Wallets[1].Filename)
}

func TestAddressesDeduplicates(t *testing.T) {
	dir := t.TempDir()
	addr := validAddress(t, stacks.VersionTestnetP2PKH, 0x42)
	// Two files holding the same wallet.
	writeFile(t, dir, "one.json", `{"address":"`+addr+`"}`)
	writeFile(t, dir, "two.json", `{"address":"`+addr+`"}`)

	set := LoadDir(dir)

	require.Len(t, set.Wallets, 2)
	addrs := set.Addresses()
	assert.Len(t, addrs, 2)
	assert.Contains(t, addrs, addr)
}
