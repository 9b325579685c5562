package transfer

import (
	"net/url"
	"strings"
)

// Explorers maps a chain to the base URL of its block explorer.
type Explorers map[ChainID]string

// DefaultExplorers returns the explorers of well-known EVM chains, keyed by
// EIP-155 chain id.
func DefaultExplorers() Explorers {
	return Explorers{
		1:        "https://etherscan.io",
		5:        "https://goerli.etherscan.io",
		10:       "https://optimistic.etherscan.io",
		56:       "https://bscscan.com",
		137:      "https://polygonscan.com",
		8453:     "https://basescan.org",
		42161:    "https://arbiscan.io",
		11155111: "https://sepolia.etherscan.io",
	}
}

// VeChainExplorers returns the VeChainThor explorers, keyed by genesis chain
// tag. Tags overlap EVM chain ids, so the two tables are never merged.
func VeChainExplorers() Explorers {
	return Explorers{
		0x4a: "https://explore.vechain.org",
		0x27: "https://explore-testnet.vechain.org",
	}
}

func (e Explorers) BaseURLFor(chain ChainID) (string, bool) {
	base, ok := e[chain]
	if !ok || base == "" {
		return "", false
	}
	return base, true
}

// Merge returns a copy of e with overrides applied.
func (e Explorers) Merge(overrides map[ChainID]string) Explorers {
	out := make(Explorers, len(e)+len(overrides))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// ExplorerLink builds {base}/tx/{hash}. It reports false when the chain has
// no explorer or its base URL is unusable.
func ExplorerLink(resolver ExplorerResolver, chain ChainID, txHash string) (string, bool) {
	if resolver == nil || txHash == "" {
		return "", false
	}
	base, ok := resolver.BaseURLFor(chain)
	if !ok {
		return "", false
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return strings.TrimRight(base, "/") + "/tx/" + txHash, true
}
