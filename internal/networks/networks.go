// Package networks holds the immutable registry of supported EVM networks and
// their liquidity automation settings. A Registry is built once at startup and
// shared read-only by the services that need it.
package networks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	BaseSepolia = "base-sepolia"
	BaseMainnet = "base-mainnet"
)

// LiquiditySettings configure the pool created for a freshly launched token.
type LiquiditySettings struct {
	DefaultETHAmount decimal.Decimal `json:"defaultEthAmount"`
	TokenPercentage  int             `json:"tokenPercentage"`
	FeeTier          int             `json:"feeTier"`
	MinETHBalance    decimal.Decimal `json:"minEthBalance"`
}

type Network struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	ChainID         int64              `json:"chainId"`
	RPCURL          string             `json:"rpcUrl"`
	ExplorerURL     string             `json:"explorerUrl"`
	Testnet         bool               `json:"testnet"`
	Aliases         []string           `json:"aliases,omitempty"`
	HardhatName     string             `json:"hardhatName,omitempty"`
	MinInitialPrice decimal.Decimal    `json:"minInitialPrice"`
	Liquidity       *LiquiditySettings `json:"liquidity,omitempty"`
}

// HardhatNetwork is the network name understood by the deployment scripts.
func (n Network) HardhatNetwork() string {
	if n.HardhatName != "" {
		return n.HardhatName
	}
	return n.ID
}

// AddressURL links an address on the network's block explorer.
func (n Network) AddressURL(address string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/address/" + address
}

// TxURL links a transaction on the network's block explorer.
func (n Network) TxURL(hash string) string {
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}

type Registry struct {
	networks  map[string]Network
	aliases   map[string]string
	defaultID string
}

// NewRegistry copies the given networks into a new registry. The caller's
// values are not retained, so later mutation of them has no effect.
func NewRegistry(defaultID string, nets ...Network) (*Registry, error) {
	r := &Registry{
		networks:  make(map[string]Network, len(nets)),
		aliases:   make(map[string]string),
		defaultID: defaultID,
	}

	for _, n := range nets {
		if n.ID == "" {
			return nil, fmt.Errorf("network id is required")
		}
		if n.ChainID <= 0 {
			return nil, fmt.Errorf("network %s: chain id must be positive", n.ID)
		}
		if _, exists := r.networks[n.ID]; exists {
			return nil, fmt.Errorf("network %s declared twice", n.ID)
		}
		if n.Liquidity != nil {
			l := *n.Liquidity
			if l.TokenPercentage <= 0 || l.TokenPercentage > 100 {
				return nil, fmt.Errorf("network %s: token percentage must be in (0, 100]", n.ID)
			}
			if !l.DefaultETHAmount.IsPositive() {
				return nil, fmt.Errorf("network %s: default eth amount must be positive", n.ID)
			}
			n.Liquidity = &l
		}
		n.Aliases = append([]string(nil), n.Aliases...)
		r.networks[n.ID] = n
		for _, alias := range n.Aliases {
			r.aliases[alias] = n.ID
		}
	}

	if _, ok := r.networks[defaultID]; !ok {
		return nil, fmt.Errorf("default network %q is not registered", defaultID)
	}
	return r, nil
}

// Get resolves a network by id or alias. The returned value is a copy.
func (r *Registry) Get(id string) (Network, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}
	n, ok := r.networks[id]
	if !ok {
		return Network{}, false
	}
	return clone(n), true
}

// Resolve is Get with the default network substituted for an empty id.
func (r *Registry) Resolve(id string) (Network, bool) {
	if strings.TrimSpace(id) == "" {
		return r.Default(), true
	}
	return r.Get(id)
}

func (r *Registry) Default() Network {
	return clone(r.networks[r.defaultID])
}

// List returns every network sorted by id.
func (r *Registry) List() []Network {
	out := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(n Network) Network {
	if n.Liquidity != nil {
		l := *n.Liquidity
		n.Liquidity = &l
	}
	n.Aliases = append([]string(nil), n.Aliases...)
	return n
}

// Defaults returns the Base testnet and mainnet configuration.
func Defaults() *Registry {
	r, err := NewRegistry(BaseSepolia, DefaultNetworks()...)
	if err != nil {
		panic(err)
	}
	return r
}

func DefaultNetworks() []Network {
	minPrice := decimal.RequireFromString("0.001")
	return []Network{
		{
			ID:              BaseSepolia,
			Name:            "Base Sepolia",
			ChainID:         84532,
			RPCURL:          "https://sepolia.base.org",
			ExplorerURL:     "https://sepolia.basescan.org",
			Testnet:         true,
			MinInitialPrice: minPrice,
			Liquidity: &LiquiditySettings{
				DefaultETHAmount: decimal.RequireFromString("0.05"),
				TokenPercentage:  15,
				FeeTier:          3000,
				MinETHBalance:    decimal.RequireFromString("0.1"),
			},
		},
		{
			ID:              BaseMainnet,
			Name:            "Base",
			ChainID:         8453,
			RPCURL:          "https://mainnet.base.org",
			ExplorerURL:     "https://basescan.org",
			Aliases:         []string{"base"},
			HardhatName:     "base",
			MinInitialPrice: minPrice,
			Liquidity: &LiquiditySettings{
				DefaultETHAmount: decimal.RequireFromString("0.5"),
				TokenPercentage:  10,
				FeeTier:          3000,
				MinETHBalance:    decimal.RequireFromString("1.0"),
			},
		},
	}
}
