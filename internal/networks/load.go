package networks

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type fileConfig struct {
	Default  string          `mapstructure:"default"`
	Networks []networkConfig `mapstructure:"networks"`
}

type networkConfig struct {
	ID              string           `mapstructure:"id"`
	Name            string           `mapstructure:"name"`
	ChainID         int64            `mapstructure:"chain_id"`
	RPCURL          string           `mapstructure:"rpc_url"`
	ExplorerURL     string           `mapstructure:"explorer_url"`
	Testnet         bool             `mapstructure:"testnet"`
	Aliases         []string         `mapstructure:"aliases"`
	HardhatName     string           `mapstructure:"hardhat_name"`
	MinInitialPrice string           `mapstructure:"min_initial_price"`
	Liquidity       *liquidityConfig `mapstructure:"liquidity"`
}

type liquidityConfig struct {
	DefaultETHAmount string `mapstructure:"default_eth_amount"`
	TokenPercentage  int    `mapstructure:"token_percentage"`
	FeeTier          int    `mapstructure:"fee_tier"`
	MinETHBalance    string `mapstructure:"min_eth_balance"`
}

const defaultMinInitialPrice = "0.001"

// Load reads a registry from a YAML, JSON or TOML file. An empty path yields Defaults().
func Load(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("default", BaseSepolia)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode networks file: %w", err)
	}
	if len(cfg.Networks) == 0 {
		return nil, fmt.Errorf("networks file %s declares no networks", path)
	}

	nets := make([]Network, 0, len(cfg.Networks))
	for _, nc := range cfg.Networks {
		n, err := nc.toNetwork()
		if err != nil {
			return nil, err
		}
		nets = append(nets, n)
	}

	return NewRegistry(cfg.Default, nets...)
}

func (nc networkConfig) toNetwork() (Network, error) {
	minPrice := nc.MinInitialPrice
	if minPrice == "" {
		minPrice = defaultMinInitialPrice
	}
	price, err := decimal.NewFromString(minPrice)
	if err != nil {
		return Network{}, fmt.Errorf("network %s: invalid min_initial_price: %w", nc.ID, err)
	}

	n := Network{
		ID:              nc.ID,
		Name:            nc.Name,
		ChainID:         nc.ChainID,
		RPCURL:          nc.RPCURL,
		ExplorerURL:     nc.ExplorerURL,
		Testnet:         nc.Testnet,
		Aliases:         nc.Aliases,
		HardhatName:     nc.HardhatName,
		MinInitialPrice: price,
	}

	if nc.Liquidity != nil {
		ethAmount, err := decimal.NewFromString(nc.Liquidity.DefaultETHAmount)
		if err != nil {
			return Network{}, fmt.Errorf("network %s: invalid default_eth_amount: %w", nc.ID, err)
		}
		minBalance := decimal.Zero
		if nc.Liquidity.MinETHBalance != "" {
			if minBalance, err = decimal.NewFromString(nc.Liquidity.MinETHBalance); err != nil {
				return Network{}, fmt.Errorf("network %s: invalid min_eth_balance: %w", nc.ID, err)
			}
		}
		n.Liquidity = &LiquiditySettings{
			DefaultETHAmount: ethAmount,
			TokenPercentage:  nc.Liquidity.TokenPercentage,
			FeeTier:          nc.Liquidity.FeeTier,
			MinETHBalance:    minBalance,
		}
	}

	return n, nil
}
