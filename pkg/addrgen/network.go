package addrgen

import (
	"fmt"
	"strings"
)

// Network holds the encoding parameters of one Juno Cash network.
type Network struct {
	Name       string // Canonical name (mainnet, testnet, regtest)
	UFVKHRP    string // Human-readable part of unified full viewing keys
	AddressHRP string // Human-readable part of unified addresses
	CoinType   uint32 // ZIP 32 / SLIP 44 coin type
	URIScheme  string // ZIP 321 payment request scheme
}

// Supported networks.
var (
	MainNet = &Network{
		Name:       "mainnet",
		UFVKHRP:    "jview",
		AddressHRP: "j",
		CoinType:   8133,
		URIScheme:  "juno",
	}

	TestNet = &Network{
		Name:       "testnet",
		UFVKHRP:    "jviewtest",
		AddressHRP: "jtest",
		CoinType:   1,
		URIScheme:  "juno",
	}

	RegTest = &Network{
		Name:       "regtest",
		UFVKHRP:    "jviewregtest",
		AddressHRP: "jregtest",
		CoinType:   1,
		URIScheme:  "juno",
	}
)

var networks = []*Network{MainNet, TestNet, RegTest}

// NetworkByName looks up a network by name. "main" and "test" are accepted
// as short forms.
func NetworkByName(name string) (*Network, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "main":
		return MainNet, nil
	case "test":
		return TestNet, nil
	default:
		for _, net := range networks {
			if net.Name == n {
				return net, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// networkByUFVKHRP reports which network, if any, uses hrp for viewing keys.
func networkByUFVKHRP(hrp string) *Network {
	for _, net := range networks {
		if net.UFVKHRP == hrp {
			return net
		}
	}
	return nil
}

func (n *Network) String() string {
	return n.Name
}
