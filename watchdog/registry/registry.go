package registry

import (
	"fmt"
	"os"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pelletier/go-toml/v2"

	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

const codespace = "registry"

var (
	ErrUnknownOracle = errorsmod.Register(codespace, 2, "oracle address not found in pool")
	ErrInvalidPool   = errorsmod.Register(codespace, 3, "invalid pool configuration")
)

// Pool is a static pool configuration: the oracles that may be monitored
// and the signer keys registered for each of them.
type Pool struct {
	Name    string   `toml:"name"`
	Oracles []Oracle `toml:"oracles"`
}

type Oracle struct {
	Address string   `toml:"address"`
	PubKeys []string `toml:"pubkeys"`
}

func Load(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidPool, "failed to read %s: %v", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Pool, error) {
	pool := new(Pool)
	if err := toml.Unmarshal(data, pool); err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidPool, "failed to parse TOML: %v", err)
	}

	if err := pool.validate(); err != nil {
		return nil, err
	}

	return pool, nil
}

func (p *Pool) validate() error {
	seen := make(map[string]struct{}, len(p.Oracles))
	for i, o := range p.Oracles {
		if o.Address == "" {
			return errorsmod.Wrapf(ErrInvalidPool, "oracle %d: empty address", i)
		}
		if _, ok := seen[o.Address]; ok {
			return errorsmod.Wrapf(ErrInvalidPool, "duplicate oracle %s", o.Address)
		}
		seen[o.Address] = struct{}{}

		if len(o.PubKeys) == 0 {
			return errorsmod.Wrapf(ErrInvalidPool, "oracle %s: no public keys", o.Address)
		}
		for j, key := range o.PubKeys {
			if _, err := DecodeHex(key); err != nil {
				return errorsmod.Wrapf(ErrInvalidPool, "oracle %s: public key %d: %v", o.Address, j, err)
			}
		}
	}

	return nil
}

// Lookup matches the address exactly.
func (p *Pool) Lookup(address string) (types.OracleIdentity, error) {
	for _, o := range p.Oracles {
		if o.Address != address {
			continue
		}

		identity := types.OracleIdentity{
			Address: o.Address,
			PubKeys: make([][]byte, 0, len(o.PubKeys)),
		}
		for _, key := range o.PubKeys {
			// validated on load
			raw, _ := DecodeHex(key)
			identity.PubKeys = append(identity.PubKeys, raw)
		}

		return identity, nil
	}

	return types.OracleIdentity{}, errorsmod.Wrapf(ErrUnknownOracle, "%s", address)
}

// DecodeHex accepts hex with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}

	return b, nil
}
