package state

import (
	"fmt"
	"math/big"
	"strings"
)

func generatorStakeKey(generator [20]byte, owner [20]byte, token string) []byte {
	buf := make([]byte, 0, len(generatorStakePrefix)+40+len(token))
	buf = append(buf, generatorStakePrefix...)
	buf = append(buf, generator[:]...)
	buf = append(buf, owner[:]...)
	return append(buf, strings.ToUpper(token)...)
}

func generatorTotalKey(generator [20]byte, token string) []byte {
	return []byte(fmt.Sprintf(generatorTotalStakedKeyFormat, generator[:], strings.ToUpper(token)))
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount not allowed")
	}
	return m.KVPut(key, amount)
}

// GeneratorStakeGet returns the amount owner has staked with generator.
func (m *Manager) GeneratorStakeGet(generator [20]byte, owner [20]byte, token string) (*big.Int, error) {
	return m.loadAmount(generatorStakeKey(generator, owner, token))
}

// GeneratorStakePut stores the amount owner has staked with generator.
func (m *Manager) GeneratorStakePut(generator [20]byte, owner [20]byte, token string, amount *big.Int) error {
	return m.storeAmount(generatorStakeKey(generator, owner, token), amount)
}

// GeneratorTotalStaked returns the total of token staked with generator.
func (m *Manager) GeneratorTotalStaked(generator [20]byte, token string) (*big.Int, error) {
	return m.loadAmount(generatorTotalKey(generator, token))
}

// GeneratorTotalStakedPut stores the total of token staked with generator.
func (m *Manager) GeneratorTotalStakedPut(generator [20]byte, token string, amount *big.Int) error {
	return m.storeAmount(generatorTotalKey(generator, token), amount)
}
