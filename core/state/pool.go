package state

import (
	"fmt"

	"lockdrop/native/pool"
)

func poolDefinitionKey(addr [20]byte) []byte {
	buf := make([]byte, 0, len(poolDefinitionPrefix)+len(addr))
	buf = append(buf, poolDefinitionPrefix...)
	return append(buf, addr[:]...)
}

// PoolDefinitionGet loads a registered pool definition.
func (m *Manager) PoolDefinitionGet(addr [20]byte) (*pool.Definition, bool, error) {
	def := new(pool.Definition)
	ok, err := m.KVGet(poolDefinitionKey(addr), def)
	if err != nil || !ok {
		return nil, ok, err
	}
	return def.Clone(), true, nil
}

// PoolDefinitionPut stores a pool definition and records it in the pool index.
func (m *Manager) PoolDefinitionPut(def *pool.Definition) error {
	if def == nil {
		return fmt.Errorf("state: pool definition required")
	}
	if err := m.KVPut(poolDefinitionKey(def.Address), def.Clone()); err != nil {
		return err
	}
	_, err := m.KVAppend(poolIndexKeyBytes, def.Address[:])
	return err
}

// PoolAddresses lists every registered pool.
func (m *Manager) PoolAddresses() ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(poolIndexKeyBytes, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		var addr [20]byte
		copy(addr[:], item)
		out = append(out, addr)
	}
	return out, nil
}
