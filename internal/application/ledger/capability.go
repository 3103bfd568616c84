package ledger

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const (
	capabilityDomain = "carbon_credits"
	capabilityPrefix = "cap_"
	seedSize         = 32
)

// Capability is the ledger's keyless signing identity. It is the only authority
// accepted for project vault withdrawals and for minting a project's credits
// once the project exists. Only this package can construct one.
type Capability struct {
	address string
}

// Address is the identity the capability signs as.
func (c Capability) Address() string {
	return c.address
}

// IsZero reports whether c was never derived.
func (c Capability) IsZero() bool {
	return c.address == ""
}

func deriveCapability(namespace string, seed []byte) Capability {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(capabilityDomain))
	h.Write([]byte(namespace))
	h.Write(seed)
	return Capability{address: capabilityPrefix + hex.EncodeToString(h.Sum(nil))}
}

func newSeed() ([]byte, error) {
	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// capabilitySeed keeps the derivation seed out of the public ledger record.
type capabilitySeed struct {
	Namespace string `gorm:"column:namespace;primaryKey"`
	Seed      []byte `gorm:"column:seed;not null"`
}

func (capabilitySeed) TableName() string {
	return "LedgerCapabilities"
}
