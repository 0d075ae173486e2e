package models

import (
	"crypto/rand"
	"math/big"
	"time"
)

// APIKeyLength is the exact length of every operator API key.
const APIKeyLength = 32

// MaxOperatorNameLength bounds operator names.
const MaxOperatorNameLength = 32

// MasterOperatorName is the reserved name under which the master operator
// row is materialized. The unique index on Name makes first-use creation
// race-safe: concurrent synthesis attempts collapse to one row.
const MasterOperatorName = "master"

// Operator is an authenticated principal. Operators are issued a random
// 32-character API key and carry three independent permission bits.
type Operator struct {
	UUID            string    `gorm:"primaryKey;size:36" json:"uuid"`
	Name            string    `gorm:"uniqueIndex;not null;size:32" json:"name"`
	APIKey          string    `gorm:"uniqueIndex;not null;size:32" json:"api_key"`
	ManageOperators bool      `gorm:"default:false" json:"manage_operators"`
	ManageBlacklist bool      `gorm:"default:false" json:"manage_blacklist"`
	IsClient        bool      `gorm:"default:false" json:"is_client"`
	Disabled        bool      `gorm:"default:false" json:"disabled"`
	Created         time.Time `gorm:"autoCreateTime" json:"created"`
	Updated         time.Time `gorm:"autoUpdateTime" json:"updated"`
}

// TableName returns the table name for Operator.
func (Operator) TableName() string {
	return "operators"
}

// IsMaster reports whether this is the materialized master operator row.
func (o *Operator) IsMaster() bool {
	return o.Name == MasterOperatorName
}

// Redacted returns a copy safe to show to callers without operator
// management rights: the API key is blanked.
func (o *Operator) Redacted() *Operator {
	c := *o
	c.APIKey = ""
	return &c
}

const apiKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateAPIKey returns a random 32-character alphanumeric API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, APIKeyLength)
	max := big.NewInt(int64(len(apiKeyAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = apiKeyAlphabet[n.Int64()]
	}
	return string(buf), nil
}
