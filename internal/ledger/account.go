package ledger

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeCash AccountSubType = iota

	// System sub-types
	SubTypeMarketPool
	SubTypeFeeDrip
	SubTypeFeeBrc
	SubTypeFeeTeam
	SubTypeFeeLP
	SubTypeTreasury

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalWithdrawals
)

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"SATS": 1,
	}
	idToAsset = map[AssetID]string{
		1: "SATS",
	}
)

// AssetSats is the settlement asset every market prices and pays in.
const AssetSats AssetID = 1

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, market id for pool vaults
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for a user's cash account
func NewUserAccountKey(userID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  SubTypeCash,
		AssetID:  assetID,
	}
}

// NewMarketPoolKey creates a key for a market's pool vault
func NewMarketPoolKey(marketID uint64, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.BigEndian.PutUint64(entityID[8:], marketID)
	return AccountKey{
		Scope:    AccountScopeSystem,
		EntityID: entityID,
		SubType:  SubTypeMarketPool,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for a non-market system account
// (fee buckets, treasury)
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// MarketID recovers the market id from a pool vault key.
func (k AccountKey) MarketID() uint64 {
	return binary.BigEndian.Uint64(k.EntityID[8:])
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		if k.SubType == SubTypeMarketPool {
			return fmt.Sprintf("system:pool:%d:%s", k.MarketID(), assetName)
		}
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath. Snapshots store
// balances keyed by path, so recovery round-trips through this.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	if len(parts) < 3 {
		return AccountKey{}, fmt.Errorf("malformed account path: %q", path)
	}

	assetID, ok := GetAssetID(parts[len(parts)-1])
	if !ok {
		return AccountKey{}, fmt.Errorf("unknown asset in account path %q", path)
	}

	switch parts[0] {
	case "user":
		if len(parts) != 4 || parts[2] != "cash" {
			return AccountKey{}, fmt.Errorf("malformed user account path: %q", path)
		}
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("bad user id in account path %q: %w", path, err)
		}
		return NewUserAccountKey(uid, assetID), nil

	case "system":
		if parts[1] == "pool" {
			if len(parts) != 4 {
				return AccountKey{}, fmt.Errorf("malformed pool account path: %q", path)
			}
			marketID, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return AccountKey{}, fmt.Errorf("bad market id in account path %q: %w", path, err)
			}
			return NewMarketPoolKey(marketID, assetID), nil
		}
		subType, err := parseSubType(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
		}
		return NewSystemAccountKey(subType, assetID), nil

	case "external":
		subType, err := parseSubType(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
		}
		return NewExternalAccountKey(subType, assetID), nil
	}

	return AccountKey{}, fmt.Errorf("unknown account scope in path %q", path)
}

func parseSubType(name string) (AccountSubType, error) {
	switch name {
	case "cash":
		return SubTypeCash, nil
	case "pool":
		return SubTypeMarketPool, nil
	case "fee_drip":
		return SubTypeFeeDrip, nil
	case "fee_brc":
		return SubTypeFeeBrc, nil
	case "fee_team":
		return SubTypeFeeTeam, nil
	case "fee_lp":
		return SubTypeFeeLP, nil
	case "treasury":
		return SubTypeTreasury, nil
	case "deposits":
		return SubTypeExternalDeposits, nil
	case "withdrawals":
		return SubTypeExternalWithdrawals, nil
	}
	return 0, fmt.Errorf("unknown account sub-type %q", name)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCash:
		return "cash"
	case SubTypeMarketPool:
		return "pool"
	case SubTypeFeeDrip:
		return "fee_drip"
	case SubTypeFeeBrc:
		return "fee_brc"
	case SubTypeFeeTeam:
		return "fee_team"
	case SubTypeFeeLP:
		return "fee_lp"
	case SubTypeTreasury:
		return "treasury"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	default:
		return "unknown"
	}
}
