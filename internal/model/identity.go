package model

import (
	"fmt"
	"strings"
)

// AssetType enumerates the kinds of assets that can be registered.
type AssetType string

const (
	AssetVehicle AssetType = "vehicle"
	AssetPet     AssetType = "pet"
	AssetIoT     AssetType = "iot-device"
)

// ValidAssetTypes lists every accepted asset type, in display order.
var ValidAssetTypes = []AssetType{AssetVehicle, AssetPet, AssetIoT}

// MaxIdentityIDLen bounds the subject identifier so a single oversized field
// cannot fill session history and ledger rows with caller-controlled garbage.
const MaxIdentityIDLen = 128

// IdentityRequest is a proposed asset identity submitted for approval.
type IdentityRequest struct {
	ID       string         `json:"id"`
	Type     AssetType      `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the structural requirements on a submission.
func (r IdentityRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if len(r.ID) > MaxIdentityIDLen {
		return fmt.Errorf("id must be at most %d characters", MaxIdentityIDLen)
	}
	for _, t := range ValidAssetTypes {
		if r.Type == t {
			return nil
		}
	}
	return fmt.Errorf("type must be one of %v, got %q", ValidAssetTypes, r.Type)
}
