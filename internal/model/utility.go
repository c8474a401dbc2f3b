package model

import "strings"

type UtilityType string

const (
	UtilityElectricity UtilityType = "Electricity"
	UtilityGas         UtilityType = "Gas"
	UtilityWater       UtilityType = "Water"
)

// UtilityTypes lists every supported utility in display order.
var UtilityTypes = []UtilityType{UtilityElectricity, UtilityGas, UtilityWater}

func (u UtilityType) String() string { return string(u) }

func (u UtilityType) Valid() bool {
	return u == UtilityElectricity || u == UtilityGas || u == UtilityWater
}

// ParseUtilityType is case-insensitive and returns (value, true) on success.
func ParseUtilityType(s string) (UtilityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "electricity":
		return UtilityElectricity, true
	case "gas":
		return UtilityGas, true
	case "water":
		return UtilityWater, true
	default:
		return "", false
	}
}
