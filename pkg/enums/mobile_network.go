package enums

import (
	"fmt"
	"strings"
)

// MobileNetwork identifies the mobile money carrier used for a payment.
type MobileNetwork string

const (
	MobileNetworkFlooz  MobileNetwork = "FLOOZ"
	MobileNetworkTMoney MobileNetwork = "TMONEY"
)

var validMobileNetworks = []MobileNetwork{
	MobileNetworkFlooz,
	MobileNetworkTMoney,
}

func (m MobileNetwork) String() string {
	return string(m)
}

func (m MobileNetwork) IsValid() bool {
	for _, candidate := range validMobileNetworks {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMobileNetwork converts raw input into a MobileNetwork. The gateway
// expects uppercase carrier names, so input is normalized first.
func ParseMobileNetwork(value string) (MobileNetwork, error) {
	normalized := MobileNetwork(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validMobileNetworks {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mobile network %q", value)
}
