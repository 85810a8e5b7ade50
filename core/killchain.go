package core

import "fmt"

// KillChainStep is one of the seven phases of the intrusion kill chain.
// The zero value is not a valid step.
type KillChainStep string

const (
	KillChainReconnaissance KillChainStep = "1"
	KillChainWeaponisation  KillChainStep = "2"
	KillChainDelivery       KillChainStep = "3"
	KillChainExploitation   KillChainStep = "4"
	KillChainInstallation   KillChainStep = "5"
	KillChainC2             KillChainStep = "6"
	KillChainObjectives     KillChainStep = "7"
)

// KillChainSteps lists every step in kill-chain order
var KillChainSteps = []KillChainStep{
	KillChainReconnaissance,
	KillChainWeaponisation,
	KillChainDelivery,
	KillChainExploitation,
	KillChainInstallation,
	KillChainC2,
	KillChainObjectives,
}

// Label returns the human-readable name of the step, or "" for an invalid step
func (k KillChainStep) Label() string {
	switch k {
	case KillChainReconnaissance:
		return "Reconnaissance"
	case KillChainWeaponisation:
		return "Weaponisation"
	case KillChainDelivery:
		return "Delivery"
	case KillChainExploitation:
		return "Exploitation"
	case KillChainInstallation:
		return "Installation"
	case KillChainC2:
		return "C2"
	case KillChainObjectives:
		return "Objectives"
	default:
		return ""
	}
}

// IsValid checks if the step is one of the seven known codes
func (k KillChainStep) IsValid() bool {
	return k.Label() != ""
}

// String returns the raw code
func (k KillChainStep) String() string {
	return string(k)
}

// ParseKillChainStep converts a code into a step, rejecting unknown codes
func ParseKillChainStep(code string) (KillChainStep, error) {
	step := KillChainStep(code)
	if !step.IsValid() {
		return "", NewValidationError("killchain", fmt.Sprintf("invalid kill chain stage %q: must be one of 1-7", code))
	}
	return step, nil
}
