package config

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

const codespace = "watchdog"

var (
	ErrInvalidOracle   = errorsmod.Register(codespace, 2, "invalid oracle address")
	ErrInvalidCommands = errorsmod.Register(codespace, 3, "invalid recovery commands")
	ErrInvalidSetting  = errorsmod.Register(codespace, 4, "invalid setting")
)

// ReportText is the operator facing line for a fatal configuration error.
func ReportText(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOracle):
		return "Invalid oracle address in .env"
	case errors.Is(err, ErrInvalidCommands):
		return "Invalid commands in .env"
	default:
		return "Invalid configuration: " + err.Error()
	}
}
