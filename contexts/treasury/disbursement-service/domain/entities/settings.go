package entities

import (
	"strings"
	"time"
)

// Settings are the operator-editable knobs, re-read on every cycle and tick.
type Settings struct {
	TokenRef           string
	AmountCeiling      string
	TreasuryCredential string
	DailyTarget        int
	LifetimeTarget     int
	UpdatedAt          time.Time
}

// RuntimeSettings is Settings plus the process-level constants the engine needs.
type RuntimeSettings struct {
	Settings
	Chain            string
	Decimals         int
	MinConfirmations int
	StopOnLifetime   bool
}

func (s RuntimeSettings) HasTreasuryCredential() bool {
	return strings.TrimSpace(s.TreasuryCredential) != ""
}
