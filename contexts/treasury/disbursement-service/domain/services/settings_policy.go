package services

import (
	"strings"

	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	domainerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
)

// ValidateSettings enforces the same rules the admin config endpoint applies on write.
func ValidateSettings(settings entities.Settings) error {
	if strings.TrimSpace(settings.TokenRef) == "" {
		return domainerrors.ErrInvalidSettings
	}
	if _, err := AmountUpperBound(strings.TrimSpace(settings.AmountCeiling)); err != nil {
		return domainerrors.ErrInvalidSettings
	}
	if settings.DailyTarget < 0 || settings.LifetimeTarget < 0 {
		return domainerrors.ErrInvalidSettings
	}
	return nil
}

// MaskCredential keeps the first six and last four characters of a credential.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 10 {
		return "********"
	}
	return credential[:6] + "..." + credential[len(credential)-4:]
}
