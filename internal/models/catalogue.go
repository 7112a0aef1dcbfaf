package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/peercash/internal/apperrors"
)

// Fixed catalogue of allowed request sizes
type Denomination string

const (
	Amount10  Denomination = "AMOUNT_10"
	Amount20  Denomination = "AMOUNT_20"
	Amount50  Denomination = "AMOUNT_50"
	Amount100 Denomination = "AMOUNT_100"
)

var denominationValues = map[Denomination]int64{
	Amount10:  10,
	Amount20:  20,
	Amount50:  50,
	Amount100: 100,
}

func ParseDenomination(s string) (Denomination, error) {
	d := Denomination(s)
	if _, ok := denominationValues[d]; !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidDenomination, s)
	}
	return d, nil
}

// Face value of the denomination, zero for unknown ones
func (d Denomination) Value() decimal.Decimal {
	return decimal.NewFromInt(denominationValues[d])
}

// Payment rail the money moves through off-platform
type Platform string

const (
	PlatformMPesa        Platform = "MPESA"
	PlatformAirtelMoney  Platform = "AIRTEL_MONEY"
	PlatformMTNMoMo      Platform = "MTN_MOMO"
	PlatformBankTransfer Platform = "BANK_TRANSFER"
)

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformMPesa, PlatformAirtelMoney, PlatformMTNMoMo, PlatformBankTransfer:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidPlatform, s)
	}
}
