package purchases

import (
	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/pkg/checked"
)

// Quote splits the price of amount units into the platform fee and the owner's
// share. fee = total * feeBps / 10000, rounded down.
func Quote(amount, pricePerUnit uint64, feeRateBps uint16) (total, fee, toOwner uint64, err error) {
	total, err = checked.Mul(amount, pricePerUnit)
	if err != nil {
		return 0, 0, 0, err
	}
	scaled, err := checked.Mul(total, uint64(feeRateBps))
	if err != nil {
		return 0, 0, 0, err
	}
	fee, err = checked.Div(scaled, domain.MaxFeeRateBps)
	if err != nil {
		return 0, 0, 0, err
	}
	toOwner, err = checked.Sub(total, fee)
	if err != nil {
		return 0, 0, 0, err
	}
	return total, fee, toOwner, nil
}
