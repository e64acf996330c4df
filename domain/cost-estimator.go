package domain

import (
	"fmt"
	"math"
)

// FillByQuantity walks levels best-price-first and fills up to targetQty.
// It returns the filled quantity and the total notional spent. When the
// book holds less than targetQty, filled stays below the target and the
// notional reflects only the liquidity actually found.
func FillByQuantity(levels []PriceLevel, targetQty float64) (filledQty, notional float64, err error) {
	for _, lvl := range levels {
		remaining := targetQty - filledQty
		if remaining <= 0 {
			break
		}
		if err := checkLevel(lvl); err != nil {
			return 0, 0, err
		}

		if lvl.Amount >= remaining {
			filledQty = targetQty
			notional += remaining * lvl.Price
			break
		}

		filledQty += lvl.Amount
		notional += lvl.Amount * lvl.Price
	}

	if err := checkFinite(filledQty, notional); err != nil {
		return 0, 0, err
	}
	return filledQty, notional, nil
}

// FillByBudget walks levels best-price-first and spends at most limit
// notional. The last level may be taken fractionally, in which case the
// spend is exactly the limit. Exhausting the book first yields whatever
// was affordable; the notional never exceeds the limit.
func FillByBudget(levels []PriceLevel, limit float64) (filledQty, notional float64, err error) {
	for _, lvl := range levels {
		headroom := limit - notional
		if headroom <= 0 {
			break
		}
		if err := checkLevel(lvl); err != nil {
			return 0, 0, err
		}

		levelNotional := lvl.Price * lvl.Amount
		if headroom-levelNotional >= 0 {
			filledQty += lvl.Amount
			notional += levelNotional
			continue
		}

		filledQty += headroom / lvl.Price
		notional = limit
		break
	}

	if err := checkFinite(filledQty, notional); err != nil {
		return 0, 0, err
	}
	return filledQty, notional, nil
}

func checkLevel(lvl PriceLevel) error {
	if lvl.Price <= 0 || !isFinite(lvl.Price) || !isFinite(lvl.Amount) {
		return fmt.Errorf("%w: level price=%v amount=%v", ErrCorruptBookData, lvl.Price, lvl.Amount)
	}
	return nil
}

func checkFinite(filledQty, notional float64) error {
	if !isFinite(filledQty) || !isFinite(notional) {
		return fmt.Errorf("%w: non-finite fill result", ErrCorruptBookData)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
