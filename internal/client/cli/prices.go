package cli

import "context"

func (a *App) Prices(ctx context.Context, crop string, limit int) error {
	prices, err := a.prices.Latest(ctx, crop, limit)
	if err != nil {
		return err
	}
	writePrices(a.out, prices)
	return nil
}
