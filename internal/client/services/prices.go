package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

// DefaultPriceLimit is the board size when the caller does not ask for one.
const DefaultPriceLimit = 20

// MarketPriceService reads the public market price board.
type MarketPriceService interface {
	// Latest returns the newest observations, optionally for one crop.
	Latest(ctx context.Context, crop string, limit int) ([]models.MarketPrice, error)
}

type marketPriceService struct {
	tables gateway.TableGateway
}

func NewMarketPriceService(tables gateway.TableGateway) MarketPriceService {
	return &marketPriceService{tables: tables}
}

func (s *marketPriceService) Latest(ctx context.Context, crop string, limit int) ([]models.MarketPrice, error) {
	if limit <= 0 {
		limit = DefaultPriceLimit
	}

	q := gateway.Query{
		Table: common.TableMarketPrices,
		Order: []gateway.Order{{Column: "date_recorded", Desc: true}},
		Limit: limit,
	}
	if crop != "" {
		q = q.Where("crop_name", crop)
	}

	rows, err := s.tables.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("market prices: %w", err)
	}
	return gateway.DecodeRows[models.MarketPrice](rows)
}
