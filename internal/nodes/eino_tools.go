package nodes

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// InventorySearchToolName is the name the reasoner would call the tool by
const InventorySearchToolName = "inventory_search"

// InventorySearchResult is the tool output
type InventorySearchResult struct {
	Cars  []pkg.Car `json:"cars"`
	Count int       `json:"count"`
}

// InventorySearchTool exposes the car repository as an eino tool over
// pkg.CarFilters
func InventorySearchTool(repo services.CarRepository) (tool.InvokableTool, error) {
	return utils.InferTool(InventorySearchToolName, "Search the dealership stock by brand, model, year and price range",
		func(ctx context.Context, filters pkg.CarFilters) (*InventorySearchResult, error) {
			logger.Debug().
				Str("brand", filters.Brand).
				Str("model", filters.Model).
				Int("price_max", filters.PriceMax).
				Msg("Searching inventory")

			cars, err := repo.Search(ctx, filters)
			if err != nil {
				return nil, err
			}
			return &InventorySearchResult{Cars: cars, Count: len(cars)}, nil
		})
}
