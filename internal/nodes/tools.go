package nodes

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"

	"eino_dealer_bot/internal/core"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/services"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// InventoryNode runs the inventory search tool when the turn asks about cars.
// A failed search never fails the turn.
type InventoryNode struct {
	search       tool.InvokableTool
	counters     *metrics.Counters
	noCarsFound  string
	maxCarsShown int
}

// NewInventoryNode builds the node over repo
func NewInventoryNode(repo services.CarRepository, noCarsFound string, counters *metrics.Counters) (*InventoryNode, error) {
	search, err := InventorySearchTool(repo)
	if err != nil {
		return nil, fmt.Errorf("failed to build inventory tool: %w", err)
	}
	return &InventoryNode{search: search, counters: counters, noCarsFound: noCarsFound, maxCarsShown: 3}, nil
}

func (n *InventoryNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	log := logger.ForTurn(state.Message.UserID, state.TurnID)
	summary := state.Summary
	if state.Decision != nil {
		// the trade valuation bounds the price, the stored model may be the
		// customer's own car
		summary = nil
	}
	mergeFilters(&state.Filters, state.Intent.ExtractedData, summary)

	n.counters.InventorySearches.Add(1)
	cars, err := n.invoke(ctx, state.Filters)
	if err != nil {
		n.counters.InventoryFailures.Add(1)
		state.SearchFailed = true
		state.AddError(n.GetName(), err)
		log.Warn().Err(err).Msg("Inventory search failed, continuing without cars")
		return core.NodeOutput{}, nil
	}

	state.SearchApplied = true
	if len(cars) > n.maxCarsShown {
		cars = cars[:n.maxCarsShown]
	}
	state.Cars = cars
	log.Debug().Int("cars", len(cars)).Msg("Inventory searched")

	if len(cars) == 0 && !state.Filters.IsEmpty() && n.noCarsFound != "" {
		state.Candidate = n.noCarsFound
		state.Response = n.noCarsFound
		state.Source = core.SourceRule
		return core.NodeOutput{NextNode: "finalize"}, nil
	}
	return core.NodeOutput{}, nil
}

func (n *InventoryNode) invoke(ctx context.Context, filters pkg.CarFilters) ([]pkg.Car, error) {
	args, err := sonic.MarshalString(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}
	raw, err := n.search.InvokableRun(ctx, args)
	if err != nil {
		return nil, err
	}
	var result InventorySearchResult
	if err := sonic.UnmarshalString(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode inventory result: %w", err)
	}
	return result.Cars, nil
}

func (n *InventoryNode) GetName() string { return "inventory" }

func (n *InventoryNode) GetType() core.NodeType { return core.NodeTypeTools }

// mergeFilters fills the unset filters from the message, then from the
// stored preferred model
func mergeFilters(f *pkg.CarFilters, data pkg.ExtractedData, summary *pkg.TurnSummary) {
	if f.Model == "" {
		f.Model = data.CarModel
	}
	if f.Model == "" && summary != nil {
		f.Model = summary.PreferredModel
	}
	if f.Brand == "" && f.Model == "" {
		f.Brand = data.CarBrand
	}
	if f.PriceMin == 0 && data.PriceMin != nil {
		f.PriceMin = *data.PriceMin
	}
	if f.PriceMax == 0 && data.PriceMax != nil {
		f.PriceMax = *data.PriceMax
	}
	if data.Year != nil && f.YearMin == 0 {
		f.YearMin = *data.Year
	}
}
