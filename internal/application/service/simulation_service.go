package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SimulatedAsset is one what-if holding: quantity of a symbol hypothetically
// bought at the given unit value.
type SimulatedAsset struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// SimulationRequest is a basket of hypothetical holdings to evaluate.
type SimulationRequest struct {
	Assets []SimulatedAsset `json:"assets"`
}

// SimulationResult compares every simulated asset against its live price.
type SimulationResult struct {
	Total            decimal.Decimal `json:"total"`
	BestAsset        string          `json:"bestAsset"`
	BestPerformance  decimal.Decimal `json:"bestPerformance"`
	WorstAsset       string          `json:"worstAsset"`
	WorstPerformance decimal.Decimal `json:"worstPerformance"`
}

type assetEvaluation struct {
	symbol      string
	performance decimal.Decimal
	worth       decimal.Decimal
}

// SimulationService evaluates hypothetical wallets against live prices.
type SimulationService struct {
	quotes PriceLookup
}

func NewSimulationService(quotes PriceLookup) *SimulationService {
	return &SimulationService{quotes: quotes}
}

// Simulate prices every requested asset live and reports total current worth
// plus the best and worst performers. Any symbol failure fails the whole
// simulation, since a partial answer would be misleading.
func (s *SimulationService) Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error) {
	hundred := decimal.NewFromInt(100)

	evaluations := make([]assetEvaluation, 0, len(req.Assets))
	for _, sim := range req.Assets {
		quote, err := s.quotes.LookupAndFetchPrice(ctx, sim.Symbol)
		if err != nil {
			return SimulationResult{}, err
		}

		// performance = (current - value) / value * 100, percent with 2 decimals
		performance := quote.PriceUSD.Sub(sim.Value).
			DivRound(sim.Value, 4).
			Mul(hundred).
			Round(2)

		evaluations = append(evaluations, assetEvaluation{
			symbol:      sim.Symbol,
			performance: performance,
			worth:       quote.PriceUSD.Mul(sim.Quantity),
		})
	}

	var result SimulationResult
	total := decimal.Zero
	for i, eval := range evaluations {
		total = total.Add(eval.worth)
		if i == 0 || eval.performance.GreaterThan(result.BestPerformance) {
			result.BestAsset, result.BestPerformance = eval.symbol, eval.performance
		}
		if i == 0 || eval.performance.LessThan(result.WorstPerformance) {
			result.WorstAsset, result.WorstPerformance = eval.symbol, eval.performance
		}
	}
	result.Total = total.Round(2)

	log.Info().
		Int("assets", len(evaluations)).
		Str("total", result.Total.String()).
		Msg("wallet simulation evaluated")
	return result, nil
}
