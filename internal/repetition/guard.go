// Package repetition keeps the bot from sending near-copies of its recent
// responses to the same customer.
package repetition

import (
	"context"

	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/llm"
	"eino_dealer_bot/src/logger"
)

const instruction = "Esta resposta é quase igual a uma mensagem já enviada. Produza uma resposta substancialmente diferente, com o mesmo significado e a mesma chamada para ação."

// Result is the outcome of one check
type Result struct {
	Text         string
	Duplicate    bool
	ExactMatch   bool
	Similarity   float64
	Reformulated bool
}

// Guard compares a candidate with the last delivered responses
type Guard struct {
	reasoner    reasoner.Reasoner
	threshold   float64
	window      int
	temperature float32
}

// NewGuard builds a guard. window is how many recent records are compared
// and temperature is used for the single rewrite.
func NewGuard(r reasoner.Reasoner, threshold float64, window int, temperature float32) *Guard {
	if window <= 0 {
		window = 5
	}
	return &Guard{reasoner: r, threshold: threshold, window: window, temperature: temperature}
}

// IsDuplicate reports whether candidate matches a recent record by hash or
// by char-trigram similarity above the threshold. history is newest first.
func (g *Guard) IsDuplicate(candidate string, history []pkg.ResponseRecord) (dup, exact bool, best float64) {
	if len(history) > g.window {
		history = history[:g.window]
	}

	hash := textsim.Hash(candidate)
	for _, rec := range history {
		if rec.Hash == hash {
			return true, true, 1
		}
		if sim := textsim.CharTrigramSimilarity(candidate, rec.Text); sim > best {
			best = sim
		}
	}
	return best > g.threshold, false, best
}

// Check asks for one rewrite when candidate repeats a recent response. The
// rewrite is used even when it still collides; without a usable rewrite the
// candidate is kept.
func (g *Guard) Check(ctx context.Context, candidate string, history []pkg.ResponseRecord) Result {
	dup, exact, sim := g.IsDuplicate(candidate, history)
	result := Result{Text: candidate, Duplicate: dup, ExactMatch: exact, Similarity: sim}
	if !dup || g.reasoner == nil {
		return result
	}

	messages, err := llm.FormatReformulation(ctx, instruction, "", candidate)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build repetition rewrite prompt")
		return result
	}

	completion, err := g.reasoner.Complete(ctx, messages, reasoner.Options{Temperature: reasoner.Float32(g.temperature)})
	if err != nil {
		logger.Warn().Err(err).Float64("similarity", sim).Msg("Repetition rewrite failed, keeping candidate")
		return result
	}

	result.Text = completion.Content
	result.Reformulated = true
	logger.Debug().
		Bool("exact", exact).
		Float64("similarity", sim).
		Msg("Candidate repeated a recent response, rewritten")
	return result
}
