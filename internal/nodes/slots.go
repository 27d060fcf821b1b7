package nodes

import (
	"regexp"
	"strings"

	"eino_dealer_bot/internal/policy"
	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
)

// slotQuestions recognizes which slot a bot question asks for, on folded text
var slotQuestions = []struct {
	slot pkg.Slot
	re   *regexp.Regexp
}{
	{pkg.SlotBudget, regexp.MustCompile(`\b(orcamento|quanto (voce )?(pretende|quer|pode) (investir|pagar|gastar)|faixa de (preco|valor)|valor maximo)\b`)},
	{pkg.SlotTradeIn, regexp.MustCompile(`\b(troca|usado na negociacao)\b`)},
	{pkg.SlotModel, regexp.MustCompile(`\b(qual|que) (modelo|carro)\b`)},
	{pkg.SlotBrand, regexp.MustCompile(`\b(qual|que) marca\b`)},
	{pkg.SlotYear, regexp.MustCompile(`\b(qual|que) ano\b|\bano (minimo|de fabricacao)\b`)},
	{pkg.SlotPayment, regexp.MustCompile(`\b(a vista|financ\w*|forma de pagamento|entrada)\b`)},
	{pkg.SlotVisit, regexp.MustCompile(`\b(visita|agendar|test drive|vir (ate|na) loja|passar (aqui|na loja))\b`)},
}

// askedSlots lists the slots the question sentences of response ask for
func askedSlots(response string) []pkg.Slot {
	var slots []pkg.Slot
	for _, sentence := range policy.SplitSentences(response) {
		if !strings.Contains(sentence, "?") {
			continue
		}
		folded := textsim.Fold(sentence)
		for _, q := range slotQuestions {
			if q.re.MatchString(folded) {
				slots = append(slots, q.slot)
			}
		}
	}
	return slots
}

// filledSlots lists the slots the customer's message answered
func filledSlots(detected pkg.DetectedIntent) []pkg.Slot {
	var slots []pkg.Slot
	data := detected.ExtractedData
	if data.CarModel != "" {
		slots = append(slots, pkg.SlotModel)
	}
	if data.CarBrand != "" {
		slots = append(slots, pkg.SlotBrand)
	}
	if data.HasPrice() {
		slots = append(slots, pkg.SlotBudget)
	}
	if data.Year != nil {
		slots = append(slots, pkg.SlotYear)
	}
	switch detected.Type {
	case pkg.IntentTradeIn:
		slots = append(slots, pkg.SlotTradeIn)
	case pkg.IntentAppointment:
		slots = append(slots, pkg.SlotVisit)
	}
	return slots
}

// deriveStage moves the customer along the funnel. It never moves back to
// curious once the customer started comparing.
func deriveStage(current pkg.Stage, detected pkg.DetectedIntent, summary *pkg.TurnSummary) pkg.Stage {
	switch detected.Type {
	case pkg.IntentSellerRequest, pkg.IntentAppointment:
		return pkg.StageReady
	case pkg.IntentComplaint:
		return pkg.StageObjection
	}

	hasModel := detected.ExtractedData.CarModel != "" || summary.HasSlot(pkg.SlotModel)
	hasBudget := detected.ExtractedData.HasPrice() || summary.HasSlot(pkg.SlotBudget)
	if current == pkg.StageCurious && hasModel && (hasBudget || detected.Type == pkg.IntentPriceQuery) {
		return pkg.StageComparing
	}
	if current == "" {
		return pkg.StageCurious
	}
	return current
}
