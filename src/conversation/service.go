package conversation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src/logger"
)

// systemSlots are the only slots the bot ever offers to ask about
var systemSlots = []pkg.Slot{
	pkg.SlotModel,
	pkg.SlotBrand,
	pkg.SlotBudget,
	pkg.SlotYear,
	pkg.SlotTradeIn,
	pkg.SlotPayment,
	pkg.SlotVisit,
}

// SummaryUpdate carries the fields a turn changed. Zero values leave the
// stored field untouched.
type SummaryUpdate struct {
	Intent         pkg.IntentType
	Stage          pkg.Stage
	LastAction     pkg.Action
	SlotsFilled    []pkg.Slot
	AskedSlots     []pkg.Slot
	ClearAsked     bool
	CustomerName   string
	NameUsed       bool
	HandoffAt      time.Time
	TradeValuation *int
	PreferredModel string
	OptOut         bool
}

// SummaryService reads and writes TurnSummary around each turn. Store
// failures never reach the caller.
type SummaryService struct {
	store ContextStore
	now   func() time.Time
}

// NewSummaryService wraps a context store
func NewSummaryService(store ContextStore) *SummaryService {
	return &SummaryService{store: store, now: time.Now}
}

// Load returns the stored summary, or a fresh one when absent or unreadable
func (s *SummaryService) Load(ctx context.Context, userID string) *pkg.TurnSummary {
	summary, err := s.store.Get(ctx, userID)
	return s.orFresh(summary, err, userID)
}

// Peek is Load without refreshing the stored expiry
func (s *SummaryService) Peek(ctx context.Context, userID string) *pkg.TurnSummary {
	summary, err := s.store.Peek(ctx, userID)
	return s.orFresh(summary, err, userID)
}

func (s *SummaryService) orFresh(summary *pkg.TurnSummary, err error, userID string) *pkg.TurnSummary {
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to load turn summary, starting empty")
		return pkg.NewTurnSummary()
	}
	if summary == nil {
		return pkg.NewTurnSummary()
	}
	if summary.SlotsFilled == nil {
		summary.SlotsFilled = []pkg.Slot{}
	}
	if summary.AskedSlots == nil {
		summary.AskedSlots = []pkg.Slot{}
	}
	return summary
}

// Save merges update into current, increments TurnCount and persists the
// result. The merged summary is returned even when the write fails.
func (s *SummaryService) Save(ctx context.Context, userID string, current *pkg.TurnSummary, update SummaryUpdate) *pkg.TurnSummary {
	next := cloneSummary(current)
	Merge(next, update)
	next.TurnCount++
	next.UpdatedAt = s.now()
	if update.NameUsed {
		turn := next.TurnCount
		next.NameLastUsedTurn = &turn
	}

	s.Put(ctx, userID, next)
	return next
}

// Put writes the summary as is, used by callers outside a turn
func (s *SummaryService) Put(ctx context.Context, userID string, summary *pkg.TurnSummary) {
	if err := s.store.Set(ctx, userID, summary); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to save turn summary")
	}
}

// Merge applies update to summary in place
func Merge(summary *pkg.TurnSummary, update SummaryUpdate) {
	if update.Intent != "" {
		summary.Intent = update.Intent
	}
	if update.Stage != "" {
		summary.Stage = update.Stage
	}
	if update.LastAction != "" {
		summary.LastAction = update.LastAction
	}
	for _, slot := range update.SlotsFilled {
		summary.FillSlot(slot)
	}
	if update.ClearAsked {
		ClearAskedSlots(summary)
	}
	for _, slot := range update.AskedSlots {
		MarkSlotAsked(summary, slot)
	}
	if update.CustomerName != "" {
		summary.CustomerName = update.CustomerName
	}
	if !update.HandoffAt.IsZero() {
		summary.HandoffAt = update.HandoffAt
	}
	if update.TradeValuation != nil {
		summary.TradeValuation = *update.TradeValuation
	}
	if update.PreferredModel != "" {
		summary.PreferredModel = update.PreferredModel
	}
	if update.OptOut {
		summary.OptedOut = true
	}
}

// MarkSlotAsked records that the bot asked for slot. Slots the bot never
// offers are ignored.
func MarkSlotAsked(summary *pkg.TurnSummary, slot pkg.Slot) {
	if !slices.Contains(systemSlots, slot) || WasSlotAsked(summary, slot) {
		return
	}
	summary.AskedSlots = append(summary.AskedSlots, slot)
}

// WasSlotAsked reports whether the bot already asked for slot
func WasSlotAsked(summary *pkg.TurnSummary, slot pkg.Slot) bool {
	return slices.Contains(summary.AskedSlots, slot)
}

// ClearAskedSlots forgets every asked slot, used when the customer's
// preferences change materially
func ClearAskedSlots(summary *pkg.TurnSummary) {
	summary.AskedSlots = []pkg.Slot{}
}

var slotLabels = map[pkg.Slot]string{
	pkg.SlotModel:   "modelo",
	pkg.SlotBrand:   "marca",
	pkg.SlotBudget:  "orçamento",
	pkg.SlotYear:    "ano",
	pkg.SlotTradeIn: "carro na troca",
	pkg.SlotPayment: "forma de pagamento",
	pkg.SlotVisit:   "visita",
}

// BuildContextSummary renders the digest given to the reasoner so it does
// not ask again for what is already known or already asked
func BuildContextSummary(summary *pkg.TurnSummary) string {
	var b strings.Builder
	b.WriteString("<resumo_cliente>\n")
	fmt.Fprintf(&b, "Etapa: %s\n", summary.Stage)
	if summary.CustomerName != "" {
		fmt.Fprintf(&b, "Nome: %s\n", summary.CustomerName)
	}
	if summary.PreferredModel != "" {
		fmt.Fprintf(&b, "Modelo de interesse: %s\n", summary.PreferredModel)
	}
	if len(summary.SlotsFilled) > 0 {
		fmt.Fprintf(&b, "Já informado: %s\n", joinSlots(summary.SlotsFilled))
	}
	if summary.TradeValuation > 0 {
		fmt.Fprintf(&b, "Avaliação do carro na troca: R$ %d\n", summary.TradeValuation)
	}
	fmt.Fprintf(&b, "Última ação: %s\n", summary.LastAction)
	if len(summary.AskedSlots) > 0 {
		fmt.Fprintf(&b, "Já perguntado, não repita: %s\n", joinSlots(summary.AskedSlots))
	}
	b.WriteString("</resumo_cliente>")
	return b.String()
}

func joinSlots(slots []pkg.Slot) string {
	labels := make([]string, 0, len(slots))
	for _, slot := range slots {
		if label, ok := slotLabels[slot]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, string(slot))
		}
	}
	return strings.Join(labels, ", ")
}
