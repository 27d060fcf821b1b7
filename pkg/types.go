package pkg

import (
	"slices"
	"time"
)

// Core types shared by the turn pipeline

// IntentType is the category assigned to an inbound customer message
type IntentType string

const (
	IntentCarSearch     IntentType = "CAR_SEARCH"
	IntentPriceQuery    IntentType = "PRICE_QUERY"
	IntentSellerRequest IntentType = "SELLER_REQUEST"
	IntentTradeIn       IntentType = "TRADE_IN"
	IntentAppointment   IntentType = "APPOINTMENT"
	IntentComplaint     IntentType = "COMPLAINT"
	IntentExternalLink  IntentType = "EXTERNAL_LINK"
	IntentStockQuery    IntentType = "STOCK_QUERY"
	IntentGreeting      IntentType = "GREETING"
	IntentConversation  IntentType = "CONVERSATION"
)

// Confidence is a coarse confidence bucket for a detected intent
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ExtractedData holds the slots pulled out of a single message
type ExtractedData struct {
	CarModel string `json:"car_model,omitempty"`
	CarBrand string `json:"car_brand,omitempty"`
	PriceMin *int   `json:"price_min,omitempty"`
	PriceMax *int   `json:"price_max,omitempty"`
	Year     *int   `json:"year,omitempty"`
}

// HasPrice reports whether any price bound was extracted
func (d ExtractedData) HasPrice() bool {
	return d.PriceMin != nil || d.PriceMax != nil
}

// DetectedIntent is produced fresh for every message and never persisted as is
type DetectedIntent struct {
	Type          IntentType    `json:"type"`
	Confidence    Confidence    `json:"confidence"`
	ExtractedData ExtractedData `json:"extracted_data"`
}

// Stage is the position of the customer in the sales funnel
type Stage string

const (
	StageCurious   Stage = "curious"
	StageComparing Stage = "comparing"
	StageObjection Stage = "objection"
	StageReady     Stage = "ready"
)

// Action is the last action the pipeline took for a customer
type Action string

const (
	ActionCars     Action = "cars"
	ActionSeller   Action = "seller"
	ActionAsk      Action = "ask"
	ActionInfo     Action = "info"
	ActionGreeting Action = "greeting"
	ActionNone     Action = "none"
)

// Slot is a named piece of information the bot may want to collect
type Slot string

const (
	SlotModel   Slot = "model"
	SlotBrand   Slot = "brand"
	SlotBudget  Slot = "budget"
	SlotYear    Slot = "year"
	SlotTradeIn Slot = "trade_in"
	SlotPayment Slot = "payment"
	SlotVisit   Slot = "visit"
)

// TurnSummary is the per-customer conversational state kept between turns
type TurnSummary struct {
	Intent      IntentType `json:"intent,omitempty"`
	Stage       Stage      `json:"stage"`
	SlotsFilled []Slot     `json:"slots_filled"`
	AskedSlots  []Slot     `json:"asked_slots"`
	LastAction  Action     `json:"last_action"`
	TurnCount   int        `json:"turn_count"`
	UpdatedAt   time.Time  `json:"updated_at"`

	CustomerName     string    `json:"customer_name,omitempty"`
	NameLastUsedTurn *int      `json:"name_last_used_turn,omitempty"`
	HandoffAt        time.Time `json:"handoff_at,omitempty"`
	TradeValuation   int       `json:"trade_valuation,omitempty"`
	PreferredModel   string    `json:"preferred_model,omitempty"`
	OptedOut         bool      `json:"opted_out,omitempty"`
	LastFollowUpAt   time.Time `json:"last_follow_up_at,omitempty"`
}

// NewTurnSummary returns the summary used for a customer with no stored state
func NewTurnSummary() *TurnSummary {
	return &TurnSummary{
		Stage:       StageCurious,
		SlotsFilled: []Slot{},
		AskedSlots:  []Slot{},
		LastAction:  ActionNone,
	}
}

// HasSlot reports whether the slot is already filled
func (s *TurnSummary) HasSlot(slot Slot) bool {
	return slices.Contains(s.SlotsFilled, slot)
}

// FillSlot adds the slot to the filled set
func (s *TurnSummary) FillSlot(slot Slot) {
	if !s.HasSlot(slot) {
		s.SlotsFilled = append(s.SlotsFilled, slot)
	}
}

// HandoffActive reports whether a human handoff happened within the window
func (s *TurnSummary) HandoffActive(now time.Time, window time.Duration) bool {
	if s.HandoffAt.IsZero() {
		return false
	}
	return now.Sub(s.HandoffAt) < window
}

// ResponseRecord is one delivered response kept for repetition checks
type ResponseRecord struct {
	Hash string    `json:"hash"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// CircuitState is the state of a circuit breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitRecord is the persisted state of one dependency's breaker
type CircuitRecord struct {
	State       CircuitState `json:"state"`
	Failures    int          `json:"failures"`
	Successes   int          `json:"successes"`
	LastFailure time.Time    `json:"last_failure,omitempty"`
	OpenedAt    time.Time    `json:"opened_at,omitempty"`
}

// Decision is an immediate response chosen by the rule gate
type Decision struct {
	Rule             string `json:"rule"`
	Action           Action `json:"action"`
	Response         string `json:"response,omitempty"`
	SkipExternalCall bool   `json:"skip_external_call"`
	PriceFilter      *int   `json:"price_filter,omitempty"`
	OptOut           bool   `json:"opt_out,omitempty"`
}

// ValidationResult is the outcome of running the response policy on a candidate
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Response        string   `json:"response"`
	WasReformulated bool     `json:"was_reformulated"`
	Violations      []string `json:"violations,omitempty"`
	NameUsed        bool     `json:"name_used"`
}

// Car is a vehicle returned by the inventory collaborator
type Car struct {
	ID           string `json:"id"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Version      string `json:"version,omitempty"`
	Year         int    `json:"year"`
	Price        int    `json:"price"`
	Mileage      int    `json:"mileage"`
	Color        string `json:"color,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

// CarFilters are the canonical search filters passed to the inventory
type CarFilters struct {
	Brand    string `json:"brand,omitempty"`
	Model    string `json:"model,omitempty"`
	YearMin  int    `json:"year_min,omitempty"`
	YearMax  int    `json:"year_max,omitempty"`
	PriceMin int    `json:"price_min,omitempty"`
	PriceMax int    `json:"price_max,omitempty"`
}

// IsEmpty reports whether no filter is set
func (f CarFilters) IsEmpty() bool {
	return f == CarFilters{}
}

// InboundMessage is a customer message handed to the pipeline
type InboundMessage struct {
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	SenderName string    `json:"sender_name,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
