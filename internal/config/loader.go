package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// BotConfig represents the structure of config.yaml
type BotConfig struct {
	Store     StoreConfig  `yaml:"store"`
	Hours     HoursConfig  `yaml:"hours"`
	FAQ       FAQAnswers   `yaml:"faq"`
	Responses Responses    `yaml:"responses"`
	Policy    PolicyLimits `yaml:"policy"`
}

// StoreConfig identifies the dealership
type StoreConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	Address  string `yaml:"address"`
}

// HoursConfig holds the weekly schedule and the hours answer templates
type HoursConfig struct {
	// Schedule is keyed by lowercase English weekday ("monday")
	Schedule     map[string]DayHours `yaml:"schedule"`
	SpecialRules []SpecialRule       `yaml:"special_rules"`
	Templates    HoursTemplates      `yaml:"templates"`
}

// DayHours is the opening window of one weekday, "HH:MM" strings
type DayHours struct {
	Open   string `yaml:"open"`
	Close  string `yaml:"close"`
	Closed bool   `yaml:"closed"`
}

// SpecialRule is an annotation appended to hours answers while active.
// From and Until are inclusive "YYYY-MM-DD" dates; empty means unbounded.
type SpecialRule struct {
	Text  string `yaml:"text"`
	From  string `yaml:"from"`
	Until string `yaml:"until"`
}

// HoursTemplates are the seven day-aware hours answers. Placeholders:
// {day}, {hours}, {open}, {close}, {store}.
type HoursTemplates struct {
	Saturday     string `yaml:"saturday"`
	Sunday       string `yaml:"sunday"`
	Weekday      string `yaml:"weekday"`
	Tomorrow     string `yaml:"tomorrow"`
	NotYetOpen   string `yaml:"not_yet_open"`
	ClosedToday  string `yaml:"closed_today"`
	OpenNow      string `yaml:"open_now"`
	OpenPhrase   string `yaml:"open_phrase"`
	ClosedPhrase string `yaml:"closed_phrase"`
}

// FAQAnswers are the canned answers per FAQ category
type FAQAnswers struct {
	Financing string `yaml:"financing"`
	Location  string `yaml:"location"`
	Warranty  string `yaml:"warranty"`
	TestDrive string `yaml:"test_drive"`
	Payment   string `yaml:"payment"`
}

// Responses holds the scripted texts used outside the reasoner
type Responses struct {
	Greetings          []string `yaml:"greetings"`
	Farewells          []string `yaml:"farewells"`
	Goodbyes           []string `yaml:"goodbyes"`
	Engagement         []string `yaml:"engagement"`
	QuestionCTAs       []string `yaml:"question_ctas"`
	StatementCTAs      []string `yaml:"statement_ctas"`
	FollowUps          []string `yaml:"follow_ups"`
	Unavailable        string   `yaml:"unavailable"`
	PassiveFallback    string   `yaml:"passive_fallback"`
	EngagingFallback   string   `yaml:"engaging_fallback"`
	RepetitionFallback string   `yaml:"repetition_fallback"`
	HandoffConfirm     string   `yaml:"handoff_confirm"`
	NoCarsFound        string   `yaml:"no_cars_found"`
}

// PolicyLimits tunes the response policy
type PolicyLimits struct {
	MaxChars             int     `yaml:"max_chars"`
	TruncateMargin       int     `yaml:"truncate_margin"`
	MaxSentences         int     `yaml:"max_sentences"`
	NameCooldownTurns    int     `yaml:"name_cooldown_turns"`
	PassiveMaxChars      int     `yaml:"passive_max_chars"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	HandoffWindowMinutes int     `yaml:"handoff_window_minutes"`
	HistorySize          int     `yaml:"history_size"`
}

// HandoffWindow is how long passive mode lasts after a human handoff
func (p PolicyLimits) HandoffWindow() time.Duration {
	return time.Duration(p.HandoffWindowMinutes) * time.Minute
}

// LoadBotConfig loads configuration from config.yaml on top of the defaults
func LoadBotConfig(filepath string) (*BotConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultBotConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	if _, err := config.Location(); err != nil {
		return nil, err
	}
	return config, nil
}

// Location resolves the store timezone
func (c *BotConfig) Location() (*time.Location, error) {
	if c.Store.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Store.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid store timezone %q: %w", c.Store.Timezone, err)
	}
	return loc, nil
}

// DayHoursFor returns the schedule of a weekday; unknown days are closed
func (h HoursConfig) DayHoursFor(day time.Weekday) DayHours {
	dh, ok := h.Schedule[strings.ToLower(day.String())]
	if !ok {
		return DayHours{Closed: true}
	}
	return dh
}

// ActiveSpecialRules returns the texts of the rules active on now's date
func (h HoursConfig) ActiveSpecialRules(now time.Time) []string {
	var out []string
	today := now.Format(time.DateOnly)
	for _, r := range h.SpecialRules {
		if r.From != "" && today < r.From {
			continue
		}
		if r.Until != "" && today > r.Until {
			continue
		}
		out = append(out, r.Text)
	}
	return out
}

// OpenMinute returns the opening time as minutes since midnight
func (d DayHours) OpenMinute() (int, error) {
	return parseClock(d.Open)
}

// CloseMinute returns the closing time as minutes since midnight
func (d DayHours) CloseMinute() (int, error) {
	return parseClock(d.Close)
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// DefaultBotConfig returns the built-in configuration used for any missing key
func DefaultBotConfig() *BotConfig {
	weekday := DayHours{Open: "08:00", Close: "18:00"}
	return &BotConfig{
		Store: StoreConfig{
			Name:     "Loja",
			Timezone: "America/Sao_Paulo",
			Address:  "",
		},
		Hours: HoursConfig{
			Schedule: map[string]DayHours{
				"monday":    weekday,
				"tuesday":   weekday,
				"wednesday": weekday,
				"thursday":  weekday,
				"friday":    weekday,
				"saturday":  {Open: "08:00", Close: "13:00"},
				"sunday":    {Closed: true},
			},
			Templates: HoursTemplates{
				Saturday:     "Aos sábados {hours}.",
				Sunday:       "Aos domingos {hours}.",
				Weekday:      "Na {day} {hours}.",
				Tomorrow:     "Amanhã, {day}, {hours}.",
				NotYetOpen:   "Hoje abrimos às {open} e ficamos até as {close}.",
				ClosedToday:  "Hoje já encerramos, mas amanhã, {day}, {hours}.",
				OpenNow:      "Estamos abertos agora, até as {close}.",
				OpenPhrase:   "funcionamos das {open} às {close}",
				ClosedPhrase: "não abrimos",
			},
		},
		FAQ: FAQAnswers{
			Financing: "Trabalhamos com financiamento pelos principais bancos, com entrada a partir de 20% e parcelas em até 60 vezes.",
			Location:  "Estamos no endereço informado no nosso perfil.",
			Warranty:  "Todos os nossos seminovos saem com garantia de 3 meses para motor e câmbio.",
			TestDrive: "Dá para fazer test drive sim, é só agendar um horário com a gente.",
			Payment:   "Aceitamos pix, transferência, cartão e financiamento.",
		},
		Responses: Responses{
			Greetings: []string{
				"Olá! Aqui é da {store}. Está procurando algum carro em especial?",
				"Oi! Que bom falar com você. Qual modelo você tem em mente?",
				"Olá, tudo bem? Me conta que tipo de carro você procura.",
			},
			Farewells: []string{
				"Combinado, amanhã a gente continua. Até mais!",
				"Tranquilo, quando puder é só me chamar aqui. Bom descanso!",
			},
			Goodbyes: []string{
				"Entendido, não vou mais enviar mensagens. Se precisar, é só chamar.",
			},
			Engagement: []string{
				"Enquanto o vendedor não te chama, quer que eu separe fotos do carro?",
				"Posso adiantar a simulação de financiamento enquanto isso?",
			},
			QuestionCTAs: []string{
				"Quer que eu te mostre as opções?",
				"Posso separar algumas fotos para você?",
				"Quer agendar uma visita para ver de perto?",
			},
			StatementCTAs: []string{
				"Me avisa se quiser ver mais opções.",
				"Fico à disposição para agendar sua visita.",
			},
			FollowUps: []string{
				"Oi! Ainda está procurando carro? Chegaram novidades aqui na loja.",
			},
			Unavailable:        "Estou com uma instabilidade no momento. Um vendedor vai te responder em instantes.",
			PassiveFallback:    "Já avisei o vendedor, ele fala com você em instantes.",
			EngagingFallback:   "Posso te mostrar as opções que temos hoje?",
			RepetitionFallback: "Deixa eu te mostrar de outro jeito. Qual detalhe é mais importante para você?",
			HandoffConfirm:     "Vou chamar um vendedor para falar com você agora mesmo.",
			NoCarsFound:        "No momento não tenho esse modelo, mas posso buscar opções parecidas.",
		},
		Policy: PolicyLimits{
			MaxChars:             300,
			TruncateMargin:       10,
			MaxSentences:         3,
			NameCooldownTurns:    5,
			PassiveMaxChars:      120,
			SimilarityThreshold:  0.75,
			HandoffWindowMinutes: 30,
			HistorySize:          5,
		},
	}
}
