// Package faq answers the recurring dealership questions from configuration.
package faq

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/intent"
	"eino_dealer_bot/internal/textsim"
)

// Category tags a canned answer
type Category string

const (
	CategoryFinancing Category = "financing"
	CategoryHours     Category = "hours"
	CategoryLocation  Category = "location"
	CategoryWarranty  Category = "warranty"
	CategoryTestDrive Category = "test_drive"
	CategoryPayment   Category = "payment"
)

// Answer is a canned reply for one category. Notices are the active special
// rules, sent verbatim after Text.
type Answer struct {
	Category Category
	Text     string
	Notices  []string
}

// String joins the answer and its notices
func (a Answer) String() string {
	return strings.TrimSpace(a.Text + " " + strings.Join(a.Notices, " "))
}

// StoreHours is the dynamic data the hours answer needs
type StoreHours struct {
	Now          time.Time
	Schedule     map[time.Weekday]config.DayHours
	SpecialRules []string
}

// HoursProvider supplies StoreHours for the current moment
type HoursProvider interface {
	StoreHours(now time.Time) StoreHours
}

// Matcher evaluates the FAQ pattern sets in a fixed order
type Matcher struct {
	answers   config.FAQAnswers
	templates config.HoursTemplates
	storeName string
	rules     []rule
}

type rule struct {
	category Category
	re       *regexp.Regexp
}

var (
	financingRe = regexp.MustCompile(`\b(financ\w*|parcel\w*|entrada|juros|credito|simula\w*|consorcio)\b`)
	hoursRe     = regexp.MustCompile(`\b(horario\w*|que horas|abre|abrem|aberto|aberta|abertos|fecha|fecham|fechado|funciona\w*|expediente)\b`)
	locationRe  = regexp.MustCompile(`\b(endereco|onde (fica|ficam|voces ficam|e a loja|e a revenda)|localiza\w*|como (chego|chegar)|qual a cidade)\b`)
	warrantyRe  = regexp.MustCompile(`\bgarantia\b`)
	testDriveRe = regexp.MustCompile(`\b(test ?drive|dirigir o carro|fazer um teste|dar uma volta)\b`)
	paymentRe   = regexp.MustCompile(`\b(pix|cartao|boleto|a vista|forma\w* de pagamento|dinheiro|transferencia|ted)\b`)

	saturdayRe = regexp.MustCompile(`\bsabado\w*\b`)
	sundayRe   = regexp.MustCompile(`\bdomingo\w*\b`)
	tomorrowRe = regexp.MustCompile(`\bamanha\b`)
	weekdayRe  = regexp.MustCompile(`\b(segunda|terca|quarta|quinta|sexta)\b`)
)

var weekdayByWord = map[string]time.Weekday{
	"segunda": time.Monday,
	"terca":   time.Tuesday,
	"quarta":  time.Wednesday,
	"quinta":  time.Thursday,
	"sexta":   time.Friday,
}

var weekdayNames = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

// NewMatcher builds a matcher over the configured answers
func NewMatcher(cfg *config.BotConfig) *Matcher {
	return &Matcher{
		answers:   cfg.FAQ,
		templates: cfg.Hours.Templates,
		storeName: cfg.Store.Name,
		rules: []rule{
			{CategoryFinancing, financingRe},
			{CategoryHours, hoursRe},
			{CategoryLocation, locationRe},
			{CategoryWarranty, warrantyRe},
			{CategoryTestDrive, testDriveRe},
			{CategoryPayment, paymentRe},
		},
	}
}

// Match returns the canned answer for text. Trade-in messages never match,
// they belong to the trade-in flow.
func (m *Matcher) Match(text string, hours StoreHours) (Answer, bool) {
	folded := textsim.Fold(text)
	if intent.IsTradeIn(folded) {
		return Answer{}, false
	}

	for _, r := range m.rules {
		if !r.re.MatchString(folded) {
			continue
		}
		answer := m.answerFor(r.category, folded, hours)
		if answer == "" {
			continue
		}
		result := Answer{Category: r.category, Text: answer}
		if r.category == CategoryHours && len(hours.SpecialRules) > 0 {
			result.Notices = append([]string{}, hours.SpecialRules...)
		}
		return result, true
	}
	return Answer{}, false
}

func (m *Matcher) answerFor(c Category, folded string, hours StoreHours) string {
	switch c {
	case CategoryFinancing:
		return m.answers.Financing
	case CategoryHours:
		return m.HoursAnswer(folded, hours)
	case CategoryLocation:
		return m.answers.Location
	case CategoryWarranty:
		return m.answers.Warranty
	case CategoryTestDrive:
		return m.answers.TestDrive
	case CategoryPayment:
		return m.answers.Payment
	}
	return ""
}

// HoursAnswer picks one of the seven day-aware templates. Special rules are
// left to Match.
func (m *Matcher) HoursAnswer(folded string, hours StoreHours) string {
	now := hours.Now
	today := now.Weekday()
	t := m.templates

	var text string
	switch {
	case saturdayRe.MatchString(folded):
		text = m.render(t.Saturday, time.Saturday, hours)
	case sundayRe.MatchString(folded):
		text = m.render(t.Sunday, time.Sunday, hours)
	case tomorrowRe.MatchString(folded):
		text = m.render(t.Tomorrow, (today+1)%7, hours)
	case weekdayRe.MatchString(folded):
		day := weekdayByWord[weekdayRe.FindStringSubmatch(folded)[1]]
		text = m.render(t.Weekday, day, hours)
	default:
		text = m.sameDay(hours)
	}
	return text
}

// sameDay branches on whether the store has not opened yet, already closed
// or is open right now
func (m *Matcher) sameDay(hours StoreHours) string {
	now := hours.Now
	today := now.Weekday()
	dh := hours.Schedule[today]
	minute := now.Hour()*60 + now.Minute()

	open, errOpen := dh.OpenMinute()
	closing, errClose := dh.CloseMinute()
	if dh.Closed || errOpen != nil || errClose != nil || minute >= closing {
		return m.render(m.templates.ClosedToday, (today+1)%7, hours)
	}
	if minute < open {
		return m.render(m.templates.NotYetOpen, today, hours)
	}
	return m.render(m.templates.OpenNow, today, hours)
}

func (m *Matcher) render(template string, day time.Weekday, hours StoreHours) string {
	dh, ok := hours.Schedule[day]
	if !ok {
		dh = config.DayHours{Closed: true}
	}

	openAt, closeAt, phrase := "", "", m.templates.ClosedPhrase
	if !dh.Closed {
		openAt, closeAt = formatClock(dh.Open), formatClock(dh.Close)
		phrase = strings.NewReplacer("{open}", openAt, "{close}", closeAt).Replace(m.templates.OpenPhrase)
	}

	return strings.NewReplacer(
		"{day}", weekdayNames[day],
		"{hours}", phrase,
		"{open}", openAt,
		"{close}", closeAt,
		"{store}", m.storeName,
	).Replace(template)
}

// formatClock renders "08:00" as "8h" and "08:30" as "8h30"
func formatClock(s string) string {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return s
	}
	hh = strings.TrimLeft(hh, "0")
	if hh == "" {
		hh = "0"
	}
	if mm == "00" {
		return fmt.Sprintf("%sh", hh)
	}
	return fmt.Sprintf("%sh%s", hh, mm)
}
