// Package intent classifies inbound customer messages with ordered pattern
// matchers and extracts the car, price and year slots they mention.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"eino_dealer_bot/internal/textsim"
	"eino_dealer_bot/pkg"
)

// Matcher is one tagged rule of the ordered classification table
type Matcher struct {
	Type  pkg.IntentType
	Match func(m *Message) (pkg.Confidence, bool)
}

// Message is the folded view of the text handed to each matcher
type Message struct {
	Raw    string
	Folded string
	Data   pkg.ExtractedData
}

// Classifier assigns exactly one intent to every message
type Classifier struct {
	vocab    *Vocabulary
	matchers []Matcher
}

// greetings are only considered for short messages
const maxGreetingLength = 20

var (
	linkRe = regexp.MustCompile(`https?://|www\.|\b(olx|webmotors|mercadolivre|mercado livre|icarros|mobiauto|kavak|napista|socarrao|autoline)\b|\b[a-z0-9-]+\.com(\.br)?\b`)

	complaintRe = regexp.MustCompile(`\b(reclama\w*|pessim\w*|horrivel|absurd\w*|descaso|golpe|engan\w*|procon|decepcion\w*|falta de respeito|mal atendid\w*|nunca mais|porcaria|vergonha|ninguem (me )?respond\w*|fui ignorad\w*|demora\w* (pra|para) responder)\b`)

	sellerRe = regexp.MustCompile(`\b(falar|conversar|atendimento|contato)\s+com\s+(um |uma |o |a |algum |alguem )?(vendedor\w*|atendente|humano|pessoa|gerente|consultor\w*)\b|\b(quero|preciso|pode|tem como|chama)\s+(um |uma |o |a )?(vendedor\w*|atendente|humano|consultor\w*)\b|\bme (liga|ligue|ligar)\b|\b(liga|ligue|ligar) (pra|para) mim\b`)

	tradeInRe = regexp.MustCompile(`\b(na troca|de troca|pra troca|para troca|aceita\w* troca|fazer (uma )?troca|trocar (o |meu |minha |por |pelo |pela |num |numa )|troco (o |meu |minha )|tenho (um|uma) [^.?!]{0,40}\btroc(a|ar)\b|avali\w* (o |meu |minha )|meu carro (atual|usado|velho)|(dar|dou|entrar com) (o |meu |minha )+\w+ (na|como|de) (troca|entrada)|tenho (um|uma) \w+ (para|pra) (dar|trocar|vender))`)

	appointmentRe = regexp.MustCompile(`\b(agendar|agendamento|marcar (uma )?(visita|horario|test)|visit(a|ar)\w*|test ?drive|passar (ai|la|na loja)|ir (ai|la|na loja|ate a loja)|conhecer a loja|posso ir)\b`)

	priceRe = regexp.MustCompile(`\b(quanto (custa|sai|fica|ta|esta|e)|qual (o )?(valor|preco)|preco\w*|valor|financ\w*|parcel\w*|entrada|juros|garantia|horario\w*|que horas|abre|fecha|funciona\w*|endereco|onde (fica|ficam|voces ficam)|localiza\w*|pix|cartao|boleto|a vista|forma\w* de pagamento|fipe|desconto)\b`)

	categoryRe = regexp.MustCompile(`\b(carro|suv|sedan|seda|hatch|picape|pickup|caminhonete|utilitario|automatico|seminovo\w*|usado|zero km|0km)\b`)
	wantRe     = regexp.MustCompile(`\b(quero|queria|procuro|procurando|busco|buscando|gostaria|preciso|interess\w*|estou atras|to atras)\b`)

	greetingRe = regexp.MustCompile(`^(oi+e?|ola|opa|bom dia|boa tarde|boa noite|e ai|eai|hey|hello|salve|tudo bem|tudo bom)\b`)

	stockRe = regexp.MustCompile(`\b(estoque|o que (voces )?tem|quais (carros|modelos|veiculos|opcoes)|disponive(l|is)|opcoes|catalogo|mais (carros|opcoes|modelos)|outros (carros|modelos)|tem (algum |alguma |um |uma )?(carro|suv|sedan|hatch|picape|caminhonete|automatico)|o que chegou|novidades)\b`)
)

// NewClassifier builds a classifier over the default vocabulary
func NewClassifier() *Classifier {
	return NewClassifierWithVocabulary(DefaultVocabulary())
}

// NewClassifierWithVocabulary builds a classifier over a custom vocabulary
func NewClassifierWithVocabulary(v *Vocabulary) *Classifier {
	c := &Classifier{vocab: v}
	c.matchers = []Matcher{
		{Type: pkg.IntentExternalLink, Match: pattern(linkRe, pkg.ConfidenceHigh)},
		{Type: pkg.IntentComplaint, Match: pattern(complaintRe, pkg.ConfidenceHigh)},
		{Type: pkg.IntentSellerRequest, Match: pattern(sellerRe, pkg.ConfidenceHigh)},
		{Type: pkg.IntentTradeIn, Match: pattern(tradeInRe, pkg.ConfidenceHigh)},
		{Type: pkg.IntentAppointment, Match: pattern(appointmentRe, pkg.ConfidenceHigh)},
		{Type: pkg.IntentPriceQuery, Match: pattern(priceRe, pkg.ConfidenceMedium)},
		{Type: pkg.IntentCarSearch, Match: matchCarSearch},
		{Type: pkg.IntentGreeting, Match: matchGreeting},
		{Type: pkg.IntentStockQuery, Match: pattern(stockRe, pkg.ConfidenceMedium)},
	}
	return c
}

// Classify returns the first matching intent in priority order, with the
// extracted slots attached regardless of which matcher fired.
func (c *Classifier) Classify(text string) pkg.DetectedIntent {
	msg := c.newMessage(text)
	for _, m := range c.matchers {
		if conf, ok := m.Match(msg); ok {
			return pkg.DetectedIntent{Type: m.Type, Confidence: conf, ExtractedData: msg.Data}
		}
	}
	return pkg.DetectedIntent{Type: pkg.IntentConversation, Confidence: pkg.ConfidenceLow, ExtractedData: msg.Data}
}

// Matches reports whether the matcher for one intent type fires on text,
// ignoring the higher priority matchers
func (c *Classifier) Matches(t pkg.IntentType, text string) bool {
	msg := c.newMessage(text)
	for _, m := range c.matchers {
		if m.Type == t {
			_, ok := m.Match(msg)
			return ok
		}
	}
	return false
}

// Extract runs only the slot extraction
func (c *Classifier) Extract(text string) pkg.ExtractedData {
	return c.newMessage(text).Data
}

// IsTradeIn reports whether the text talks about a car the customer already owns
func IsTradeIn(folded string) bool {
	return tradeInRe.MatchString(folded)
}

func (c *Classifier) newMessage(text string) *Message {
	folded := textsim.Fold(strings.TrimSpace(text))
	msg := &Message{Raw: text, Folded: folded}

	if model, ok := c.vocab.FindModel(folded, IsTradeIn(folded)); ok {
		msg.Data.CarModel = model.Name
		msg.Data.CarBrand = model.Brand
	} else if brand, ok := c.vocab.FindBrand(folded); ok {
		msg.Data.CarBrand = brand
	}
	msg.Data.PriceMin, msg.Data.PriceMax = ExtractPrice(folded)
	msg.Data.Year = ExtractYear(folded)
	return msg
}

func pattern(re *regexp.Regexp, conf pkg.Confidence) func(*Message) (pkg.Confidence, bool) {
	return func(m *Message) (pkg.Confidence, bool) {
		return conf, re.MatchString(m.Folded)
	}
}

func matchCarSearch(m *Message) (pkg.Confidence, bool) {
	switch {
	case m.Data.CarModel != "":
		return pkg.ConfidenceHigh, true
	case m.Data.CarBrand != "" || m.Data.HasPrice():
		return pkg.ConfidenceMedium, true
	case categoryRe.MatchString(m.Folded) && wantRe.MatchString(m.Folded):
		return pkg.ConfidenceMedium, true
	}
	return "", false
}

func matchGreeting(m *Message) (pkg.Confidence, bool) {
	if utf8.RuneCountInString(m.Folded) >= maxGreetingLength {
		return "", false
	}
	return pkg.ConfidenceHigh, greetingRe.MatchString(m.Folded)
}
