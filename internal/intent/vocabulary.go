package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// CarModel is one entry of the fixed model vocabulary
type CarModel struct {
	Name    string
	Brand   string
	Aliases []string
}

// Vocabulary resolves model and brand slots from folded text
type Vocabulary struct {
	models      []CarModel
	brands      map[string]string
	knownNames  map[string]bool
	commonWords map[string]bool

	// glued spellings allowed to carry an alias inside a longer token
	compounds map[string]bool
}

var (
	// Cues that introduce a person's name right before a token
	nameCueRe = regexp.MustCompile(`(me chamo|meu nome e|sou o|sou a|aqui e o|aqui e a|falar com o|falar com a|falei com o|falei com a)\s+$`)

	interestMarkerRe   = regexp.MustCompile(`\b(quero|queria|quer|interess\w*|gostaria|procur\w*|busc\w*|pegar|comprar|levar|de olho|num|numa|por|pelo|pela)\b`)
	possessionMarkerRe = regexp.MustCompile(`\b(tenho|tinha|meu|minha|possuo|dou|dar|dando|entrego|entregar|vendo|vender|na troca|como entrada)\b`)
)

// markerWindow is how many bytes before a model mention are inspected for
// interest or possession verbs
const markerWindow = 30

// DefaultVocabulary returns the models and brands sold in the Brazilian market
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		models: []CarModel{
			{Name: "Onix", Brand: "Chevrolet", Aliases: []string{"onix"}},
			{Name: "Onix Plus", Brand: "Chevrolet", Aliases: []string{"onix plus", "onixplus"}},
			{Name: "Tracker", Brand: "Chevrolet", Aliases: []string{"tracker"}},
			{Name: "Cruze", Brand: "Chevrolet", Aliases: []string{"cruze"}},
			{Name: "S10", Brand: "Chevrolet", Aliases: []string{"s10", "s 10"}},
			{Name: "Spin", Brand: "Chevrolet", Aliases: []string{"spin"}},
			{Name: "Prisma", Brand: "Chevrolet", Aliases: []string{"prisma"}},
			{Name: "Montana", Brand: "Chevrolet", Aliases: []string{"montana"}},
			{Name: "Celta", Brand: "Chevrolet", Aliases: []string{"celta"}},
			{Name: "Gol", Brand: "Volkswagen", Aliases: []string{"gol"}},
			{Name: "Polo", Brand: "Volkswagen", Aliases: []string{"polo"}},
			{Name: "Virtus", Brand: "Volkswagen", Aliases: []string{"virtus"}},
			{Name: "T-Cross", Brand: "Volkswagen", Aliases: []string{"t-cross", "tcross", "t cross"}},
			{Name: "Nivus", Brand: "Volkswagen", Aliases: []string{"nivus"}},
			{Name: "Saveiro", Brand: "Volkswagen", Aliases: []string{"saveiro"}},
			{Name: "Voyage", Brand: "Volkswagen", Aliases: []string{"voyage"}},
			{Name: "Fox", Brand: "Volkswagen", Aliases: []string{"fox"}},
			{Name: "Up", Brand: "Volkswagen", Aliases: []string{"up"}},
			{Name: "Jetta", Brand: "Volkswagen", Aliases: []string{"jetta"}},
			{Name: "Amarok", Brand: "Volkswagen", Aliases: []string{"amarok"}},
			{Name: "HB20", Brand: "Hyundai", Aliases: []string{"hb20", "hb 20"}},
			{Name: "Creta", Brand: "Hyundai", Aliases: []string{"creta"}},
			{Name: "Tucson", Brand: "Hyundai", Aliases: []string{"tucson"}},
			{Name: "Civic", Brand: "Honda", Aliases: []string{"civic"}},
			{Name: "City", Brand: "Honda", Aliases: []string{"city"}},
			{Name: "Fit", Brand: "Honda", Aliases: []string{"fit"}},
			{Name: "HR-V", Brand: "Honda", Aliases: []string{"hr-v", "hrv", "hr v"}},
			{Name: "WR-V", Brand: "Honda", Aliases: []string{"wr-v", "wrv", "wr v"}},
			{Name: "Corolla", Brand: "Toyota", Aliases: []string{"corolla"}},
			{Name: "Corolla Cross", Brand: "Toyota", Aliases: []string{"corolla cross", "corollacross"}},
			{Name: "Yaris", Brand: "Toyota", Aliases: []string{"yaris"}},
			{Name: "Hilux", Brand: "Toyota", Aliases: []string{"hilux"}},
			{Name: "Etios", Brand: "Toyota", Aliases: []string{"etios"}},
			{Name: "SW4", Brand: "Toyota", Aliases: []string{"sw4"}},
			{Name: "Ka", Brand: "Ford", Aliases: []string{"ka"}},
			{Name: "EcoSport", Brand: "Ford", Aliases: []string{"ecosport", "eco sport"}},
			{Name: "Ranger", Brand: "Ford", Aliases: []string{"ranger"}},
			{Name: "Fiesta", Brand: "Ford", Aliases: []string{"fiesta"}},
			{Name: "Focus", Brand: "Ford", Aliases: []string{"focus"}},
			{Name: "Argo", Brand: "Fiat", Aliases: []string{"argo"}},
			{Name: "Mobi", Brand: "Fiat", Aliases: []string{"mobi"}},
			{Name: "Uno", Brand: "Fiat", Aliases: []string{"uno"}},
			{Name: "Palio", Brand: "Fiat", Aliases: []string{"palio"}},
			{Name: "Strada", Brand: "Fiat", Aliases: []string{"strada"}},
			{Name: "Toro", Brand: "Fiat", Aliases: []string{"toro"}},
			{Name: "Cronos", Brand: "Fiat", Aliases: []string{"cronos"}},
			{Name: "Pulse", Brand: "Fiat", Aliases: []string{"pulse"}},
			{Name: "Fastback", Brand: "Fiat", Aliases: []string{"fastback"}},
			{Name: "Siena", Brand: "Fiat", Aliases: []string{"siena"}},
			{Name: "Kicks", Brand: "Nissan", Aliases: []string{"kicks"}},
			{Name: "Versa", Brand: "Nissan", Aliases: []string{"versa"}},
			{Name: "March", Brand: "Nissan", Aliases: []string{"march"}},
			{Name: "Sentra", Brand: "Nissan", Aliases: []string{"sentra"}},
			{Name: "Frontier", Brand: "Nissan", Aliases: []string{"frontier"}},
			{Name: "Renegade", Brand: "Jeep", Aliases: []string{"renegade"}},
			{Name: "Compass", Brand: "Jeep", Aliases: []string{"compass"}},
			{Name: "Commander", Brand: "Jeep", Aliases: []string{"commander"}},
			{Name: "Sandero", Brand: "Renault", Aliases: []string{"sandero"}},
			{Name: "Logan", Brand: "Renault", Aliases: []string{"logan"}},
			{Name: "Duster", Brand: "Renault", Aliases: []string{"duster"}},
			{Name: "Kwid", Brand: "Renault", Aliases: []string{"kwid"}},
			{Name: "Captur", Brand: "Renault", Aliases: []string{"captur"}},
			{Name: "Clio", Brand: "Renault", Aliases: []string{"clio"}},
			{Name: "208", Brand: "Peugeot", Aliases: []string{"peugeot 208"}},
			{Name: "2008", Brand: "Peugeot", Aliases: []string{"peugeot 2008"}},
			{Name: "C3", Brand: "Citroën", Aliases: []string{"c3"}},
			{Name: "C4 Cactus", Brand: "Citroën", Aliases: []string{"c4 cactus", "cactus"}},
		},
		brands: map[string]string{
			"chevrolet":  "Chevrolet",
			"chevy":      "Chevrolet",
			"gm":         "Chevrolet",
			"volkswagen": "Volkswagen",
			"vw":         "Volkswagen",
			"hyundai":    "Hyundai",
			"honda":      "Honda",
			"toyota":     "Toyota",
			"ford":       "Ford",
			"fiat":       "Fiat",
			"nissan":     "Nissan",
			"jeep":       "Jeep",
			"renault":    "Renault",
			"peugeot":    "Peugeot",
			"citroen":    "Citroën",
			"mitsubishi": "Mitsubishi",
			"kia":        "Kia",
			"bmw":        "BMW",
			"mercedes":   "Mercedes-Benz",
			"audi":       "Audi",
			"chery":      "Caoa Chery",
		},
		// First names that contain a model alias
		knownNames: setOf(
			"apolo", "apolonia", "apolinario", "margot", "margo", "crispin",
			"bruno", "karina", "katia", "kaique", "kaio", "karen", "kamila",
			"spinola", "celtina", "clionice", "tucsonio",
		),
		// Everyday words that contain a model alias
		commonWords: setOf(
			"conversa", "conversar", "conversando", "conversamos", "conversei",
			"universal", "universidade", "diversa", "diversas", "controversa",
			"reversa", "inversa", "cruzeiro", "toronto", "marcha", "marchas",
			"mobilia", "mobiliado", "argola", "argolas", "estilo", "secreta",
			"discreta", "concreta", "civico", "civica", "gols", "focusing",
			"prismas", "spinner", "cruzes", "polos",
		),
		compounds: setOf(
			"onixlt", "onixltz", "onixjoy", "hb20x",
			"novoonix", "novohb20", "novotracker",
		),
	}
}

func setOf(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// modelHit is one accepted model mention
type modelHit struct {
	model CarModel
	pos   int
}

// FindModel returns the canonical model mentioned in folded text. When
// tradeIn is set the desired car (near an interest verb) wins over the owned
// car (near a possession verb); otherwise the first mention wins.
func (v *Vocabulary) FindModel(folded string, tradeIn bool) (CarModel, bool) {
	hits := v.modelHits(folded)
	if len(hits) == 0 {
		return CarModel{}, false
	}
	if tradeIn {
		for _, h := range hits {
			if markedAsInterest(folded, h.pos) {
				return h.model, true
			}
		}
	}
	return hits[0].model, true
}

// FindBrand returns the first brand mentioned in folded text
func (v *Vocabulary) FindBrand(folded string) (string, bool) {
	best, bestPos := "", -1
	for alias, brand := range v.brands {
		for _, pos := range findToken(folded, alias) {
			if bestPos == -1 || pos < bestPos {
				best, bestPos = brand, pos
			}
			break
		}
	}
	return best, bestPos >= 0
}

// modelHits collects accepted mentions ordered by position. A longer alias
// overlapping a shorter one ("onix plus" vs "onix") wins.
func (v *Vocabulary) modelHits(folded string) []modelHit {
	type span struct{ start, end int }
	var hits []modelHit
	var spans []span

	for _, m := range v.models {
		for _, alias := range m.Aliases {
			for _, pos := range v.aliasPositions(folded, alias) {
				end := pos + len(alias)
				replaced := false
				overlapped := false
				for i, s := range spans {
					if pos < s.end && end > s.start {
						overlapped = true
						if end-pos > s.end-s.start {
							hits[i] = modelHit{model: m, pos: pos}
							spans[i] = span{pos, end}
							replaced = true
						}
						break
					}
				}
				if !overlapped && !replaced {
					hits = append(hits, modelHit{model: m, pos: pos})
					spans = append(spans, span{pos, end})
				}
			}
		}
	}

	// insertion sort by position, the hit list is tiny
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	return hits
}

// aliasPositions finds alias occurrences that survive the token and name guards
func (v *Vocabulary) aliasPositions(folded, alias string) []int {
	if strings.ContainsAny(alias, " -") {
		return findToken(folded, alias)
	}

	var out []int
	for offset := 0; offset < len(folded); {
		idx := strings.Index(folded[offset:], alias)
		if idx < 0 {
			break
		}
		pos := offset + idx
		offset = pos + len(alias)

		start, end := tokenBounds(folded, pos, pos+len(alias))
		token := folded[start:end]

		if token != alias {
			// inside a longer token only a known inflection or glued spelling counts
			if v.knownNames[token] || v.commonWords[token] {
				continue
			}
			if !hasModelSuffix(token, alias) && !v.compounds[token] {
				continue
			}
		}
		if nameCueRe.MatchString(folded[:start]) {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// hasModelSuffix accepts plural and diminutive forms ("onixzinho", "hb20s").
// Words that look like an inflection ("gols", "cruzes") sit in the common-word list.
func hasModelSuffix(token, alias string) bool {
	if !strings.HasPrefix(token, alias) {
		return false
	}
	switch token[len(alias):] {
	case "s", "zinho", "zao":
		return true
	}
	return false
}

// findToken returns positions where needle appears with word boundaries on both sides
func findToken(folded, needle string) []int {
	var out []int
	for offset := 0; offset < len(folded); {
		idx := strings.Index(folded[offset:], needle)
		if idx < 0 {
			break
		}
		pos := offset + idx
		end := pos + len(needle)
		offset = end
		if pos > 0 && isWordByte(folded[pos-1]) {
			continue
		}
		if end < len(folded) && isWordByte(folded[end]) {
			continue
		}
		out = append(out, pos)
	}
	return out
}

func tokenBounds(s string, start, end int) (int, int) {
	for start > 0 && isWordByte(s[start-1]) {
		start--
	}
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return start, end
}

func isWordByte(b byte) bool {
	r := rune(b)
	return b >= 0x80 || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// markedAsInterest reports whether the closest verb marker before pos is an
// interest marker rather than a possession marker
func markedAsInterest(folded string, pos int) bool {
	from := pos - markerWindow
	if from < 0 {
		from = 0
	}
	window := folded[from:pos]

	lastInterest := lastMatch(interestMarkerRe, window)
	lastPossession := lastMatch(possessionMarkerRe, window)
	return lastInterest >= 0 && lastInterest > lastPossession
}

func lastMatch(re *regexp.Regexp, s string) int {
	all := re.FindAllStringIndex(s, -1)
	if len(all) == 0 {
		return -1
	}
	return all[len(all)-1][0]
}
