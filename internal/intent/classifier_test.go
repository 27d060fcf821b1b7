package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eino_dealer_bot/pkg"
)

func TestClassifyPriorityOrder(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name string
		text string
		want pkg.IntentType
	}{
		{"link beats everything", "Vi esse Onix no https://www.olx.com.br/abc quanto custa?", pkg.IntentExternalLink},
		{"marketplace name", "achei um carro de vocês na webmotors", pkg.IntentExternalLink},
		{"complaint", "Que atendimento péssimo, ninguém me respondeu", pkg.IntentComplaint},
		{"seller request", "Quero falar com um vendedor sobre o Onix", pkg.IntentSellerRequest},
		{"trade-in", "Tenho um Gol 2015 e quero trocar por um Onix", pkg.IntentTradeIn},
		{"appointment", "Queria agendar um test drive amanhã", pkg.IntentAppointment},
		{"price query", "Qual o valor do Onix?", pkg.IntentPriceQuery},
		{"financing is a price query", "Vocês fazem financiamento?", pkg.IntentPriceQuery},
		{"car search by model", "Procuro um Onix até 60 mil", pkg.IntentCarSearch},
		{"car search by brand", "Tem algum Honda?", pkg.IntentCarSearch},
		{"car search by category", "Estou procurando um SUV automático", pkg.IntentCarSearch},
		{"greeting", "Oi, tudo bem?", pkg.IntentGreeting},
		{"long greeting is conversation", "Bom dia, espero que esteja tudo certo com vocês", pkg.IntentConversation},
		{"stock query", "Quais carros vocês têm?", pkg.IntentStockQuery},
		{"fallback", "Obrigado pela ajuda", pkg.IntentConversation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text)
			assert.Equal(t, tc.want, got.Type)
		})
	}
}

func TestClassifyConfidence(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, pkg.ConfidenceHigh, c.Classify("quero um onix").Confidence)
	assert.Equal(t, pkg.ConfidenceMedium, c.Classify("tem algum honda").Confidence)
	assert.Equal(t, pkg.ConfidenceLow, c.Classify("obrigado").Confidence)
}

func TestClassifyKeepsExtractedData(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("Quero falar com um vendedor sobre o Onix")
	require.Equal(t, pkg.IntentSellerRequest, got.Type)
	assert.Equal(t, "Onix", got.ExtractedData.CarModel)
	assert.Equal(t, "Chevrolet", got.ExtractedData.CarBrand)
}

func TestMatchersRunIndependently(t *testing.T) {
	c := NewClassifier()

	text := "Quero falar com um vendedor sobre o Onix"
	assert.True(t, c.Matches(pkg.IntentSellerRequest, text))
	assert.True(t, c.Matches(pkg.IntentCarSearch, text))
	assert.False(t, c.Matches(pkg.IntentComplaint, text))
}

func TestExtractModel(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		text  string
		model string
		brand string
	}{
		{"quero um onixzinho", "Onix", "Chevrolet"},
		{"tem hb20s?", "HB20", "Hyundai"},
		{"vi um onixplus lindo", "Onix Plus", "Chevrolet"},
		{"a strada cabine dupla", "Strada", "Fiat"},
		{"tem HB20 prata?", "HB20", "Hyundai"},
		{"gostei do Onix Plus", "Onix Plus", "Chevrolet"},
		{"e o T-Cross?", "T-Cross", "Volkswagen"},
		{"algum volkswagen?", "", "Volkswagen"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := c.Extract(tc.text)
			assert.Equal(t, tc.model, got.CarModel)
			assert.Equal(t, tc.brand, got.CarBrand)
		})
	}
}

func TestExtractModelRejectsNamesAndWords(t *testing.T) {
	c := NewClassifier()

	for _, text := range []string{
		"Falei com o Apolo ontem",
		"Vou conversar com minha esposa",
		"Me chamo Logan",
		"Meu filho fez dois gols",
		"O Bruno me indicou vocês",
		"vou pegar a estrada amanhã cedo",
		"a gente teve umas conversas boas",
		"perdi minha pulseira",
		"trabalho numa imobiliária",
		"qual o seu cargo aí?",
		"to com uma espinha no rosto",
	} {
		t.Run(text, func(t *testing.T) {
			assert.Empty(t, c.Extract(text).CarModel)
			assert.NotEqual(t, pkg.IntentCarSearch, c.Classify(text).Type)
		})
	}
}

func TestExtractTradeInPrefersDesiredCar(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, "Onix", c.Extract("Tenho um Gol 2015 e quero trocar por um Onix").CarModel)
	assert.Equal(t, "Onix", c.Extract("quero trocar meu gol num onix").CarModel)
	// without trade-in context the first mention wins
	assert.Equal(t, "Gol", c.Extract("gol ou onix, qual compensa?").CarModel)
}

func TestIsTradeIn(t *testing.T) {
	assert.True(t, IsTradeIn("voces aceitam troca?"))
	assert.True(t, IsTradeIn("quero dar meu civic na troca"))
	assert.False(t, IsTradeIn("quero um civic"))
}
