package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "voce ja viu o ano?", Fold("Você JÁ viu o ANO?"))
	assert.Equal(t, "promocao", Fold("Promoção"))
}

func TestCharTrigramSimilarity(t *testing.T) {
	near := CharTrigramSimilarity(
		"Temos o Onix 2022 por R$ 65.000, ótimo estado.",
		"Temos o Onix 2022 por R$65.000 em ótimo estado!",
	)
	assert.Greater(t, near, 0.75)

	far := CharTrigramSimilarity("Temos o Onix 2022.", "Quer ver o Tracker 2023?")
	assert.Less(t, far, 0.75)
}

func TestWordTrigramSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, WordTrigramSimilarity("Oi, tudo bem?", "oi tudo bem"))
	assert.Equal(t, 0.0, WordTrigramSimilarity("", "qualquer coisa aqui"))
	assert.Less(t, WordTrigramSimilarity(
		"Temos o Onix 2022 disponível para visita.",
		"Posso separar um Tracker para você ver amanhã?",
	), 0.1)
}

func TestHashIgnoresFormatting(t *testing.T) {
	assert.Equal(t, Hash("Temos o Onix!"), Hash("temos o onix"))
	assert.NotEqual(t, Hash("Temos o Onix"), Hash("Temos o Tracker"))
}
