package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func getSystemTemplate() string {
	return `Você é o consultor de vendas da loja {store_name}, conversando com um cliente pelo WhatsApp.

			-Objetivo-
			Ajudar o cliente a encontrar um carro do nosso estoque e levá-lo a uma visita ou a falar com um vendedor.

			REGRAS OBRIGATÓRIAS:
			1. Responda em português do Brasil, em tom próximo e profissional
			2. No máximo {max_chars} caracteres e no máximo 3 frases
			3. Faça no máximo UMA pergunta por mensagem
			4. Nunca use emojis, listas numeradas ou marcadores
			5. Termine sempre com uma pergunta ou um convite para a próxima ação
			6. Não pergunte de novo o que já foi informado ou já perguntado
			7. Use somente os carros listados em <estoque>; nunca invente preços ou modelos

			{summary}

			<estoque>
			{inventory}
			</estoque>`
}

func getReformulationTemplate() string {
	return `Reescreva a resposta abaixo seguindo a instrução.

			Instrução: {instruction}

			Mensagem do cliente: {message}

			Resposta original: {candidate}

			Devolva apenas o novo texto da resposta, sem aspas e sem explicações.`
}

// dedent removes the indentation the templates carry for readability
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "\n")
}

// NewResponseTemplate builds the turn prompt: system rules with the customer
// digest and inventory, the recent transcript, then the current message
func NewResponseTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(dedent(getSystemTemplate())),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{message}"),
	)
}

// NewReformulationTemplate builds the prompt used to rewrite a candidate
func NewReformulationTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage("Você revisa mensagens de um consultor de vendas de carros."),
		schema.UserMessage(dedent(getReformulationTemplate())),
	)
}

// ResponseInput holds the values of the turn prompt
type ResponseInput struct {
	StoreName string
	MaxChars  int
	Summary   string
	Inventory []string
	History   []*schema.Message
	Message   string
}

// FormatResponse renders the turn prompt
func FormatResponse(ctx context.Context, in ResponseInput) ([]*schema.Message, error) {
	inventory := "nenhum carro selecionado para esta conversa"
	if len(in.Inventory) > 0 {
		inventory = strings.Join(in.Inventory, "\n")
	}

	messages, err := NewResponseTemplate().Format(ctx, map[string]any{
		"store_name": in.StoreName,
		"max_chars":  in.MaxChars,
		"summary":    in.Summary,
		"inventory":  inventory,
		"history":    in.History,
		"message":    in.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format response prompt: %w", err)
	}
	return messages, nil
}

// FormatReformulation renders the rewrite prompt
func FormatReformulation(ctx context.Context, instruction, message, candidate string) ([]*schema.Message, error) {
	messages, err := NewReformulationTemplate().Format(ctx, map[string]any{
		"instruction": instruction,
		"message":     message,
		"candidate":   candidate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format reformulation prompt: %w", err)
	}
	return messages, nil
}
