package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dodohu918/Medical-chatbot/internal/analysis/symptom"
)

// Classifier 使用大模型将自由文本的症状描述归入固定类别，失败时回退到默认类别。
type Classifier struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewClassifier 创建症状分类器。chatModel 为 nil 时分类器始终返回默认类别。
func NewClassifier(ctx context.Context, chatModel model.ChatModel) (*Classifier, error) {
	c := &Classifier{}
	if chatModel == nil {
		return c, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifySystemPrompt),
		schema.UserMessage(classifyUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile symptom classifier chain: %w", err)
	}

	c.chain = runnable
	return c, nil
}

// Classify maps a symptom description to a category. Any failure — missing
// model, invoke error, empty or unmatched reply — resolves to the default
// category so classification never blocks the conversation.
func (c *Classifier) Classify(ctx context.Context, freeText string) symptom.Category {
	if c == nil || c.chain == nil {
		return symptom.Default
	}

	msg, err := c.chain.Invoke(ctx, map[string]any{
		"symptom": strings.TrimSpace(freeText),
	})
	if err != nil {
		log.Printf("[classify] model invoke failed, using default category: %v", err)
		return symptom.Default
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		log.Printf("[classify] empty model reply, using default category")
		return symptom.Default
	}

	category, matched := symptom.ParseCategory(msg.Content)
	if !matched {
		log.Printf("[classify] no keyword matched in reply %q, using default category", msg.Content)
	}
	return category
}

const classifySystemPrompt = "You are a helpful medical triage assistant. Your job is to read a user's symptom description " +
	"and classify it into one of the following categories:\n\n" +
	"1) 'abdominal pain'\n" +
	"2) 'joint pain'\n" +
	"3) 'numbness feeling or tingling feeling over legs'\n" +
	"4) 'neck mass'\n" +
	"5) 'lower back pain'\n" +
	"6) 'easy thirsty'\n" +
	"7) 'other'\n" +
	"Return ONLY the most relevant category name, exactly as it appears in the list above. " +
	"No extra text. No disclaimers."

const classifyUserPrompt = "Symptom description: {symptom}"
