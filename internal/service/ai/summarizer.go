package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/dodohu918/Medical-chatbot/internal/model/triage"
)

// 固定占位文案：解析失败与调用失败要给用户不同但同样无害的结果。
const (
	summaryUnparsable = "（無法解析）"
	summaryFailed     = "（總結失敗）"
)

// Summarizer 将累积的问答记录总结为中文摘要与入院病历式摘要。
type Summarizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewSummarizer 创建会话总结器。chatModel 为 nil 时总结器始终返回失败占位文案。
func NewSummarizer(ctx context.Context, chatModel model.ChatModel) (*Summarizer, error) {
	s := &Summarizer{}
	if chatModel == nil {
		return s, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarizeSystemPrompt),
		schema.UserMessage(summarizeUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summarizer chain: %w", err)
	}

	s.chain = runnable
	return s, nil
}

// Summarize turns a transcript into the bilingual summary pair. The
// conversation must always reach a terminal reply, so every failure mode
// collapses to fixed placeholder text instead of an error.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) triage.Summary {
	if s == nil || s.chain == nil {
		return triage.Summary{ChineseSummary: summaryFailed, AdmissionNote: summaryFailed}
	}

	msg, err := s.chain.Invoke(ctx, map[string]any{
		"transcript": transcript,
	})
	if err != nil {
		log.Printf("[summarize] model invoke failed: %v", err)
		return triage.Summary{ChineseSummary: summaryFailed, AdmissionNote: summaryFailed}
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		log.Printf("[summarize] empty model reply")
		return triage.Summary{ChineseSummary: summaryFailed, AdmissionNote: summaryFailed}
	}

	summary, err := parseSummary(msg.Content)
	if err != nil {
		log.Printf("[summarize] reply parse failed: %v", err)
		return triage.Summary{ChineseSummary: summaryUnparsable, AdmissionNote: summaryUnparsable}
	}
	return summary
}

// parseSummary 解析大模型返回的 JSON。模型偶尔会在 JSON 前后夹带说明文字，
// 因此只取首个 "{" 到末个 "}" 之间的窗口。
func parseSummary(content string) (triage.Summary, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return triage.Summary{}, fmt.Errorf("missing json object")
	}

	var summary triage.Summary
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &summary); err != nil {
		return triage.Summary{}, err
	}
	return summary, nil
}

const summarizeSystemPrompt = "You are a helpful assistant that reads a Q&A conversation in Chinese. " +
	"Summarize it in TWO parts: \n" +
	"1) A concise Chinese summary.\n" +
	"2) An admission-note-like summary (e.g., in the form like This is a xx-year-old male/female patient " +
	"with past history of... and medication history of... He/She complaint of (chief complaint) for more than " +
	"(duration) with ...(accompanied symptoms)), resembling a professional medical note.\n\n" +
	"Return your answer as a valid JSON object with exactly two string keys: " +
	"chinese_summary and admission_note. " +
	"Do not include any extra text or disclaimers outside the JSON structure."

const summarizeUserPrompt = "這是使用者與機器人之間的對話（問題與回答）：\n{transcript}\n\n請根據上述內容，依照指示格式產生兩種摘要。"
