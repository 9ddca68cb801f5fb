package triage

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/dodohu918/Medical-chatbot/internal/analysis/symptom"
	"github.com/dodohu918/Medical-chatbot/internal/model/flow"
	"github.com/dodohu918/Medical-chatbot/internal/model/triage"
)

// 对话流程中承担特殊行为的节点 id。
const (
	EntryNodeID    = "greeting"
	TerminalNodeID = "end"

	ageNodeID   = "get_age"
	emailNodeID = "get_email"

	classifyHandlerName = "classifySymptomHandler"
)

// clinicNodeIDs 列出选择就诊地区的多选节点；命中时把选项标签记为 selectedCity。
var clinicNodeIDs = map[string]bool{
	"find_clinic_north": true,
	"find_clinic_mid":   true,
	"find_clinic_south": true,
	"find_clinic_east":  true,
	"find_clinic_out":   true,
}

// categoryEntry 把分类结果映射到各主诉子流程的入口节点。
var categoryEntry = map[symptom.Category]string{
	symptom.AbdominalPain: "abdomen_start",
	symptom.JointPain:     "joint_start",
	symptom.NeckMass:      "neck_mass_start",
	symptom.LegNumbness:   "RLS_start",
	symptom.LowerBackPain: "lowerBackPain_start",
	symptom.EasyThirsty:   "4_easyThirsty_start",
	symptom.Other:         "abdomen_start",
}

const infoBaseURL = "https://example.com/info"

// 固定的用户可见文案。结构错误、输入校验、外部依赖失败都不向用户暴露原始错误。
const (
	msgNodeMissing        = "抱歉，我無法處理您的請求，請稍後再試。"
	msgFeatureUnavailable = "該功能無法使用。"
	msgAnswerYesNo        = "請回答是或否。"
	msgInvalidOption      = "無效的選項，請選擇有效的選項。"
	msgInvalidAge         = "請輸入有效的年齡（0~120）"
	msgThanks             = "感謝使用！"
	msgDefaultGreeting    = "您好！"
)

var (
	yesTokens = map[string]bool{"yes": true, "y": true, "是": true, "1": true}
	noTokens  = map[string]bool{"no": true, "n": true, "否": true, "2": true}
)

// Classifier maps a free-text symptom description to a fixed category.
// Implementations must fall back to symptom.Default instead of failing.
type Classifier interface {
	Classify(ctx context.Context, freeText string) symptom.Category
}

// Summarizer turns a Q&A transcript into the bilingual summary pair.
// Implementations must return placeholder text instead of failing.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) triage.Summary
}

// Notifier delivers the summary mail. May be absent.
type Notifier interface {
	Send(ctx context.Context, address, body string) error
}

// Engine 是对话状态机：解析当前节点、应用转移规则、在正确的节点触发
// 分类/总结/寄信副作用，并产出下一句回复。会话状态由调用方传入并写回。
type Engine struct {
	graph      *flow.Graph
	classifier Classifier
	summarizer Summarizer
	notifier   Notifier
}

// NewEngine 组装对话引擎。notifier 可以为 nil（未配置 SMTP 时）。
func NewEngine(graph *flow.Graph, classifier Classifier, summarizer Summarizer, notifier Notifier) *Engine {
	return &Engine{
		graph:      graph,
		classifier: classifier,
		summarizer: summarizer,
		notifier:   notifier,
	}
}

// Greeting returns the entry node's question, unsubstituted, for new sessions.
func (e *Engine) Greeting() string {
	node, ok := e.graph.Get(EntryNodeID)
	if !ok || node.Question == "" {
		return msgDefaultGreeting
	}
	return node.Question
}

// Turn advances the session by one user message and returns the reply text.
// No failure aborts a turn: structural errors degrade to the terminal
// apology, invalid input re-prompts on the same node, external failures
// collapse to fallback values.
func (e *Engine) Turn(ctx context.Context, sess *triage.Session, rawMessage string) string {
	raw := strings.TrimSpace(rawMessage)
	lower := strings.ToLower(raw)

	startNodeID := sess.CurrentNode
	nextNodeID, reply, label := e.step(ctx, sess, startNodeID, raw, lower)

	question := ""
	if node, ok := e.graph.Get(startNodeID); ok {
		question = node.Question
	}
	answer := label
	if answer == "" {
		answer = raw
	}
	sess.RecordAnswer(startNodeID, question, answer)
	sess.CurrentNode = nextNodeID

	if nextNodeID == TerminalNodeID {
		if final, ok := e.composeFinalReply(ctx, sess); ok {
			return final
		}
	}
	return reply
}

// step applies one node's transition rule. It returns the next node id, the
// reply text, and — for multiple choice — the resolved display label recorded
// as the session's answer.
func (e *Engine) step(ctx context.Context, sess *triage.Session, nodeID, raw, lower string) (string, string, string) {
	node, ok := e.graph.Get(nodeID)
	if !ok {
		return TerminalNodeID, msgNodeMissing, ""
	}

	reply := renderQuestion(node.Question, raw)

	if node.Meta.Specialty != "" {
		sess.ChosenSpecialty = node.Meta.Specialty
		reply += "\n\n【更多資訊】請參考: " + infoBaseURL + "?specialty=" + url.QueryEscape(node.Meta.Specialty)
	}

	switch node.Type {
	case flow.TypeEnd:
		return TerminalNodeID, reply, ""

	case flow.TypeFunction:
		if node.Handler != classifyHandlerName {
			return TerminalNodeID, msgFeatureUnavailable, ""
		}
		category := e.classifier.Classify(ctx, raw)
		entry, ok := categoryEntry[category]
		if !ok {
			entry = categoryEntry[symptom.Default]
		}
		next, question := e.advance(entry, raw)
		return next, question, ""

	case flow.TypeOpenEnded:
		return e.stepOpenEnded(ctx, sess, nodeID, node, raw, lower, reply)

	case flow.TypeYesNo:
		if yesTokens[lower] {
			next, question := e.advance(node.NextIfYes, raw)
			return next, question, ""
		}
		if noTokens[lower] {
			next, question := e.advance(node.NextIfNo, raw)
			return next, question, ""
		}
		return nodeID, msgAnswerYesNo, ""

	case flow.TypeMultipleChoice:
		if !slices.Contains(node.Options, lower) {
			return nodeID, msgInvalidOption, ""
		}
		label := node.OptionLabels[lower]
		if label == "" {
			label = raw
		}
		if clinicNodeIDs[nodeID] {
			sess.SelectedCity = label
		}
		next, question := e.advance(node.Choices[lower], raw)
		return next, question, label

	default:
		return TerminalNodeID, msgThanks, ""
	}
}

// stepOpenEnded handles the three open-ended nodes with special behavior.
// Plain open-ended nodes park on themselves; the authored flows drive every
// ordinary advance through yes_no or multiple_choice nodes.
func (e *Engine) stepOpenEnded(ctx context.Context, sess *triage.Session, nodeID string, node flow.Node, raw, lower, reply string) (string, string, string) {
	switch nodeID {
	case emailNodeID:
		sess.Email = raw
		summary := e.summarizer.Summarize(ctx, sess.Transcript())
		e.dispatchSummaryMail(raw, summary)
		next := node.Next
		if next == "" {
			next = TerminalNodeID
		}
		return next, reply, ""

	case ageNodeID:
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 || age > 120 {
			return nodeID, msgInvalidAge, ""
		}
		next, question := e.advance(node.Next, raw)
		return next, question, ""

	case EntryNodeID:
		if raw == "" {
			return nodeID, reply, ""
		}
		// 把用户的第一句话原样带进下一个节点，让“直接输入症状”也能命中分类。
		next := node.Next
		if next == "" {
			next = TerminalNodeID
		}
		return e.step(ctx, sess, next, raw, lower)

	default:
		return nodeID, reply, ""
	}
}

// advance resolves the destination node and its substituted question.
// A dangling reference degrades to the terminal apology.
func (e *Engine) advance(nextID, symptomText string) (string, string) {
	if nextID == "" {
		nextID = TerminalNodeID
	}
	node, ok := e.graph.Get(nextID)
	if !ok {
		if nextID == TerminalNodeID {
			return TerminalNodeID, ""
		}
		return TerminalNodeID, msgNodeMissing
	}
	return nextID, renderQuestion(node.Question, symptomText)
}

// dispatchSummaryMail fires the notification without blocking the reply.
// The outcome is logged only; the user never sees a delivery error.
func (e *Engine) dispatchSummaryMail(address string, summary triage.Summary) {
	if e.notifier == nil || address == "" {
		return
	}

	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Printf("[engine] encode summary mail body: %v", err)
		return
	}

	go func() {
		if err := e.notifier.Send(context.Background(), address, string(body)); err != nil {
			log.Printf("[engine] summary mail to %s failed: %v", address, err)
		}
	}()
}

// composeFinalReply builds the terminal message: the end node's question, the
// Chinese summary, the admission-note summary, and the info link when a
// specialty or city was recorded along the way.
func (e *Engine) composeFinalReply(ctx context.Context, sess *triage.Session) (string, bool) {
	endNode, ok := e.graph.Get(TerminalNodeID)
	if !ok || endNode.Question == "" {
		return "", false
	}

	summary := e.summarizer.Summarize(ctx, sess.Transcript())

	var b strings.Builder
	b.WriteString(endNode.Question)
	b.WriteString("\n\n【中文總結】")
	b.WriteString(summary.ChineseSummary)
	b.WriteString("\n\n【Summary Note】")
	b.WriteString(summary.AdmissionNote)

	if link := buildInfoLink(sess.ChosenSpecialty, sess.SelectedCity); link != "" {
		b.WriteString("\n\n【更多資訊】請參考: ")
		b.WriteString(link)
	}
	return b.String(), true
}

// buildInfoLink concatenates the non-empty specialty/city query parameters,
// specialty first, with no trailing separator.
func buildInfoLink(specialty, city string) string {
	if specialty == "" && city == "" {
		return ""
	}

	params := make([]string, 0, 2)
	if specialty != "" {
		params = append(params, "specialty="+url.QueryEscape(specialty))
	}
	if city != "" {
		params = append(params, "city="+url.QueryEscape(city))
	}
	return infoBaseURL + "?" + strings.Join(params, "&")
}
