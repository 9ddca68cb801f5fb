package triage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dodohu918/Medical-chatbot/internal/analysis/symptom"
	"github.com/dodohu918/Medical-chatbot/internal/model/flow"
	"github.com/dodohu918/Medical-chatbot/internal/model/triage"
)

type stubClassifier struct {
	category symptom.Category
}

func (c stubClassifier) Classify(_ context.Context, _ string) symptom.Category {
	return c.category
}

type stubSummarizer struct {
	summary triage.Summary
}

func (s stubSummarizer) Summarize(_ context.Context, _ string) triage.Summary {
	return s.summary
}

type recordingNotifier struct {
	mu      sync.Mutex
	address string
	body    string
	sent    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan struct{}, 1)}
}

func (n *recordingNotifier) Send(_ context.Context, address, body string) error {
	n.mu.Lock()
	n.address = address
	n.body = body
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func testGraph() *flow.Graph {
	return flow.Merge(flow.Collection{Nodes: map[string]flow.Node{
		"greeting": {
			Type:     flow.TypeOpenEnded,
			Question: "您好！請直接描述您哪裡不舒服。",
			Next:     "classify_symptom",
		},
		"classify_symptom": {
			Type:    flow.TypeFunction,
			Handler: "classifySymptomHandler",
		},
		"abdomen_start": {
			Type:      flow.TypeYesNo,
			Question:  "您提到{{SYMPTOM}}，這樣的狀況已經持續超過三天了嗎？",
			NextIfYes: "abdomen_refer",
			NextIfNo:  "get_age",
		},
		"abdomen_refer": {
			Type:      flow.TypeYesNo,
			Question:  "建議您掛「肝膽腸胃科」。需要我協助您尋找診所嗎？",
			Meta:      flow.Meta{Specialty: "肝膽腸胃科"},
			NextIfYes: "find_clinic_north",
			NextIfNo:  "get_age",
		},
		"find_clinic_north": {
			Type:         flow.TypeMultipleChoice,
			Question:     "請選擇縣市：",
			Options:      []string{"north", "south"},
			OptionLabels: map[string]string{"north": "台北市", "south": "高雄市"},
			Choices:      map[string]string{"north": "get_age", "south": "get_age"},
		},
		"get_age": {
			Type:     flow.TypeOpenEnded,
			Question: "請問您的年齡是？",
			Next:     "get_email",
		},
		"get_email": {
			Type:     flow.TypeOpenEnded,
			Question: "請留下您的電子郵件。",
			Next:     "end",
		},
		"note": {
			Type:     flow.TypeOpenEnded,
			Question: "請補充說明您的症狀。",
			Next:     "get_age",
		},
		"end": {
			Type:     flow.TypeEnd,
			Question: "感謝您的回覆，以下是本次問診的摘要：",
		},
	}})
}

func testEngine(category symptom.Category, summary triage.Summary, notifier Notifier) *Engine {
	return NewEngine(testGraph(), stubClassifier{category: category}, stubSummarizer{summary: summary}, notifier)
}

func testSession(nodeID string) triage.Session {
	return triage.Session{ID: "sess-1", CurrentNode: nodeID, CreatedAt: time.Now().UTC()}
}

func TestGreetingUsesEntryNodeQuestion(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	if got := engine.Greeting(); got != "您好！請直接描述您哪裡不舒服。" {
		t.Fatalf("unexpected greeting: %q", got)
	}
}

func TestGreetingFallsBackWhenNodeMissing(t *testing.T) {
	engine := NewEngine(flow.Merge(flow.Collection{Nodes: map[string]flow.Node{}}), stubClassifier{}, stubSummarizer{}, nil)
	if got := engine.Greeting(); got != msgDefaultGreeting {
		t.Fatalf("unexpected fallback greeting: %q", got)
	}
}

// 首句非空时，问候节点立即把同一句话带进分类节点。
func TestGreetingFastPathCarriesFirstUtterance(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession(EntryNodeID)

	reply := engine.Turn(context.Background(), &sess, "我肚子痛")

	if sess.CurrentNode != "abdomen_start" {
		t.Fatalf("expected auto-advance to abdomen_start, got %s", sess.CurrentNode)
	}
	if !strings.Contains(reply, "我肚子痛") {
		t.Fatalf("expected symptom substituted into destination question, got %q", reply)
	}
	if len(sess.Answers) != 1 || sess.Answers[0].Answer != "我肚子痛" {
		t.Fatalf("expected first utterance recorded, got %+v", sess.Answers)
	}
}

func TestGreetingEmptyMessageStaysPut(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession(EntryNodeID)

	reply := engine.Turn(context.Background(), &sess, "   ")

	if sess.CurrentNode != EntryNodeID {
		t.Fatalf("expected to stay on greeting, got %s", sess.CurrentNode)
	}
	if reply != "您好！請直接描述您哪裡不舒服。" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestClassificationDefaultCategoryKeepsConversationGoing(t *testing.T) {
	// 分类适配器失败时返回默认类别；引擎照常走默认主诉流程。
	engine := testEngine(symptom.Default, triage.Summary{}, nil)
	sess := testSession("classify_symptom")

	engine.Turn(context.Background(), &sess, "講不清楚的描述")

	if sess.CurrentNode != "abdomen_start" {
		t.Fatalf("expected default category node, got %s", sess.CurrentNode)
	}
}

func TestYesNoBranches(t *testing.T) {
	for _, token := range []string{"yes", "y", "是", "1", "YES"} {
		sess := testSession("abdomen_start")
		engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
		engine.Turn(context.Background(), &sess, token)
		if sess.CurrentNode != "abdomen_refer" {
			t.Fatalf("token %q: expected nextIfYes, got %s", token, sess.CurrentNode)
		}
	}

	for _, token := range []string{"no", "n", "否", "2", "No"} {
		sess := testSession("abdomen_start")
		engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
		engine.Turn(context.Background(), &sess, token)
		if sess.CurrentNode != "get_age" {
			t.Fatalf("token %q: expected nextIfNo, got %s", token, sess.CurrentNode)
		}
	}
}

func TestYesNoInvalidTokenReprompts(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("abdomen_start")

	first := engine.Turn(context.Background(), &sess, "也許吧")
	second := engine.Turn(context.Background(), &sess, "也許吧")

	if sess.CurrentNode != "abdomen_start" {
		t.Fatalf("invalid token must not advance, got %s", sess.CurrentNode)
	}
	if first != msgAnswerYesNo || second != first {
		t.Fatalf("expected identical fixed re-prompt, got %q then %q", first, second)
	}
}

func TestSpecialtyMetaRecordedOnVisit(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("abdomen_refer")

	engine.Turn(context.Background(), &sess, "是")

	if sess.ChosenSpecialty != "肝膽腸胃科" {
		t.Fatalf("expected specialty recorded, got %q", sess.ChosenSpecialty)
	}
	if sess.CurrentNode != "find_clinic_north" {
		t.Fatalf("unexpected node: %s", sess.CurrentNode)
	}
}

func TestMultipleChoiceMixedCaseMatchesAndRecordsLabel(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("find_clinic_north")

	engine.Turn(context.Background(), &sess, "NORTH")

	if sess.CurrentNode != "get_age" {
		t.Fatalf("expected advance via next[north], got %s", sess.CurrentNode)
	}
	if sess.SelectedCity != "台北市" {
		t.Fatalf("expected mapped label as city, got %q", sess.SelectedCity)
	}
	if len(sess.Answers) != 1 || sess.Answers[0].Answer != "台北市" {
		t.Fatalf("expected label recorded as answer, got %+v", sess.Answers)
	}
}

func TestMultipleChoiceInvalidTokenReprompts(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("find_clinic_north")

	first := engine.Turn(context.Background(), &sess, "west")
	second := engine.Turn(context.Background(), &sess, "west")

	if sess.CurrentNode != "find_clinic_north" {
		t.Fatalf("invalid option must not advance, got %s", sess.CurrentNode)
	}
	if first != msgInvalidOption || second != first {
		t.Fatalf("expected identical fixed re-prompt, got %q then %q", first, second)
	}
}

func TestAgeValidationRejectsOutOfRange(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)

	for _, input := range []string{"150", "-1", "abc", "12.5"} {
		sess := testSession("get_age")
		reply := engine.Turn(context.Background(), &sess, input)
		if sess.CurrentNode != "get_age" {
			t.Fatalf("input %q: expected to stay on get_age, got %s", input, sess.CurrentNode)
		}
		if reply != msgInvalidAge {
			t.Fatalf("input %q: unexpected reply %q", input, reply)
		}
	}
}

func TestAgeValidationAcceptsValidAge(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("get_age")

	reply := engine.Turn(context.Background(), &sess, "40")

	if sess.CurrentNode != "get_email" {
		t.Fatalf("expected advance to get_email, got %s", sess.CurrentNode)
	}
	if reply != "請留下您的電子郵件。" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestPlainOpenEndedNodeParks(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("note")

	reply := engine.Turn(context.Background(), &sess, "晚上比較痛")

	if sess.CurrentNode != "note" {
		t.Fatalf("plain open-ended node must not auto-advance, got %s", sess.CurrentNode)
	}
	if reply != "請補充說明您的症狀。" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestEmailNodeSummarizesAndNotifiesAsync(t *testing.T) {
	notifier := newRecordingNotifier()
	summary := triage.Summary{ChineseSummary: "病人腹痛三天。", AdmissionNote: "This is a 40-year-old patient..."}
	engine := testEngine(symptom.AbdominalPain, summary, notifier)

	sess := testSession("get_email")
	sess.RecordAnswer("greeting", "您好！", "我肚子痛")

	reply := engine.Turn(context.Background(), &sess, "user@example.com")

	if sess.Email != "user@example.com" {
		t.Fatalf("expected email persisted, got %q", sess.Email)
	}
	if sess.CurrentNode != TerminalNodeID {
		t.Fatalf("expected terminal, got %s", sess.CurrentNode)
	}
	if !strings.Contains(reply, "【中文總結】病人腹痛三天。") {
		t.Fatalf("terminal reply missing chinese summary: %q", reply)
	}

	select {
	case <-notifier.sent:
	case <-time.After(time.Second):
		t.Fatal("notification was never dispatched")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.address != "user@example.com" {
		t.Fatalf("unexpected recipient: %q", notifier.address)
	}
	if !strings.Contains(notifier.body, "病人腹痛三天。") {
		t.Fatalf("mail body missing summary: %q", notifier.body)
	}
}

func TestTerminalReplyAlwaysHasBothSections(t *testing.T) {
	// 总结适配器解析失败时回传占位文案，终局回复仍要包含两个段落。
	summary := triage.Summary{ChineseSummary: "（無法解析）", AdmissionNote: "（無法解析）"}
	engine := testEngine(symptom.AbdominalPain, summary, nil)
	sess := testSession("get_email")

	reply := engine.Turn(context.Background(), &sess, "user@example.com")

	if !strings.Contains(reply, "【中文總結】（無法解析）") {
		t.Fatalf("missing chinese section: %q", reply)
	}
	if !strings.Contains(reply, "【Summary Note】（無法解析）") {
		t.Fatalf("missing admission note section: %q", reply)
	}
	if !strings.HasPrefix(reply, "感謝您的回覆") {
		t.Fatalf("terminal reply must start with end node question: %q", reply)
	}
}

func TestTerminalReplyAppendsInfoLink(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{ChineseSummary: "摘要", AdmissionNote: "note"}, nil)
	sess := testSession("get_email")
	sess.ChosenSpecialty = "肝膽腸胃科"
	sess.SelectedCity = "台北市"

	reply := engine.Turn(context.Background(), &sess, "user@example.com")

	link := buildInfoLink("肝膽腸胃科", "台北市")
	if !strings.Contains(reply, link) {
		t.Fatalf("terminal reply missing info link %q: %q", link, reply)
	}
}

func TestMissingNodeDegradesToTerminal(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{ChineseSummary: "摘要", AdmissionNote: "note"}, nil)
	sess := testSession("does_not_exist")

	reply := engine.Turn(context.Background(), &sess, "hello")

	if sess.CurrentNode != TerminalNodeID {
		t.Fatalf("expected terminal, got %s", sess.CurrentNode)
	}
	if reply == "" {
		t.Fatal("expected a concrete reply")
	}
}

func TestDanglingTransitionDegradesToApology(t *testing.T) {
	graph := flow.Merge(flow.Collection{Nodes: map[string]flow.Node{
		"q": {Type: flow.TypeYesNo, Question: "好嗎？", NextIfYes: "missing_target", NextIfNo: "missing_target"},
	}})
	engine := NewEngine(graph, stubClassifier{}, stubSummarizer{}, nil)
	sess := testSession("q")

	reply := engine.Turn(context.Background(), &sess, "是")

	if sess.CurrentNode != TerminalNodeID {
		t.Fatalf("expected terminal, got %s", sess.CurrentNode)
	}
	// 图里没有 end 节点，终局组装退回 step 的道歉文案。
	if reply != msgNodeMissing {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestUnknownHandlerEndsConversation(t *testing.T) {
	graph := flow.Merge(flow.Collection{Nodes: map[string]flow.Node{
		"fn": {Type: flow.TypeFunction, Handler: "somethingElse"},
	}})
	engine := NewEngine(graph, stubClassifier{}, stubSummarizer{}, nil)
	sess := testSession("fn")

	reply := engine.Turn(context.Background(), &sess, "hi")

	if sess.CurrentNode != TerminalNodeID {
		t.Fatalf("expected terminal, got %s", sess.CurrentNode)
	}
	if reply != msgFeatureUnavailable {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestUnknownNodeTypeEndsWithThanks(t *testing.T) {
	graph := flow.Merge(flow.Collection{Nodes: map[string]flow.Node{
		"odd": {Type: "mystery", Question: "?"},
	}})
	engine := NewEngine(graph, stubClassifier{}, stubSummarizer{}, nil)
	sess := testSession("odd")

	reply := engine.Turn(context.Background(), &sess, "hi")

	if sess.CurrentNode != TerminalNodeID {
		t.Fatalf("expected terminal, got %s", sess.CurrentNode)
	}
	if reply != msgThanks {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestBuildInfoLink(t *testing.T) {
	if got := buildInfoLink("", ""); got != "" {
		t.Fatalf("expected empty link, got %q", got)
	}
	if got := buildInfoLink("肝膽腸胃科", ""); !strings.HasSuffix(got, "?specialty=%E8%82%9D%E8%86%BD%E8%85%B8%E8%83%83%E7%A7%91") {
		t.Fatalf("unexpected specialty-only link: %q", got)
	}
	if got := buildInfoLink("", "台北市"); !strings.Contains(got, "?city=") || strings.Contains(got, "&") {
		t.Fatalf("city-only link must have no trailing separator: %q", got)
	}

	both := buildInfoLink("內科", "台北市")
	if !strings.Contains(both, "specialty=") || !strings.Contains(both, "&city=") {
		t.Fatalf("expected specialty then city, got %q", both)
	}
	if strings.HasSuffix(both, "&") {
		t.Fatalf("trailing separator must be trimmed: %q", both)
	}
}

func TestQuestionRecordedAtTimeOfVisit(t *testing.T) {
	engine := testEngine(symptom.AbdominalPain, triage.Summary{}, nil)
	sess := testSession("abdomen_start")

	engine.Turn(context.Background(), &sess, "是")

	if len(sess.Answers) != 1 {
		t.Fatalf("expected one answer, got %+v", sess.Answers)
	}
	a := sess.Answers[0]
	if a.NodeID != "abdomen_start" {
		t.Fatalf("answer keyed by turn-start node, got %s", a.NodeID)
	}
	if a.Question != "您提到{{SYMPTOM}}，這樣的狀況已經持續超過三天了嗎？" {
		t.Fatalf("expected raw node question, got %q", a.Question)
	}
	if a.Answer != "是" {
		t.Fatalf("unexpected answer: %q", a.Answer)
	}
}
