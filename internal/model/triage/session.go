package triage

import (
	"strings"
	"time"
)

// Session captures one user's in-progress triage conversation.
type Session struct {
	ID          string    `json:"id"`
	CurrentNode string    `json:"currentNode"`
	Answers     []Answer  `json:"answers"`
	CreatedAt   time.Time `json:"createdAt"`

	// Side-effect scalars collected mid-conversation, consumed at termination.
	ChosenSpecialty string `json:"chosenSpecialty,omitempty"`
	SelectedCity    string `json:"selectedCity,omitempty"`
	Email           string `json:"email,omitempty"`
}

// Answer pairs the question text at time of visit with the resolved answer
// label for one node.
type Answer struct {
	NodeID   string `json:"nodeId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RecordAnswer stores the answer for nodeID, overwriting a prior visit in
// place so retries keep the original visitation order.
func (s *Session) RecordAnswer(nodeID, question, answer string) {
	for i := range s.Answers {
		if s.Answers[i].NodeID == nodeID {
			s.Answers[i].Question = question
			s.Answers[i].Answer = answer
			return
		}
	}
	s.Answers = append(s.Answers, Answer{NodeID: nodeID, Question: question, Answer: answer})
}

// Transcript renders the accumulated Q&A pairs as the text block fed to the
// summarizer.
func (s *Session) Transcript() string {
	var b strings.Builder
	for _, a := range s.Answers {
		b.WriteString("Q: ")
		b.WriteString(a.Question)
		b.WriteString("\nA: ")
		b.WriteString(a.Answer)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Summary is the structured output of the summarization adapter.
type Summary struct {
	ChineseSummary string `json:"chinese_summary"`
	AdmissionNote  string `json:"admission_note"`
}
