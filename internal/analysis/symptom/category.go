package symptom

import "strings"

// Category 表示症狀分類器可以回傳的主訴類別。
type Category string

const (
	AbdominalPain Category = "abdominal pain"
	JointPain     Category = "joint pain"
	LegNumbness   Category = "numbness feeling or tingling feeling over legs"
	NeckMass      Category = "neck mass"
	LowerBackPain Category = "lower back pain"
	EasyThirsty   Category = "easy thirsty"
	Other         Category = "other"
)

// Default is returned when the model reply matches nothing or the call fails.
// Classification failure must never block the conversation.
const Default = AbdominalPain

// keywordPriority lists the substring probes in matching order; the first hit
// wins. "neck mass" is probed before the numbness phrase so a reply naming
// both resolves the way the category list ranks them.
var keywordPriority = []struct {
	probe    string
	category Category
}{
	{"abdominal", AbdominalPain},
	{"joint", JointPain},
	{"neck mass", NeckMass},
	{"numbness feeling or tingling feeling over legs", LegNumbness},
	{"lower back pain", LowerBackPain},
	{"easy thirsty", EasyThirsty},
}

// ParseCategory resolves a raw model reply to a category by case-insensitive
// substring match. The boolean reports whether any keyword matched; callers
// fall back to Default when it is false.
func ParseCategory(reply string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	if normalized == "" {
		return Default, false
	}
	for _, entry := range keywordPriority {
		if strings.Contains(normalized, entry.probe) {
			return entry.category, true
		}
	}
	return Default, false
}
