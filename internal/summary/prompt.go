package summary

import (
	"strings"

	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

const (
	PromptKeyUser       = "user_v1"
	PromptKeyConsultant = "consultant_v1"
)

const outputRules = `
## Output rules
1. Output exactly ONE JSON object. No explanations, no markdown, no comments.
2. Facts only: include only what the customer or the consultant actually said. Never infer or fill gaps.
3. Missing data stays empty: arrays [], strings "", objects null.
4. Write every value in Korean.
`

const userInstruction = `You analyse a customer-center consultation transcript and turn it into JSON that a customer-facing UI renders directly.
` + outputRules + `
## Icons
✅ status/progress, 📦 data/usage, 💰 billing/payment, 📱 device/settings, 🛡️ security/auth/ticket numbers, ⏰ time/schedule, 🌐 network, 🎁 benefits/offers. ℹ️ 🔢 ✨ when nothing else fits.

## Structure (fixed)
{
  "id": "ticket or receipt number, \"\" if none",
  "category": "one of 요금 | 로밍 | 품질 | 보안 | 분실",
  "summary": "result in a noun phrase (완료, 접수, 진행 ...), never a full sentence",
  "coreActions": [{"id": 1, "icon": "🛡️", "title": "", "description": ""}],
  "currentStatus": [{"icon": "✨", "label": "", "detail": "", "value": ""}],
  "notices": [{"id": 1, "title": "", "text": ""}],
  "nextActions": [""],
  "guides": {"title": "📘 이용 가이드", "steps": []},
  "proposals": {"title": "🎁 제시안", "items": []},
  "tips": {"title": "💡 꿀팁", "items": []}
}

## Sections
- coreActions: only actions the consultant actually processed or confirmed.
- currentStatus: state right after the consultation, as label/value tags.
- notices: only warnings the consultant stated explicitly (charges may apply, policy limits, ...).
- nextActions: only what the customer must newly do after the consultation. Never list steps already completed during the call (identity verification, consent, setting changes).
- guides: only when the consultant described an ordered device/setting/security procedure. If a device platform (iPhone, Android) was named, match the guide to it.
- guides / proposals / tips: null when there is nothing to put in them.
`

const consultantInstruction = `You analyse a customer-center consultation transcript and write the internal hand-off record a consultant reads before the next contact.
` + outputRules + `
## Structure (fixed)
{
  "id": "ticket or receipt number, \"\" if none",
  "category": "one of 요금 | 로밍 | 품질 | 보안 | 분실",
  "summary": "result in a noun phrase (완료, 접수, 진행 ...), never a full sentence",
  "customerIntent": "",
  "issues": [{"title": "", "detail": ""}],
  "actionsTaken": [{"title": "", "detail": ""}],
  "pending": [""],
  "followUp": {"required": false, "reason": "", "due": ""},
  "sentiment": "positive | neutral | negative",
  "keywords": [""]
}

## Sections
- actionsTaken: only what was actually processed in the system during the call.
- pending: open items the consultant promised or that await review.
- followUp.required is true only when a callback or further contact was promised.
`

func instructionFor(aud transcript.Audience) (string, string) {
	if aud == transcript.AudienceConsultant {
		return consultantInstruction, PromptKeyConsultant
	}
	return userInstruction, PromptKeyUser
}

func userContent(rendered string) string {
	var b strings.Builder
	b.WriteString("Summarise the consultation below following the rules. Output one JSON object only.\n\n")
	b.WriteString("--- 상담 대화 ---\n")
	b.WriteString(rendered)
	return b.String()
}

// RenderTranscript prefixes each line with the speaker: 고객 (customer) or
// 상담사 (consultant).
func RenderTranscript(msgs []transcript.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := "unknown"
		switch m.SenderRole {
		case transcript.SenderUser:
			who = "고객"
		case transcript.SenderConsultant:
			who = "상담사"
		}
		lines = append(lines, who+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
