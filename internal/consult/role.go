package consult

import (
	"strings"

	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

// consultantLabels are the sender labels clients use for the consultant
// side. Anything else, including an empty label, is the requester.
var consultantLabels = map[string]struct{}{
	"consultant": {},
	"admin":      {},
	"agent":      {},
	"counselor":  {},
}

func NormalizeSenderRole(label string) transcript.SenderRole {
	if _, ok := consultantLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return transcript.SenderConsultant
	}
	return transcript.SenderUser
}
