package interp

import (
	"context"
	"strings"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// Spoken replies used when keyword matching picks the action and no model
// reply is available.
var defaultReplies = map[int]string{
	models.ActionNone:     "I understand.",
	models.ActionForward:  "Moving forward now.",
	models.ActionBackward: "Going backward.",
	models.ActionLeft:     "Turning left.",
	models.ActionRight:    "Turning right.",
}

func defaultReply(action int) string {
	if r, ok := defaultReplies[action]; ok {
		return r
	}
	return defaultReplies[models.ActionNone]
}

// Keyword groups checked in order; the first group with a hit wins.
var keywordGroups = []struct {
	action int
	words  []string
}{
	{models.ActionForward, []string{"forward", "ahead", "straight", "front"}},
	{models.ActionBackward, []string{"backward", "back", "reverse"}},
	{models.ActionLeft, []string{"left"}},
	{models.ActionRight, []string{"right"}},
}

// MatchKeywords classifies an utterance with simple substring matching.
// Anything that matches no movement keyword becomes a conversation with a
// gentle prompt to try again.
func MatchKeywords(utterance string) models.Decision {
	lower := strings.ToLower(utterance)
	for _, g := range keywordGroups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				return models.Decision{
					Action: g.action,
					Reply:  defaultReply(g.action),
					Kind:   models.KindCommand,
				}
			}
		}
	}
	return models.Decision{
		Action: models.ActionNone,
		Reply:  "I'm not sure I understood that, but I'm here to chat or help you move around!",
		Kind:   models.KindConversation,
	}
}

// Keywords is a zero-dependency Interpreter backed by MatchKeywords. It
// serves offline setups and tests.
type Keywords struct{}

func (Keywords) Interpret(_ context.Context, utterance string) (models.Decision, error) {
	return MatchKeywords(utterance), nil
}
