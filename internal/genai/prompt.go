package genai

import (
	"fmt"
	"strings"
)

// Focus-specific instruction rules, selected by case-insensitive substring
// match on the caller's exam focus.
const (
	ruleSSC = "Emphasize quantitative aptitude the SSC way: geometry, trigonometry, " +
		"algebra and mensuration problems with precise numeric distractors."
	ruleBank = "Emphasize banking-exam arithmetic: simplification, percentages, " +
		"ratios, interest and data-interpretation style questions."
	ruleUPSC = "Emphasize UPSC-style statement-based analytical questions: present " +
		"numbered statements and ask which are correct."
	ruleGeneric = "Keep a balanced coverage of the topic: mix factual recall, " +
		"conceptual understanding and light application questions."
)

const systemTemplate = `You are a quiz generator for a competitive-exam practice app.
Respond with a single JSON object of the exact shape:
{"questions":[{"question":"...","options":["...","...","...","..."],"correctIndex":0,"difficulty":"%s","explanation":""}]}
Rules:
- "options" must contain exactly 4 strings with exactly one correct answer.
- "correctIndex" is the 0-based index of the correct option.
- "difficulty" must be "%s" for every question.
- Leave "explanation" as an empty string.
- Output only the JSON object. No markdown fences, no prose before or after.`

// BuildPrompt produces the system and user prompt pair for a generation
// request. Pure function of its inputs.
func BuildPrompt(topic, difficulty, focus string, count int) (system, user string) {
	system = fmt.Sprintf(systemTemplate, difficulty, difficulty)
	user = fmt.Sprintf(
		"Generate exactly %d %s multiple-choice questions on the topic %q for a student preparing for %s.\n%s",
		count, difficulty, topic, focus, focusRule(focus),
	)
	return system, user
}

func focusRule(focus string) string {
	lowered := strings.ToLower(focus)
	switch {
	case strings.Contains(lowered, "ssc"):
		return ruleSSC
	case strings.Contains(lowered, "bank"):
		return ruleBank
	case strings.Contains(lowered, "upsc"):
		return ruleUPSC
	default:
		return ruleGeneric
	}
}
