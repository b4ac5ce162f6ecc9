package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Question is a validated, normalized model output item. Both accepted
// external shapes resolve to this type; no other shape survives the parser
// boundary.
type Question struct {
	Text         string
	Options      []string
	CorrectIndex int
	Difficulty   string
	Explanation  string
}

// ParseQuestions turns raw model text into validated questions. It unwraps
// code fences, attempts a strict JSON parse, and on syntax failure walks an
// ordered chain of repair heuristics, re-parsing after each. Shape
// validation rejects the whole batch on any invalid item: a short batch
// cannot render a well-formed quiz, so partial acceptance is never useful.
func ParseQuestions(raw string) ([]Question, error) {
	text := stripFences(raw)

	candidates, err := decodePayload(text)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, shapeError(err.Error())
		}
		candidates, err = runRepairChain(text)
		if err != nil {
			return nil, err
		}
	}

	return normalizeBatch(candidates)
}

// Repair heuristics in fixed order. Each is a pure text transform; the
// chain is cumulative, with a fresh parse attempt after every step.
var repairs = []func(string) string{
	sanitizeControlChars,
	repairTruncation,
	repairBadEscapes,
}

func runRepairChain(text string) ([]externalQuestion, error) {
	current := text
	var lastErr error
	for _, repair := range repairs {
		current = repair(current)
		candidates, err := decodePayload(current)
		if err == nil {
			return candidates, nil
		}
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, shapeError(err.Error())
		}
		lastErr = err
	}
	return nil, malformedError(text, lastErr)
}

// externalQuestion accepts both payload shapes the model is known to emit:
// the canonical options-array form and the compact option_1..option_4 form.
type externalQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex"`
	Difficulty   string   `json:"difficulty"`
	Explanation  string   `json:"explanation"`

	Option1       string `json:"option_1"`
	Option2       string `json:"option_2"`
	Option3       string `json:"option_3"`
	Option4       string `json:"option_4"`
	CorrectAnswer *int   `json:"correct_answer"`
}

// decodePayload accepts either a bare array of questions or an object
// wrapping one under "questions".
func decodePayload(text string) ([]externalQuestion, error) {
	data := []byte(text)

	var arr []externalQuestion
	arrErr := json.Unmarshal(data, &arr)
	if arrErr == nil {
		return arr, nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(arrErr, &syntaxErr) {
		return nil, arrErr
	}

	var wrapper struct {
		Questions []externalQuestion `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Questions == nil {
		return nil, fmt.Errorf("payload contains no questions array")
	}
	return wrapper.Questions, nil
}

func normalizeBatch(candidates []externalQuestion) ([]Question, error) {
	if len(candidates) == 0 {
		return nil, shapeError("empty question batch")
	}

	questions := make([]Question, 0, len(candidates))
	for i, c := range candidates {
		q, err := normalizeQuestion(c)
		if err != nil {
			return nil, shapeError(fmt.Sprintf("question %d: %v", i+1, err))
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func normalizeQuestion(c externalQuestion) (Question, error) {
	if strings.TrimSpace(c.Question) == "" {
		return Question{}, fmt.Errorf("missing question text")
	}

	var options []string
	var correct *int
	switch {
	case len(c.Options) > 0:
		options = c.Options
		correct = c.CorrectIndex
	case c.Option1 != "" || c.Option2 != "" || c.Option3 != "" || c.Option4 != "":
		options = []string{c.Option1, c.Option2, c.Option3, c.Option4}
		for _, opt := range options {
			if opt == "" {
				return Question{}, fmt.Errorf("compact shape missing an option field")
			}
		}
		correct = c.CorrectAnswer
	default:
		return Question{}, fmt.Errorf("missing options")
	}

	if len(options) != 4 {
		return Question{}, fmt.Errorf("expected 4 options, got %d", len(options))
	}
	if correct == nil {
		return Question{}, fmt.Errorf("missing correct answer index")
	}
	if *correct < 0 || *correct > 3 {
		return Question{}, fmt.Errorf("correct index %d outside [0,3]", *correct)
	}

	return Question{
		Text:         c.Question,
		Options:      options,
		CorrectIndex: *correct,
		Difficulty:   c.Difficulty,
		Explanation:  c.Explanation,
	}, nil
}

// stripFences removes leading/trailing markdown code-fence markers.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// recognized escape characters following a backslash inside a JSON string.
const escapeChars = `"\/bfnrtu`

// sanitizeControlChars walks the text preserving recognized escape
// sequences and replacing raw control bytes inside string literals with
// their canonical escapes (or a space when none exists). Whitespace control
// characters outside strings are legal JSON and left alone.
func sanitizeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString && c == '\\' && i+1 < len(s) && strings.IndexByte(escapeChars, s[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}

		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}

		if c < 0x20 {
			if !inString && (c == '\t' || c == '\n' || c == '\r') {
				b.WriteByte(c)
				continue
			}
			switch c {
			case '\b':
				b.WriteString(`\b`)
			case '\t':
				b.WriteString(`\t`)
			case '\n':
				b.WriteString(`\n`)
			case '\f':
				b.WriteString(`\f`)
			case '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(' ')
			}
			continue
		}

		b.WriteByte(c)
	}
	return b.String()
}

// repairTruncation closes what a cut-off response left open: it strips a
// dangling trailing comma, terminates an unterminated string, then appends
// the missing closers innermost first.
func repairTruncation(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	stack, inString := scanNesting(s)

	if !inString {
		trimmed := strings.TrimRight(s, " \t\r\n")
		if strings.HasSuffix(trimmed, ",") {
			s = strings.TrimSuffix(trimmed, ",")
			stack, inString = scanNesting(s)
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			b.WriteByte('}')
		case '[':
			b.WriteByte(']')
		}
	}
	return b.String()
}

// scanNesting returns the stack of unclosed openers and whether the text
// ends inside a string literal.
func scanNesting(s string) ([]byte, bool) {
	var stack []byte
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack, inString
}

// repairBadEscapes escapes any backslash not followed by a recognized
// escape character.
func repairBadEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && strings.IndexByte(escapeChars, s[i+1]) >= 0 {
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func shapeError(detail string) *ParseError {
	return &ParseError{Kind: KindInvalidShape, Detail: detail}
}

func malformedError(original string, lastErr error) *ParseError {
	braces, brackets := balanceCounts(original)
	pe := &ParseError{
		Kind:           KindMalformed,
		BraceBalance:   braces,
		BracketBalance: brackets,
		Detail:         "unrepairable JSON",
	}
	var syntaxErr *json.SyntaxError
	if errors.As(lastErr, &syntaxErr) {
		pe.Offset = syntaxErr.Offset
		pe.Detail = syntaxErr.Error()
	} else if lastErr != nil {
		pe.Detail = lastErr.Error()
	}
	return pe
}

// balanceCounts reports open-minus-close counts for braces and brackets,
// ignoring characters inside string literals.
func balanceCounts(s string) (braces, brackets int) {
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			braces++
		case '}':
			braces--
		case '[':
			brackets++
		case ']':
			brackets--
		}
	}
	return braces, brackets
}
