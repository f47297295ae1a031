package decision

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/nvandessel/alliance/internal/models"
)

// ParseMethod records which rule of the fallback chain produced an investment.
type ParseMethod string

const (
	MethodMarker  ParseMethod = "marker"  // "FINAL DECISION: N"
	MethodKeyword ParseMethod = "keyword" // "invest N engineers", "decision: N", "allocate N"
	MethodTail    ParseMethod = "tail"    // last in-range number near the end
	MethodDefault ParseMethod = "default" // nothing usable; NeutralInvestment
)

// NeutralInvestment is the last-resort answer when a reply contains no usable number.
const NeutralInvestment = 12

// tailLines is how many trailing lines the tail scan inspects.
const tailLines = 10

// maxStepLen bounds each parsed reasoning step.
const maxStepLen = 400

// ErrEmptyReply is returned when a backend produced no text at all.
var ErrEmptyReply = errors.New("empty reply")

var (
	markerPattern   = regexp.MustCompile(`(?i)FINAL DECISION:\s*(\d+)`)
	keywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)invest\s+(\d+)\s+engineers`),
		regexp.MustCompile(`(?i)decision:\s*(\d+)`),
		regexp.MustCompile(`(?i)allocat(?:e|ing)\s+(\d+)`),
	}
	numberPattern = regexp.MustCompile(`\b(\d+)\b`)
)

// ParseInvestment extracts an investment from free text. The order is a contract:
// explicit marker, then keyword phrases, then the last in-range number in the
// final lines, then NeutralInvestment. Marker and keyword matches are returned
// as written, even above 25; callers clamp.
func ParseInvestment(text string) (int, ParseMethod, error) {
	if strings.TrimSpace(text) == "" {
		return 0, "", ErrEmptyReply
	}

	if m := markerPattern.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), MethodMarker, nil
	}

	for _, p := range keywordPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return atoi(m[1]), MethodKeyword, nil
		}
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	for i := len(lines) - 1; i >= 0; i-- {
		for _, m := range numberPattern.FindAllStringSubmatch(lines[i], -1) {
			n := atoi(m[1])
			if n >= models.MinInvestment && n <= models.MaxInvestment {
				return n, MethodTail, nil
			}
		}
	}

	return NeutralInvestment, MethodDefault, nil
}

// atoi parses a run of digits. Overflow only happens far above the valid range,
// so it saturates.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

type section struct {
	title  string
	header *regexp.Regexp
	until  string
}

var sections = []section{
	{"Pattern Analysis", regexp.MustCompile(`(?i)1\.\s*PATTERN ANALYSIS[:\s]+`), "2."},
	{"Payoff Calculations", regexp.MustCompile(`(?i)2\.\s*PAYOFF CALCULATIONS[:\s]+`), "3."},
	{"Strategic Reasoning", regexp.MustCompile(`(?i)3\.\s*STRATEGIC REASONING[:\s]+`), "4."},
	{"Decision", regexp.MustCompile(`(?i)4\.\s*DECISION[:\s]+`), "5."},
	{"Confidence", regexp.MustCompile(`(?i)5\.\s*CONFIDENCE(?:\s*&\s*CONTINGENCY)?[:\s]+`), "FINAL"},
}

// ParseSteps splits a reply into the numbered sections requested by the decision
// prompt. Without that structure it falls back to paragraphs, and finally to a
// single "Analysis" step.
func ParseSteps(text string) []models.ReasoningStep {
	var steps []models.ReasoningStep

	upper := strings.ToUpper(text)
	for _, s := range sections {
		loc := s.header.FindStringIndex(text)
		if loc == nil {
			continue
		}
		end := len(text)
		if i := strings.Index(upper[loc[1]:], s.until); i >= 0 {
			end = loc[1] + i
		}
		content := strings.TrimSpace(text[loc[1]:end])
		steps = append(steps, models.ReasoningStep{Step: s.title, Content: truncate(content)})
	}
	if len(steps) > 0 {
		return steps
	}

	n := 0
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) <= 20 {
			continue
		}
		n++
		steps = append(steps, models.ReasoningStep{Step: "Reasoning " + strconv.Itoa(n), Content: truncate(para)})
		if n == 6 {
			break
		}
	}
	if len(steps) > 0 {
		return steps
	}

	return []models.ReasoningStep{{Step: "Analysis", Content: truncate(text)}}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxStepLen {
		return s
	}
	return string(r[:maxStepLen]) + "..."
}
