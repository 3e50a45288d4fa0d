// Package normalize turns raw candidate proof text into a best-effort
// compilable unit and a stable content hash. Normalization is used for
// hashing and deduplication only; the un-normalized code is what gets
// compiled.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MinCodeLength is the minimum cleaned-code length considered worth
// dispatching to the checker.
const MinCodeLength = 5

var (
	preamblePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Here is (?:the )?(?:proof|solution)[:\s]*`),
		regexp.MustCompile(`(?i)Here's (?:the )?(?:proof|solution)[:\s]*`),
		regexp.MustCompile(`(?i)Sure,? (?:here is|here's) (?:the )?(?:proof|solution)[:\s]*`),
		regexp.MustCompile(`(?i)The (?:proof|solution) is[:\s]*`),
		regexp.MustCompile(`(?i)^Proof[:\s]+`),
		regexp.MustCompile(`(?i)^Solution[:\s]+`),
		regexp.MustCompile(`(?i)^Certainly[:\s]+`),
	}

	suffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*QED\.?\s*$`),
		regexp.MustCompile(`\s*∎\s*$`),
		regexp.MustCompile(`(?i)\s*This completes the proof\.?\s*$`),
	}

	htmlTagPattern   = regexp.MustCompile(`<[^>]+>`)
	fencedLeanBlock  = regexp.MustCompile("(?s)```(?:lean4?)?\\s*(.*?)```")
	inlineCodeBlock  = regexp.MustCompile("`([^`]+)`")
	blockComment     = regexp.MustCompile(`(?s)/-.*?-/`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	declarationWords = []string{"theorem", "lemma", "example"}
)

// Clean strips natural-language preambles and trailing end-of-proof markers
// a generator tends to wrap around the actual code.
func Clean(text string) string {
	for _, p := range preamblePatterns {
		text = p.ReplaceAllString(text, "")
	}
	for _, p := range suffixPatterns {
		text = p.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// ExtractCode pulls the most plausible code block out of free-form text.
// Fenced blocks win; among multiple blocks the longest is kept. Without any
// block it falls back to lines that look like Lean declarations or tactics,
// and finally to the trimmed input itself.
func ExtractCode(text string) string {
	if text == "" {
		return ""
	}
	text = htmlTagPattern.ReplaceAllString(text, "")

	var blocks []string
	for _, pattern := range []*regexp.Regexp{fencedLeanBlock, inlineCodeBlock} {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(match[1])
			if len(candidate) > 10 {
				blocks = append(blocks, candidate)
			}
		}
	}
	if len(blocks) > 0 {
		longest := blocks[0]
		for _, b := range blocks[1:] {
			if len(b) > len(longest) {
				longest = b
			}
		}
		return longest
	}

	var codeLines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if looksLikeCode(trimmed) {
			codeLines = append(codeLines, trimmed)
		}
	}
	if len(codeLines) > 0 {
		return strings.Join(codeLines, "\n")
	}
	return strings.TrimSpace(text)
}

func looksLikeCode(line string) bool {
	for _, kw := range []string{"theorem", "lemma", "example", "def", "by ", "calc"} {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return strings.Contains(line, ":=")
}

// ValidateShape is a conservative syntactic pre-filter. It rejects input
// with no declaration keyword, no proof body marker, or unbalanced
// parentheses, so that obviously unparseable candidates never occupy a
// worker slot. It is not a proof checker.
func ValidateShape(code string) (bool, string) {
	hasDecl := false
	for _, kw := range declarationWords {
		if strings.Contains(code, kw) {
			hasDecl = true
			break
		}
	}
	if !hasDecl {
		return false, "no theorem/lemma/example declaration found"
	}
	if !strings.Contains(code, ":=") && !strings.Contains(code, "by") && !strings.Contains(code, "begin") {
		return false, "no proof body found"
	}
	if strings.Count(code, "(") != strings.Count(code, ")") {
		return false, "unbalanced parentheses"
	}
	return true, ""
}

// Normalize removes line and block comments and collapses all whitespace
// runs to single spaces. It is deterministic and idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(code string) string {
	var lines []string
	for _, line := range strings.Split(code, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	joined := strings.Join(lines, "\n")
	joined = blockComment.ReplaceAllString(joined, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(joined, " "))
}

// Hash returns the content address of a normalized declaration+proof pair.
func Hash(declaration, proof string) string {
	normalized := Normalize(declaration + " := " + proof)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// HashCode returns the content address of an already-assembled unit.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(Normalize(code)))
	return hex.EncodeToString(sum[:])
}
