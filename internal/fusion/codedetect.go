package fusion

import "strings"

// languageMarkers maps a language name to syntax fragments that identify it.
// Order within a list does not matter; detection counts distinct marker hits.
var languageMarkers = map[string][]string{
	"python": {
		"def ", "import ", "print(", "self.", "elif ", "lambda ", "    return",
	},
	"javascript": {
		"function ", "const ", "=> ", "console.log", "let ", "===",
	},
	"java": {
		"public class", "public static void", "system.out", "private ",
		"extends ", "@override",
	},
	"cpp": {
		"#include", "std::", "int main(", "cout <<", "nullptr", "template<",
	},
	"go": {
		"func ", "package ", ":= ", "fmt.", "go func", "chan ",
	},
	"sql": {
		"select ", "insert into", "update ", "delete from", "group by",
		"inner join", "left join",
	},
}

// minMarkerHits is how many distinct markers a language needs before the
// text is tagged as containing its code. One hit is too easy to trip in
// prose ("let me explain").
const minMarkerHits = 2

// DetectCode scans text for code and reports the dominant programming
// language plus the code-like lines it found. Returns ok=false when no
// language reaches the marker threshold.
func DetectCode(text string) (language, code string, ok bool) {
	lower := strings.ToLower(text)

	best, bestHits := "", 0
	for lang, markers := range languageMarkers {
		hits := 0
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && lang < best) {
			best, bestHits = lang, hits
		}
	}
	if bestHits < minMarkerHits {
		return "", "", false
	}

	return best, extractCodeLines(text, languageMarkers[best]), true
}

// extractCodeLines keeps the lines that carry a marker or look structurally
// like code, preserving their order. Prose lines between code lines are
// dropped; the answer generator only needs the code itself.
func extractCodeLines(text string, markers []string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if looksLikeCode(line, markers) {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(lines, "\n")
}

func looksLikeCode(line string, markers []string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(line)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	switch {
	case strings.HasSuffix(trimmed, "{"), strings.HasSuffix(trimmed, "}"),
		strings.HasSuffix(trimmed, ";"), strings.HasSuffix(trimmed, ":"):
		return true
	case strings.HasPrefix(line, "    "), strings.HasPrefix(line, "\t"):
		return true
	}
	return false
}
