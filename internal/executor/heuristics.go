package executor

import "strings"

// evaluateInstruction is the placeholder evaluation strategy: an
// instruction counts as true when it contains one of a few affirmative
// phrases, case-insensitively. A model-backed evaluator would replace
// this.
func evaluateInstruction(instruction string) bool {
	lowered := strings.ToLower(instruction)
	for _, phrase := range []string{"success", "is true", "is successful"} {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// linkTarget guesses the target uid of a link instruction. The first word
// after "->" wins over prose; failing that, the word after "To" is used.
// Empty means no target could be inferred.
func linkTarget(instruction string) string {
	if idx := strings.Index(instruction, "->"); idx >= 0 {
		if fields := strings.Fields(instruction[idx+2:]); len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	words := strings.Fields(instruction)
	for i, w := range words {
		if w == "To" && i+1 < len(words) {
			return strings.TrimRight(words[i+1], ".,;:")
		}
	}
	return ""
}

// deleteLinkTarget extends linkTarget for delete instructions, which also
// phrase the target as "Link ... with X".
func deleteLinkTarget(instruction string) string {
	if target := linkTarget(instruction); target != "" {
		return target
	}
	words := strings.Fields(instruction)
	sawLink := false
	for i, w := range words {
		if strings.EqualFold(w, "link") {
			sawLink = true
		}
		if sawLink && w == "with" && i+1 < len(words) {
			return strings.TrimRight(words[i+1], ".,;:")
		}
	}
	return ""
}
