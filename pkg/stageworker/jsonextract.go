package stageworker

import "strings"

// ExtractJSON strips Markdown code-fence decoration a model sometimes
// wraps its JSON response in (```json ... ``` or plain ``` ... ```) and
// returns the inner text trimmed of surrounding whitespace. If no fence
// is present, raw is returned trimmed as-is.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(s[:nl])
		// Drop a bare language tag line such as "json".
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
