package masking

import "regexp"

// CompiledPattern is a regex-backed Masker that replaces every match with a
// fixed placeholder.
type CompiledPattern struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

func NewCompiledPattern(name, expr, replacement string) CompiledPattern {
	return CompiledPattern{
		name:        name,
		re:          regexp.MustCompile(expr),
		replacement: replacement,
	}
}

func (p CompiledPattern) Name() string { return p.name }

func (p CompiledPattern) Mask(data string) (string, bool) {
	if !p.re.MatchString(data) {
		return data, false
	}
	return p.re.ReplaceAllString(data, p.replacement), true
}

// builtinPatterns covers the PII shapes that flow through the pipeline:
// phone numbers, VINs, Twilio credentials and Anthropic API keys.
func builtinPatterns() []Masker {
	return []Masker{
		NewCompiledPattern("phone_number",
			`\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`,
			"***-***-****"),
		NewCompiledPattern("vin",
			`\b[A-HJ-NPR-Z0-9]{17}\b`,
			"*****************"),
		NewCompiledPattern("twilio_account_sid",
			`\bAC[a-f0-9]{32}\b`,
			"AC****************************"),
		NewCompiledPattern("twilio_auth_token",
			`\b[a-f0-9]{32}\b`,
			"********************************"),
		NewCompiledPattern("anthropic_api_key",
			`\bsk-ant-[A-Za-z0-9_-]{20,}\b`,
			"sk-ant-***"),
	}
}
