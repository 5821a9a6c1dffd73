// Package message contains the pure text helpers shared by rule dispatch:
// template expansion, provider byte accounting, and phone normalization.
package message

import "regexp"

// tokenRe matches #{columnName} placeholders in a message template.
var tokenRe = regexp.MustCompile(`#\{([^{}]+)\}`)

// Expand replaces #{column} tokens in a template with the row's value for
// that column. Tokens with no matching column are left verbatim, so a
// misconfigured template shows up in the delivered text instead of silently
// truncating it. Single pass: expanded values are never rescanned.
func Expand(template string, rowData map[string]string) string {
	return tokenRe.ReplaceAllStringFunc(template, func(token string) string {
		column := token[2 : len(token)-1]
		if value, ok := rowData[column]; ok {
			return value
		}
		return token
	})
}
