package alerting

import (
	"fmt"
	"strings"
)

// Placeholder names available to alert templates.
const (
	FieldPrizeAmount      = "prize_amount"
	FieldThresholdAmount  = "threshold_amount"
	FieldCurrency         = "currency"
	FieldDrawDateTimeText = "draw_datetime_text"
)

// RenderTemplate substitutes {name} placeholders from values. "{{" and "}}"
// produce literal braces. Unknown names and unbalanced braces are errors.
func RenderTemplate(tmpl string, values map[string]string) (string, error) {
	var out strings.Builder
	out.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("single '{' encountered in format string at offset %d", i)
			}
			name := tmpl[i+1 : i+1+end]
			value, ok := values[name]
			if !ok {
				return "", fmt.Errorf("unknown placeholder {%s}", name)
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("single '}' encountered in format string at offset %d", i)
		default:
			out.WriteByte(c)
		}
	}

	return out.String(), nil
}
