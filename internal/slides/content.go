package slides

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// kerningGap is the TJ adjustment (thousandths of an em) treated as a word break
const kerningGap = -200

// DecodeContent pulls the shown text out of a page content stream.
// Text-showing operators (Tj, TJ, ' and ") contribute their string
// operands; positioning operators become line or word breaks.
func DecodeContent(data []byte) string {
	var b strings.Builder
	var operands []string
	inArray := false

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}

		case c == '(':
			s, n := readLiteral(data[i:])
			operands = append(operands, s)
			i += n

		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2

		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2

		case c == '<':
			s, n := readHex(data[i:])
			operands = append(operands, s)
			i += n

		case c == '[':
			inArray = true
			i++

		case c == ']':
			inArray = false
			i++

		case isDelimiter(c):
			i++

		default:
			tok, n := readToken(data[i:])
			i += n
			if isOperand(tok) {
				if inArray {
					if f, err := strconv.ParseFloat(tok, 64); err == nil && f <= kerningGap {
						operands = append(operands, " ")
					}
				}
				continue
			}

			switch tok {
			case "Tj", "TJ":
				for _, s := range operands {
					b.WriteString(s)
				}
			case "'", "\"":
				b.WriteByte('\n')
				for _, s := range operands {
					b.WriteString(s)
				}
			case "Td", "TD", "Tm":
				b.WriteByte(' ')
			case "T*", "ET":
				b.WriteByte('\n')
			}
			operands = operands[:0]
		}
	}

	return cleanText(b.String())
}

// readLiteral reads a balanced (...) string starting at data[0]
func readLiteral(data []byte) (string, int) {
	var raw []byte
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			switch e := data[i]; e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					raw = append(raw, byte(val))
				} else {
					raw = append(raw, e)
				}
			}
		case '(':
			if depth > 0 {
				raw = append(raw, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return decodeBytes(raw), i + 1
			}
			raw = append(raw, c)
		default:
			raw = append(raw, c)
		}
	}
	return decodeBytes(raw), i
}

// readHex reads a <...> hex string starting at data[0]
func readHex(data []byte) (string, int) {
	var digits []byte
	i := 1
	for ; i < len(data) && data[i] != '>'; i++ {
		if isHexDigit(data[i]) {
			digits = append(digits, data[i])
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	raw := make([]byte, 0, len(digits)/2)
	for k := 0; k < len(digits); k += 2 {
		v, _ := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		raw = append(raw, byte(v))
	}
	if i < len(data) {
		i++
	}
	return decodeBytes(raw), i
}

// decodeBytes handles UTF-16BE strings (with BOM); anything else is
// read as single-byte text
func decodeBytes(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for k := 2; k+1 < len(raw); k += 2 {
			units = append(units, uint16(raw[k])<<8|uint16(raw[k+1]))
		}
		return string(utf16.Decode(units))
	}

	runes := make([]rune, len(raw))
	for k, c := range raw {
		runes[k] = rune(c)
	}
	return string(runes)
}

func readToken(data []byte) (string, int) {
	i := 0
	for i < len(data) && !isDelimiter(data[i]) && data[i] != '(' && data[i] != '<' && data[i] != '[' && data[i] != ']' {
		i++
	}
	if i == 0 {
		return string(data[:1]), 1
	}
	return string(data[:i]), i
}

// isOperand reports numbers, names and keywords that are not operators
func isOperand(tok string) bool {
	if tok == "" {
		return true
	}
	switch c := tok[0]; {
	case c == '/':
		return true
	case c >= '0' && c <= '9', c == '-', c == '+', c == '.':
		return true
	}
	return tok == "true" || tok == "false" || tok == "null"
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '{', '}', '>':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// cleanText collapses whitespace within lines and drops empty lines
func cleanText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		var b strings.Builder
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				b.WriteRune(' ')
			case unicode.IsPrint(r):
				b.WriteRune(r)
			}
		}
		line = strings.Join(strings.Fields(b.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
