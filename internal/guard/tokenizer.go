package guard

// Tokenize splits source text into the token stream the guard compares:
// identifiers, numeric literals, and a fixed set of operator and
// punctuation symbols. Whitespace and comments produce no tokens, so
// reformatting and comment edits are invisible to the comparison.
func Tokenize(src string) []string {
	var tokens []string
	i := 0
	n := len(src)
	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			i = skipLine(src, i)
		case c == '#':
			i = skipLine(src, i)
		case c == '/' && i+1 < n && src[i+1] == '*':
			i = skipBlockComment(src, i)
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentPart(src[j]) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && isNumberPart(src[j]) {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		default:
			if op, width := matchOperator(src[i:]); width > 0 {
				tokens = append(tokens, op)
				i += width
			} else {
				// Unrecognized byte still participates so exotic
				// symbol changes are never silently equal.
				tokens = append(tokens, string(c))
				i++
			}
		}
	}
	return tokens
}

func skipLine(src string, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src string, i int) int {
	i += 2
	for i+1 < len(src) {
		if src[i] == '*' && src[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(src)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isNumberPart(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') ||
		(c >= 'A' && c <= 'F') || c == '.' || c == 'x' || c == 'X' || c == '_'
}

// multiOps are matched longest-first before single-character symbols.
var multiOps = []string{
	"<<=", ">>=", "===", "!==", "...", "&^=",
	"&&", "||", "==", "!=", "<=", ">=", "->", "=>",
	"++", "--", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "<<", ">>", "::", ":=", "&^",
}

const singleOps = "+-*/%=<>!&|^~?:;,.()[]{}@$\"'`\\"

func matchOperator(s string) (string, int) {
	for _, op := range multiOps {
		if len(s) >= len(op) && s[:len(op)] == op {
			return op, len(op)
		}
	}
	c := s[0]
	for i := 0; i < len(singleOps); i++ {
		if singleOps[i] == c {
			return string(c), 1
		}
	}
	return "", 0
}
