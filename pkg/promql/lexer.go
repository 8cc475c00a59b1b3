/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package promql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokString
	tokDuration
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokComma
	tokAssign // =
	tokNeq    // !=
	tokRegex  // =~
	tokNRegex // !~
	tokAdd
	tokSub
	tokMul
	tokDiv
	tokMod
	tokPow
	tokEql // ==
	tokGtr
	tokLss
	tokGte
	tokLte
)

var tokenNames = map[tokenType]string{
	tokEOF:      "end of input",
	tokIdent:    "identifier",
	tokNumber:   "number",
	tokString:   "string",
	tokDuration: "duration",
	tokLParen:   "(",
	tokRParen:   ")",
	tokLBrace:   "{",
	tokRBrace:   "}",
	tokLBracket: "[",
	tokRBracket: "]",
	tokComma:    ",",
	tokAssign:   "=",
	tokNeq:      "!=",
	tokRegex:    "=~",
	tokNRegex:   "!~",
	tokAdd:      "+",
	tokSub:      "-",
	tokMul:      "*",
	tokDiv:      "/",
	tokMod:      "%",
	tokPow:      "^",
	tokEql:      "==",
	tokGtr:      ">",
	tokLss:      "<",
	tokGte:      ">=",
	tokLte:      "<=",
}

func (t tokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}

	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ tokenType
	val string
	pos int
}

func (t token) String() string {
	switch t.typ {
	case tokIdent, tokNumber, tokDuration:
		return fmt.Sprintf("%q", t.val)
	case tokString:
		return fmt.Sprintf("string %q", t.val)
	default:
		return t.typ.String()
	}
}

// lex splits a query into tokens. Inside brackets a run of alphanumerics
// is a duration.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}

	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}

		l.tokens = append(l.tokens, tok)

		if tok.typ == tokEOF {
			return l.tokens, nil
		}
	}
}

type lexer struct {
	input     string
	pos       int
	inBracket bool
	tokens    []token
}

func (l *lexer) peekRune(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos+offset:])

	return r
}

func (l *lexer) next() (token, error) {
	l.skipSpace()

	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	r := l.peekRune(0)

	if l.inBracket && isAlnum(r) {
		for l.pos < len(l.input) && isAlnum(l.peekRune(0)) {
			l.pos++
		}

		return token{typ: tokDuration, val: l.input[start:l.pos], pos: start}, nil
	}

	switch {
	case isIdentStart(r):
		for l.pos < len(l.input) && isIdentChar(l.peekRune(0)) {
			l.pos++
		}

		return token{typ: tokIdent, val: l.input[start:l.pos], pos: start}, nil
	case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(l.peekRune(1))):
		return l.lexNumber(start)
	case r == '"' || r == '\'' || r == '`':
		return l.lexString(start, r)
	}

	if tok, ok := l.lexOperator(start); ok {
		return tok, nil
	}

	return token{}, parseErrorf(start, "unexpected character %q", r)
}

func (l *lexer) lexOperator(start int) (token, bool) {
	two := ""
	if l.pos+1 < len(l.input) {
		two = l.input[l.pos : l.pos+2]
	}

	twoChar := map[string]tokenType{
		"==": tokEql, "!=": tokNeq, "=~": tokRegex, "!~": tokNRegex, ">=": tokGte, "<=": tokLte,
	}

	if typ, ok := twoChar[two]; ok {
		l.pos += 2
		return token{typ: typ, val: two, pos: start}, true
	}

	oneChar := map[byte]tokenType{
		'(': tokLParen, ')': tokRParen, '{': tokLBrace, '}': tokRBrace,
		'[': tokLBracket, ']': tokRBracket, ',': tokComma, '=': tokAssign,
		'+': tokAdd, '-': tokSub, '*': tokMul, '/': tokDiv, '%': tokMod,
		'^': tokPow, '>': tokGtr, '<': tokLss,
	}

	typ, ok := oneChar[l.input[l.pos]]
	if !ok {
		return token{}, false
	}

	switch typ {
	case tokLBracket:
		l.inBracket = true
	case tokRBracket:
		l.inBracket = false
	}

	l.pos++

	return token{typ: typ, val: l.input[start:l.pos], pos: start}, true
}

func (l *lexer) lexNumber(start int) (token, error) {
	seenDot, seenExp := false, false

	for l.pos < len(l.input) {
		c := l.input[l.pos]

		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && !seenExp:
			seenExp = true

			if n := l.peekRune(1); n == '+' || n == '-' {
				l.pos++
			}
		default:
			if isIdentChar(rune(c)) {
				return token{}, parseErrorf(start, "bad number or duration syntax %q", l.input[start:l.pos+1])
			}

			return token{typ: tokNumber, val: l.input[start:l.pos], pos: start}, nil
		}

		l.pos++
	}

	return token{typ: tokNumber, val: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexString(start int, quote rune) (token, error) {
	l.pos++

	var sb strings.Builder

	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += size

		switch {
		case r == quote:
			return token{typ: tokString, val: sb.String(), pos: start}, nil
		case r == '\\' && quote != '`':
			if l.pos >= len(l.input) {
				return token{}, parseErrorf(start, "unterminated string")
			}

			esc, size := utf8.DecodeRuneInString(l.input[l.pos:])
			l.pos += size

			sb.WriteRune(unescape(esc))
		case r == '\n' && quote != '`':
			return token{}, parseErrorf(start, "unterminated string")
		default:
			sb.WriteRune(r)
		}
	}

	return token{}, parseErrorf(start, "unterminated string")
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		r := l.peekRune(0)

		if r == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}

			continue
		}

		if !unicode.IsSpace(r) {
			return
		}

		l.pos++
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
