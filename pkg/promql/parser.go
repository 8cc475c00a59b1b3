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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
)

const (
	precOr = iota + 1
	precAndUnless
	precComparison
	precAdd
	precMul
	precPow
)

var aggregators = map[string]bool{
	"sum": true, "count": true, "avg": true, "min": true, "max": true,
	"topk": true, "bottomk": true,
}

var setOperators = map[string]int{
	"or":     precOr,
	"and":    precAndUnless,
	"unless": precAndUnless,
}

var keywords = map[string]bool{
	"by": true, "without": true, "on": true, "ignoring": true, "bool": true,
	"and": true, "or": true, "unless": true,
}

func (t tokenType) precedence() int {
	switch t {
	case tokEql, tokNeq, tokGtr, tokLss, tokGte, tokLte:
		return precComparison
	case tokAdd, tokSub:
		return precAdd
	case tokMul, tokDiv, tokMod:
		return precMul
	case tokPow:
		return precPow
	default:
		return 0
	}
}

func (t tokenType) isComparison() bool {
	return t.precedence() == precComparison
}

type parser struct {
	tokens []token
	pos    int
}

// ParseExpr parses a query into an expression tree.
func ParseExpr(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, parseErrorf(0, "no expression found in input")
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}

	expr, err := p.parseBinary(precOr)
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.typ != tokEOF {
		return nil, parseErrorf(tok.pos, "unexpected %s", tok)
	}

	return expr, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}

	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokEOF {
		p.pos++
	}

	return tok
}

func (p *parser) expect(typ tokenType, context string) (token, error) {
	tok := p.next()
	if tok.typ != typ {
		return tok, parseErrorf(tok.pos, "unexpected %s in %s, expected %s", tok, context, typ)
	}

	return tok, nil
}

// binaryOp returns the precedence of the operator at the cursor, or 0.
func (p *parser) binaryOp() int {
	tok := p.peek()
	if tok.typ == tokIdent {
		return setOperators[strings.ToLower(tok.val)]
	}

	return tok.typ.precedence()
}

func (p *parser) parseBinary(minPrec int) (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		prec := p.binaryOp()
		if prec == 0 || prec < minPrec {
			return lhs, nil
		}

		opTok := p.next()
		bin := &BinaryExpr{Op: opTok.typ}

		if opTok.typ == tokIdent {
			bin.SetOp = strings.ToLower(opTok.val)
		}

		if err := p.parseBinaryModifiers(bin, opTok); err != nil {
			return nil, err
		}

		// ^ is right associative
		nextMin := prec + 1
		if opTok.typ == tokPow {
			nextMin = prec
		}

		rhs, err := p.parseBinary(nextMin)
		if err != nil {
			return nil, err
		}

		bin.LHS, bin.RHS = lhs, rhs

		if err := checkBinary(bin, opTok.pos); err != nil {
			return nil, err
		}

		lhs = bin
	}
}

func (p *parser) parseBinaryModifiers(bin *BinaryExpr, opTok token) error {
	if tok := p.peek(); tok.typ == tokIdent && strings.EqualFold(tok.val, "bool") {
		if !opTok.typ.isComparison() || bin.SetOp != "" {
			return parseErrorf(tok.pos, "bool modifier can only be used on comparison operators")
		}

		p.next()

		bin.ReturnBool = true
	}

	tok := p.peek()
	if tok.typ != tokIdent {
		return nil
	}

	kw := strings.ToLower(tok.val)
	if kw != "on" && kw != "ignoring" {
		return nil
	}

	p.next()

	names, err := p.parseLabelList(kw)
	if err != nil {
		return err
	}

	bin.Matching = &VectorMatching{On: kw == "on", MatchingLabels: names}

	return nil
}

func checkBinary(bin *BinaryExpr, pos int) error {
	lt, rt := bin.LHS.Type(), bin.RHS.Type()

	for _, t := range []ValueType{lt, rt} {
		if t != ValueTypeScalar && t != ValueTypeVector {
			return parseErrorf(pos, "binary expression must contain only scalar and instant vector types")
		}
	}

	if bin.SetOp != "" && (lt != ValueTypeVector || rt != ValueTypeVector) {
		return parseErrorf(pos, "set operator %q not allowed in binary scalar expression", bin.SetOp)
	}

	if bin.Matching != nil && (lt != ValueTypeVector || rt != ValueTypeVector) {
		return parseErrorf(pos, "vector matching only allowed between instant vectors")
	}

	if bin.Op.isComparison() && bin.SetOp == "" && lt == ValueTypeScalar && rt == ValueTypeScalar && !bin.ReturnBool {
		return parseErrorf(pos, "comparisons between scalars must use BOOL modifier")
	}

	return nil
}

func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.typ != tokSub && tok.typ != tokAdd {
		return p.parsePrimary()
	}

	p.next()

	expr, err := p.parseBinary(precPow)
	if err != nil {
		return nil, err
	}

	if t := expr.Type(); t != ValueTypeScalar && t != ValueTypeVector {
		return nil, parseErrorf(tok.pos, "unary expression only allowed on expressions of type scalar or instant vector, got %s", t)
	}

	if tok.typ == tokAdd {
		return expr, nil
	}

	if num, ok := expr.(*NumberLiteral); ok {
		num.Val = -num.Val
		return num, nil
	}

	return &UnaryExpr{Expr: expr}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()

	switch tok.typ {
	case tokNumber:
		p.next()

		v, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			return nil, parseErrorf(tok.pos, "invalid number %q", tok.val)
		}

		return &NumberLiteral{Val: v}, nil
	case tokString:
		p.next()

		return &StringLiteral{Val: tok.val}, nil
	case tokLParen:
		p.next()

		expr, err := p.parseBinary(precOr)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tokRParen, "parenthesized expression"); err != nil {
			return nil, err
		}

		return p.parseRange(&ParenExpr{Expr: expr})
	case tokLBrace:
		return p.parseSelector("")
	case tokIdent:
		return p.parseIdent(tok)
	case tokEOF:
		return nil, parseErrorf(tok.pos, "unexpected end of input")
	default:
		return nil, parseErrorf(tok.pos, "unexpected %s", tok)
	}
}

func (p *parser) parseIdent(tok token) (Expr, error) {
	name := tok.val
	lower := strings.ToLower(name)
	nextTok := p.peekAt(1)

	switch {
	case aggregators[lower] && (nextTok.typ == tokLParen || isGroupingKeyword(nextTok)):
		return p.parseAggregate()
	case nextTok.typ == tokLParen:
		fn, ok := functions[lower]
		if !ok {
			return nil, parseErrorf(tok.pos, "unknown function with name %q", name)
		}

		return p.parseCall(fn)
	case keywords[lower]:
		return nil, parseErrorf(tok.pos, "unexpected keyword %q", name)
	case (lower == "inf" || lower == "nan") && nextTok.typ != tokLBrace:
		p.next()

		if lower == "nan" {
			return &NumberLiteral{Val: math.NaN()}, nil
		}

		return &NumberLiteral{Val: math.Inf(1)}, nil
	}

	p.next()

	return p.parseSelector(name)
}

func isGroupingKeyword(tok token) bool {
	if tok.typ != tokIdent {
		return false
	}

	kw := strings.ToLower(tok.val)

	return kw == "by" || kw == "without"
}

func (p *parser) parseSelector(name string) (Expr, error) {
	vs := &VectorSelector{Name: name}

	if name != "" {
		m, err := labels.NewMatcher(labels.MatchEqual, labels.MetricName, name)
		if err != nil {
			return nil, badDataf("%v", err)
		}

		vs.Matchers = append(vs.Matchers, m)
	}

	if p.peek().typ == tokLBrace {
		start := p.next()

		matchers, err := p.parseMatchers()
		if err != nil {
			return nil, err
		}

		vs.Matchers = append(vs.Matchers, matchers...)

		if err := checkSelector(vs, start.pos); err != nil {
			return nil, err
		}
	}

	return p.parseRange(vs)
}

func checkSelector(vs *VectorSelector, pos int) error {
	for _, m := range vs.Matchers {
		if !m.Matches("") {
			return nil
		}
	}

	return parseErrorf(pos, "vector selector must contain at least one non-empty matcher")
}

func (p *parser) parseMatchers() ([]*labels.Matcher, error) {
	var matchers []*labels.Matcher

	for {
		if p.peek().typ == tokRBrace {
			p.next()
			return matchers, nil
		}

		nameTok, err := p.expect(tokIdent, "label matching")
		if err != nil {
			return nil, err
		}

		opTok := p.next()

		var mt labels.MatchType

		switch opTok.typ {
		case tokAssign:
			mt = labels.MatchEqual
		case tokNeq:
			mt = labels.MatchNotEqual
		case tokRegex:
			mt = labels.MatchRegexp
		case tokNRegex:
			mt = labels.MatchNotRegexp
		default:
			return nil, parseErrorf(opTok.pos, "unexpected %s in label matching, expected one of \"=\", \"!=\", \"=~\" or \"!~\"", opTok)
		}

		valTok, err := p.expect(tokString, "label matching")
		if err != nil {
			return nil, err
		}

		m, err := labels.NewMatcher(mt, nameTok.val, valTok.val)
		if err != nil {
			return nil, parseErrorf(valTok.pos, "invalid matcher: %v", err)
		}

		matchers = append(matchers, m)

		switch tok := p.next(); tok.typ {
		case tokComma:
		case tokRBrace:
			return matchers, nil
		default:
			return nil, parseErrorf(tok.pos, "unexpected %s in label matching, expected \",\" or \"}\"", tok)
		}
	}
}

func (p *parser) parseRange(expr Expr) (Expr, error) {
	if p.peek().typ != tokLBracket {
		return expr, nil
	}

	open := p.next()

	vs, ok := expr.(*VectorSelector)
	if !ok {
		return nil, parseErrorf(open.pos, "ranges only allowed for vector selectors")
	}

	durTok, err := p.expect(tokDuration, "range selector")
	if err != nil {
		return nil, err
	}

	d, err := model.ParseDuration(durTok.val)
	if err != nil {
		return nil, parseErrorf(durTok.pos, "invalid duration %q: %v", durTok.val, err)
	}

	if d <= 0 {
		return nil, parseErrorf(durTok.pos, "range must be positive")
	}

	if _, err := p.expect(tokRBracket, "range selector"); err != nil {
		return nil, err
	}

	return &MatrixSelector{VectorSelector: vs, Range: time.Duration(d)}, nil
}

func (p *parser) parseLabelList(context string) ([]string, error) {
	if _, err := p.expect(tokLParen, context); err != nil {
		return nil, err
	}

	var names []string

	for {
		tok := p.next()

		switch tok.typ {
		case tokRParen:
			return names, nil
		case tokIdent:
			names = append(names, tok.val)
		default:
			return nil, parseErrorf(tok.pos, "unexpected %s in grouping opts, expected label", tok)
		}

		switch sep := p.next(); sep.typ {
		case tokComma:
		case tokRParen:
			return names, nil
		default:
			return nil, parseErrorf(sep.pos, "unexpected %s in grouping opts, expected \",\" or \")\"", sep)
		}
	}
}

func (p *parser) parseGrouping(agg *AggregateExpr) error {
	tok := p.next()
	agg.Without = strings.EqualFold(tok.val, "without")

	names, err := p.parseLabelList("aggregation")
	if err != nil {
		return err
	}

	agg.Grouping = names

	return nil
}

func (p *parser) parseAggregate() (Expr, error) {
	opTok := p.next()
	agg := &AggregateExpr{Op: strings.ToLower(opTok.val)}
	grouped := false

	if isGroupingKeyword(p.peek()) {
		if err := p.parseGrouping(agg); err != nil {
			return nil, err
		}

		grouped = true
	}

	if _, err := p.expect(tokLParen, "aggregation"); err != nil {
		return nil, err
	}

	if agg.Op == "topk" || agg.Op == "bottomk" {
		param, err := p.parseBinary(precOr)
		if err != nil {
			return nil, err
		}

		if param.Type() != ValueTypeScalar {
			return nil, parseErrorf(opTok.pos, "expected type scalar in aggregation parameter, got %s", param.Type())
		}

		if _, err := p.expect(tokComma, "aggregation"); err != nil {
			return nil, err
		}

		agg.Param = param
	}

	expr, err := p.parseBinary(precOr)
	if err != nil {
		return nil, err
	}

	if expr.Type() != ValueTypeVector {
		return nil, parseErrorf(opTok.pos, "expected type instant vector in aggregation expression, got %s", expr.Type())
	}

	agg.Expr = expr

	if _, err := p.expect(tokRParen, "aggregation"); err != nil {
		return nil, err
	}

	if isGroupingKeyword(p.peek()) {
		if grouped {
			return nil, parseErrorf(p.peek().pos, "aggregation must only contain one grouping clause")
		}

		if err := p.parseGrouping(agg); err != nil {
			return nil, err
		}
	}

	return agg, nil
}

func (p *parser) parseCall(fn *Function) (Expr, error) {
	nameTok := p.next()
	p.next() // (

	call := &Call{Func: fn}

	if p.peek().typ == tokRParen {
		p.next()
	} else {
		for {
			arg, err := p.parseBinary(precOr)
			if err != nil {
				return nil, err
			}

			call.Args = append(call.Args, arg)

			sep := p.next()
			if sep.typ == tokRParen {
				break
			}

			if sep.typ != tokComma {
				return nil, parseErrorf(sep.pos, "unexpected %s in function call, expected \",\" or \")\"", sep)
			}
		}
	}

	if len(call.Args) != len(fn.ArgTypes) {
		return nil, parseErrorf(nameTok.pos, "expected %d argument(s) in call to %q, got %d",
			len(fn.ArgTypes), fn.Name, len(call.Args))
	}

	for i, arg := range call.Args {
		if arg.Type() != fn.ArgTypes[i] {
			return nil, parseErrorf(nameTok.pos, "expected type %s in call to function %q, got %s",
				typeName(fn.ArgTypes[i]), fn.Name, typeName(arg.Type()))
		}
	}

	return call, nil
}

func typeName(t ValueType) string {
	switch t {
	case ValueTypeVector:
		return "instant vector"
	case ValueTypeMatrix:
		return "range vector"
	default:
		return string(t)
	}
}
