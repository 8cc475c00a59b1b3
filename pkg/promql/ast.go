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
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
)

// Expr is a node of a parsed query.
type Expr interface {
	Type() ValueType
	String() string
}

// NumberLiteral is a float constant.
type NumberLiteral struct {
	Val float64
}

func (*NumberLiteral) Type() ValueType { return ValueTypeScalar }

func (e *NumberLiteral) String() string {
	return strconv.FormatFloat(e.Val, 'g', -1, 64)
}

// StringLiteral only appears as a function argument.
type StringLiteral struct {
	Val string
}

func (*StringLiteral) Type() ValueType { return ValueTypeString }

func (e *StringLiteral) String() string {
	return strconv.Quote(e.Val)
}

// VectorSelector selects the series matching all matchers.
type VectorSelector struct {
	Name     string
	Matchers []*labels.Matcher
}

func (*VectorSelector) Type() ValueType { return ValueTypeVector }

func (e *VectorSelector) String() string {
	var parts []string

	for _, m := range e.Matchers {
		if m.Name == labels.MetricName && m.Type == labels.MatchEqual && e.Name != "" {
			continue
		}

		parts = append(parts, m.String())
	}

	if len(parts) == 0 {
		return e.Name
	}

	return e.Name + "{" + strings.Join(parts, ",") + "}"
}

// MatrixSelector selects a range of samples ending at the evaluation time.
type MatrixSelector struct {
	VectorSelector *VectorSelector
	Range          time.Duration
}

func (*MatrixSelector) Type() ValueType { return ValueTypeMatrix }

func (e *MatrixSelector) String() string {
	return fmt.Sprintf("%s[%s]", e.VectorSelector, model.Duration(e.Range))
}

// AggregateExpr aggregates a vector, optionally grouped.
type AggregateExpr struct {
	Op       string
	Expr     Expr
	Param    Expr // k for topk and bottomk
	Grouping []string
	Without  bool
}

func (*AggregateExpr) Type() ValueType { return ValueTypeVector }

func (e *AggregateExpr) String() string {
	var sb strings.Builder

	sb.WriteString(e.Op)

	if e.Without || len(e.Grouping) > 0 {
		if e.Without {
			sb.WriteString(" without (")
		} else {
			sb.WriteString(" by (")
		}

		sb.WriteString(strings.Join(e.Grouping, ", "))
		sb.WriteString(") ")
	}

	sb.WriteString("(")

	if e.Param != nil {
		sb.WriteString(e.Param.String())
		sb.WriteString(", ")
	}

	sb.WriteString(e.Expr.String())
	sb.WriteString(")")

	return sb.String()
}

// Call is a function call.
type Call struct {
	Func *Function
	Args []Expr
}

func (e *Call) Type() ValueType { return e.Func.ReturnType }

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}

	return fmt.Sprintf("%s(%s)", e.Func.Name, strings.Join(args, ", "))
}

// VectorMatching describes how the sides of a vector binary operation are
// paired.
type VectorMatching struct {
	On             bool
	MatchingLabels []string
}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Op         tokenType
	LHS, RHS   Expr
	ReturnBool bool
	Matching   *VectorMatching
	// set operators are spelled as identifiers, so the name is kept here
	SetOp string
}

func (e *BinaryExpr) Type() ValueType {
	if e.LHS.Type() == ValueTypeScalar && e.RHS.Type() == ValueTypeScalar {
		return ValueTypeScalar
	}

	return ValueTypeVector
}

func (e *BinaryExpr) opString() string {
	if e.SetOp != "" {
		return e.SetOp
	}

	return e.Op.String()
}

func (e *BinaryExpr) String() string {
	op := e.opString()

	if e.ReturnBool {
		op += " bool"
	}

	if e.Matching != nil && (e.Matching.On || len(e.Matching.MatchingLabels) > 0) {
		kw := "ignoring"
		if e.Matching.On {
			kw = "on"
		}

		op = fmt.Sprintf("%s %s (%s)", op, kw, strings.Join(e.Matching.MatchingLabels, ", "))
	}

	return fmt.Sprintf("%s %s %s", e.LHS, op, e.RHS)
}

// ParenExpr is a parenthesised expression.
type ParenExpr struct {
	Expr Expr
}

func (e *ParenExpr) Type() ValueType { return e.Expr.Type() }

func (e *ParenExpr) String() string { return "(" + e.Expr.String() + ")" }

// UnaryExpr is a negation.
type UnaryExpr struct {
	Expr Expr
}

func (e *UnaryExpr) Type() ValueType { return e.Expr.Type() }

func (e *UnaryExpr) String() string { return "-" + e.Expr.String() }

// walkSelectors calls fn for every vector selector in expr, passing the
// range when it is part of a matrix selector.
func walkSelectors(expr Expr, fn func(vs *VectorSelector, rng time.Duration)) {
	switch e := expr.(type) {
	case *VectorSelector:
		fn(e, 0)
	case *MatrixSelector:
		fn(e.VectorSelector, e.Range)
	case *AggregateExpr:
		if e.Param != nil {
			walkSelectors(e.Param, fn)
		}

		walkSelectors(e.Expr, fn)
	case *Call:
		for _, a := range e.Args {
			walkSelectors(a, fn)
		}
	case *BinaryExpr:
		walkSelectors(e.LHS, fn)
		walkSelectors(e.RHS, fn)
	case *ParenExpr:
		walkSelectors(e.Expr, fn)
	case *UnaryExpr:
		walkSelectors(e.Expr, fn)
	}
}
