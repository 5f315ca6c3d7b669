package rule

import (
	"fmt"
	"strings"

	"github.com/nylssoft/godrop/internal/parser"
)

// EXPR := OPERATOR '(' PROPERTY ',' VALUES ')' | EXPR 'and' EXPR
// VALUES := NUMBER | STRING | VALUES ',' VALUES
// STRING := "'" CHAR "'"
// NUMBER := DIGIT | NUMBER DIGIT
// OPERATOR := eq | ne | gt | ge | lt | le | contains | starts-with | ends-with
// PROPERTY := cidr | sblid | rir | domain | cc | asname | asn
//
// An expression matches if any value matches, ne matches if no value is equal.

type Operator int

type Property int

type Expression struct {
	Op     Operator
	Prop   Property
	Values []any
}

// A named condition. A record matches if all expressions match.
type Rule struct {
	Name        string
	Expressions []Expression
}

const (
	OPR_EQ Operator = iota
	OPR_NE
	OPR_GE
	OPR_GT
	OPR_LE
	OPR_LT
	OPR_IN
	OPR_STARTS
	OPR_ENDS
)

const (
	PROP_CIDR Property = iota
	PROP_SBLID
	PROP_RIR
	PROP_DOMAIN
	PROP_CC
	PROP_ASNAME
	PROP_ASN
)

func ParseCondition(str string) ([]Expression, error) {
	expressions, idx, err := parseExpr(str, 0)
	if err != nil {
		return nil, err
	}
	if _, idx, ok := nextNonSpaceRune(str, idx); ok {
		return nil, fmt.Errorf("unexpected input in '%s' at position %d", str, idx)
	}
	return expressions, nil
}

func NewRule(name string, condition string) (Rule, error) {
	expressions, err := ParseCondition(condition)
	return Rule{Name: name, Expressions: expressions}, err
}

func EvaluateExpressions(expressions []Expression, data map[Property]any) bool {
	for _, expr := range expressions {
		// and conjunction for expression list
		if !evaluateExpression(expr, data) {
			return false
		}
	}
	return len(expressions) > 0
}

func (r Rule) Matches(record parser.Record) bool {
	return EvaluateExpressions(r.Expressions, RecordData(record))
}

// Returns the first rule matching the record.
func FindMatch(rules []Rule, record parser.Record) (Rule, bool) {
	data := RecordData(record)
	for _, r := range rules {
		if EvaluateExpressions(r.Expressions, data) {
			return r, true
		}
	}
	return Rule{}, false
}

// Maps the fields of a range or ASN record to rule properties.
// String values are compared case-insensitive, they are lower-cased.
func RecordData(record parser.Record) map[Property]any {
	data := map[Property]any{}
	switch record.Kind {
	case parser.KindRange:
		data[PROP_CIDR] = strings.ToLower(record.Range.CIDR)
		data[PROP_SBLID] = strings.ToLower(record.Range.SBLID)
		data[PROP_RIR] = strings.ToLower(record.Range.RIR)
	case parser.KindAsn:
		data[PROP_ASN] = record.Asn.ASN
		data[PROP_RIR] = strings.ToLower(record.Asn.RIR)
		data[PROP_DOMAIN] = strings.ToLower(record.Asn.Domain)
		data[PROP_CC] = strings.ToLower(record.Asn.CountryCode)
		data[PROP_ASNAME] = strings.ToLower(record.Asn.ASName)
	}
	return data
}
