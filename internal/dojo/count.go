package dojo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
)

var (
	// ErrUnknownDoctype rejects counts over tables that are not exposed.
	ErrUnknownDoctype = fmt.Errorf("dojo: unknown doctype: %w", httpx.ErrValidation)
	// ErrInvalidFilter rejects unknown fields, operators or values.
	ErrInvalidFilter = fmt.Errorf("dojo: invalid filter: %w", httpx.ErrValidation)
)

type countTable struct {
	table  string
	fields map[string]string
	// fixed is appended to every query against the table.
	fixed string
}

var countTables = map[string]countTable{
	"Dojo Member": {
		table: "dojo_members",
		fields: map[string]string{
			"name":           "id",
			"status":         "status",
			"current_belt":   "current_belt",
			"payment_status": "payment_status",
			"join_date":      "join_date",
			"modified":       "updated_at",
		},
	},
	"Dojo Class": {
		table: "dojo_classes",
		fields: map[string]string{
			"class_date": "class_date",
			"class_type": "class_type",
			"status":     "status",
			"instructor": "instructor",
		},
	},
	"Dojo Payment": {
		table: "dojo_payments",
		fields: map[string]string{
			"payment_date":   "payment_date",
			"payment_type":   "payment_type",
			"payment_method": "payment_method",
			"status":         "status",
			"member":         "member_id",
		},
	},
	"Class Attendance": {
		table: "class_attendance",
		fields: map[string]string{
			"class_date": "class_date",
			"status":     "status",
			"member":     "member_id",
		},
	},
	"Belt Promotion": {
		table: "belt_promotions",
		fields: map[string]string{
			"promotion_date": "promotion_date",
			"to_belt":        "to_belt",
			"from_belt":      "from_belt",
			"member":         "member_id",
		},
		fixed: "submitted",
	},
}

var countOperators = map[string]string{
	"=":  "=",
	"!=": "<>",
	">":  ">",
	">=": ">=",
	"<":  "<",
	"<=": "<=",
}

// CountQuery is the argument of client.get_count. Filters maps a field to
// either a bare value (equality) or an [operator, value] pair.
type CountQuery struct {
	Doctype string                     `json:"doctype" validate:"required"`
	Filters map[string]json.RawMessage `json:"filters"`
}

// Condition is one validated filter.
type Condition struct {
	Column string
	Op     string
	Value  string
}

// CountStatement is a validated count ready for execution.
type CountStatement struct {
	Table      string
	Conditions []Condition
	Fixed      string
}

// SQL renders the statement with positional parameters.
func (s CountStatement) SQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(s.Table)
	clauses := make([]string, 0, len(s.Conditions)+1)
	args := make([]any, 0, len(s.Conditions))
	if s.Fixed != "" {
		clauses = append(clauses, s.Fixed)
	}
	for _, c := range s.Conditions {
		args = append(args, c.Value)
		clauses = append(clauses, fmt.Sprintf("%s::text %s $%d", c.Column, c.Op, len(args)))
	}
	if len(clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	return b.String(), args
}

// Compile validates q against the exposed tables and fields.
func (q CountQuery) Compile() (CountStatement, error) {
	tbl, ok := countTables[q.Doctype]
	if !ok {
		return CountStatement{}, fmt.Errorf("%w: %q", ErrUnknownDoctype, q.Doctype)
	}
	stmt := CountStatement{Table: tbl.table, Fixed: tbl.fixed}

	fields := make([]string, 0, len(q.Filters))
	for field := range q.Filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		column, ok := tbl.fields[field]
		if !ok {
			return CountStatement{}, fmt.Errorf("%w: field %q", ErrInvalidFilter, field)
		}
		op, value, err := parseFilter(q.Filters[field])
		if err != nil {
			return CountStatement{}, fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, field, err)
		}
		sqlOp, ok := countOperators[op]
		if !ok {
			return CountStatement{}, fmt.Errorf("%w: operator %q", ErrInvalidFilter, op)
		}
		stmt.Conditions = append(stmt.Conditions, Condition{Column: column, Op: sqlOp, Value: value})
	}
	return stmt, nil
}

func parseFilter(raw json.RawMessage) (string, string, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 {
			return "", "", errors.New("expected [operator, value]")
		}
		var op string
		if err := json.Unmarshal(pair[0], &op); err != nil {
			return "", "", errors.New("operator must be a string")
		}
		value, err := scalar(pair[1])
		return strings.TrimSpace(op), value, err
	}
	value, err := scalar(raw)
	return "=", value, err
}

func scalar(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", errors.New("value must be a string, number or boolean")
	}
}
