// Package cypher provides an immutable, fluent builder that compiles typed
// pattern clauses into parameterized Cypher.
//
// Every builder method returns a new builder value; a base builder can be
// shared and extended by concurrent callers without synchronization. Caller
// supplied values never appear in the compiled query text: they are hoisted
// into the bound parameter map under generated keys, which closes the query
// injection hole an interpolating builder would open.
//
// Construction errors (duplicate variables, undeclared references, invalid
// identifiers) surface at compile time rather than at call time so fluent
// chains stay side-effect free.
package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/caseflow/caseflow/internal/types"
)

// Direction orients a relationship pattern.
type Direction int

const (
	// DirectionOut draws (from)-[:TYPE]->(to).
	DirectionOut Direction = iota
	// DirectionIn draws (from)<-[:TYPE]-(to).
	DirectionIn
	// DirectionBoth draws (from)-[:TYPE]-(to).
	DirectionBoth
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEq         Op = "="
	OpNe         Op = "<>"
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS WITH"
	OpIn         Op = "IN"
)

// Cardinality declares the expected result-set size class of a query.
type Cardinality int

const (
	// CardinalityAll expects zero or more rows.
	CardinalityAll Cardinality = iota
	// CardinalityOne expects at most one row; more is a caller-visible error
	// at execution time.
	CardinalityOne
)

// CompiledQuery is the immutable output of compilation: parameterized query
// text plus its bound parameter map. Identical builder state always compiles
// to a byte-identical query and an equal parameter map.
type CompiledQuery struct {
	Text        string
	Params      map[string]any
	Cardinality Cardinality
}

type clauseKind int

const (
	clauseMatchNode clauseKind = iota
	clauseCreateNode
	clauseMergeNode
	clauseOnCreateSet
	clauseMatchRel
	clauseCreateRel
	clauseSet
	clauseDelete
)

// patternClause is one recorded builder step. Node clauses carry variable,
// label and property filters; relationship clauses carry endpoints, type and
// direction; set clauses carry the properties to write.
type patternClause struct {
	kind      clauseKind
	variable  string
	label     string
	props     map[string]any
	fromVar   string
	toVar     string
	relType   string
	direction Direction
}

type predicate struct {
	variable string
	property string
	op       Op
	value    any
}

type projection struct {
	variable   string
	properties bool
}

type ordering struct {
	variable   string
	property   string
	descending bool
}

// Builder accumulates query fragments. The zero value is ready to use; New
// exists for symmetry with fluent call chains.
type Builder struct {
	clauses    []patternClause
	predicates []predicate
	returns    []projection
	orderBy    *ordering
	limit      *int
}

// New returns an empty builder.
func New() Builder {
	return Builder{}
}

// clone copies the builder's slices so chained calls never share state with
// the value they were derived from.
func (b Builder) clone() Builder {
	clone := Builder{
		clauses:    make([]patternClause, len(b.clauses)),
		predicates: make([]predicate, len(b.predicates)),
		returns:    make([]projection, len(b.returns)),
	}
	copy(clone.clauses, b.clauses)
	copy(clone.predicates, b.predicates)
	copy(clone.returns, b.returns)
	if b.orderBy != nil {
		ob := *b.orderBy
		clone.orderBy = &ob
	}
	if b.limit != nil {
		l := *b.limit
		clone.limit = &l
	}
	return clone
}

// cloneProps defensively copies a property-filter map.
func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	clone := make(map[string]any, len(props))
	for k, v := range props {
		clone[k] = v
	}
	return clone
}

// Match appends a node pattern with optional property-equality filters.
// The variable must be unique within the builder's pattern set; violations
// surface at compile time.
func (b Builder) Match(variable, label string, props map[string]any) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseMatchNode,
		variable: variable,
		label:    label,
		props:    cloneProps(props),
	})
	return clone
}

// Create appends a node creation pattern.
func (b Builder) Create(variable, label string, props map[string]any) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseCreateNode,
		variable: variable,
		label:    label,
		props:    cloneProps(props),
	})
	return clone
}

// Merge appends a match-or-create node pattern keyed by the given
// properties. Under concurrent writers MERGE is the only node clause that
// does not duplicate the node; pair it with OnCreateSet for properties that
// belong only to the creating writer.
func (b Builder) Merge(variable, label string, props map[string]any) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseMergeNode,
		variable: variable,
		label:    label,
		props:    cloneProps(props),
	})
	return clone
}

// OnCreateSet appends property writes applied only when the immediately
// preceding Merge created the node rather than matched it.
func (b Builder) OnCreateSet(variable string, props map[string]any) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseOnCreateSet,
		variable: variable,
		props:    cloneProps(props),
	})
	return clone
}

// Relate appends a relationship match pattern between two previously
// declared variables.
func (b Builder) Relate(fromVar, relType, toVar string, direction Direction) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:      clauseMatchRel,
		fromVar:   fromVar,
		relType:   relType,
		toVar:     toVar,
		direction: direction,
	})
	return clone
}

// CreateRel appends a relationship creation pattern between two previously
// declared variables. Created relationships are always directed from → to.
func (b Builder) CreateRel(fromVar, relType, toVar string) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:      clauseCreateRel,
		fromVar:   fromVar,
		relType:   relType,
		toVar:     toVar,
		direction: DirectionOut,
	})
	return clone
}

// Where appends a boolean predicate, AND-combined with prior predicates.
func (b Builder) Where(variable, property string, op Op, value any) Builder {
	clone := b.clone()
	clone.predicates = append(clone.predicates, predicate{
		variable: variable,
		property: property,
		op:       op,
		value:    value,
	})
	return clone
}

// Set appends a property-write clause for a declared variable.
func (b Builder) Set(variable string, props map[string]any) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseSet,
		variable: variable,
		props:    cloneProps(props),
	})
	return clone
}

// Delete appends a DETACH DELETE for a declared variable.
func (b Builder) Delete(variable string) Builder {
	clone := b.clone()
	clone.clauses = append(clone.clauses, patternClause{
		kind:     clauseDelete,
		variable: variable,
	})
	return clone
}

// Return declares the projection. Calling Return again replaces the prior
// projection entirely (last write wins).
func (b Builder) Return(variables ...string) Builder {
	clone := b.clone()
	clone.returns = make([]projection, 0, len(variables))
	for _, v := range variables {
		clone.returns = append(clone.returns, projection{variable: v})
	}
	return clone
}

// ReturnProperties declares a projection of properties(v) AS v for each
// variable, which flattens nodes into plain records on the way out.
// Like Return, it replaces any prior projection.
func (b Builder) ReturnProperties(variables ...string) Builder {
	clone := b.clone()
	clone.returns = make([]projection, 0, len(variables))
	for _, v := range variables {
		clone.returns = append(clone.returns, projection{variable: v, properties: true})
	}
	return clone
}

// OrderBy sorts the result set by a declared variable's property.
func (b Builder) OrderBy(variable, property string, descending bool) Builder {
	clone := b.clone()
	clone.orderBy = &ordering{variable: variable, property: property, descending: descending}
	return clone
}

// Limit caps the result set size.
func (b Builder) Limit(n int) Builder {
	clone := b.clone()
	clone.limit = &n
	return clone
}

// One compiles the builder expecting at most one row.
func (b Builder) One() (CompiledQuery, error) {
	return b.compile(CardinalityOne)
}

// All compiles the builder expecting zero or more rows.
func (b Builder) All() (CompiledQuery, error) {
	return b.compile(CardinalityAll)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

func validOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpContains, OpStartsWith, OpIn:
		return true
	default:
		return false
	}
}

// compile validates the accumulated state and renders the query. It is pure:
// the builder is not modified and repeated calls yield identical output.
func (b Builder) compile(cardinality Cardinality) (CompiledQuery, error) {
	if len(b.clauses) == 0 {
		return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
			"query has no pattern clauses")
	}

	declared := make(map[string]bool)

	// Validation pass. Declarations are checked in recorded order so a
	// relationship can only reference variables that precede it.
	for i, c := range b.clauses {
		switch c.kind {
		case clauseMatchNode, clauseCreateNode, clauseMergeNode:
			if !validIdent(c.variable) {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("invalid variable name %q", c.variable))
			}
			if !validIdent(c.label) {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("invalid label %q", c.label))
			}
			if declared[c.variable] {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("duplicate variable %q", c.variable))
			}
			for key := range c.props {
				if !validIdent(key) {
					return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
						fmt.Sprintf("invalid property name %q", key))
				}
			}
			declared[c.variable] = true

		case clauseOnCreateSet:
			// ON CREATE SET binds to the MERGE it directly follows.
			if i == 0 || b.clauses[i-1].kind != clauseMergeNode ||
				b.clauses[i-1].variable != c.variable {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("ON CREATE SET for %q must directly follow its MERGE", c.variable))
			}
			if len(c.props) == 0 {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					"ON CREATE SET requires at least one property")
			}
			for key := range c.props {
				if !validIdent(key) {
					return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
						fmt.Sprintf("invalid property name %q", key))
				}
			}

		case clauseMatchRel, clauseCreateRel:
			if !validIdent(c.relType) {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("invalid relationship type %q", c.relType))
			}
			if !declared[c.fromVar] {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("relationship references undeclared variable %q", c.fromVar))
			}
			if !declared[c.toVar] {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("relationship references undeclared variable %q", c.toVar))
			}

		case clauseSet:
			if !declared[c.variable] {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("SET references undeclared variable %q", c.variable))
			}
			if len(c.props) == 0 {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					"SET requires at least one property")
			}
			for key := range c.props {
				if !validIdent(key) {
					return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
						fmt.Sprintf("invalid property name %q", key))
				}
			}

		case clauseDelete:
			if !declared[c.variable] {
				return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
					fmt.Sprintf("DELETE references undeclared variable %q", c.variable))
			}
		}
	}

	for _, p := range b.predicates {
		if !declared[p.variable] {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("predicate references undeclared variable %q", p.variable))
		}
		if !validIdent(p.property) {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("invalid property name %q", p.property))
		}
		if !validOp(p.op) {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("unknown operator %q", string(p.op)))
		}
	}

	if len(b.returns) == 0 && !b.hasWriteClause() {
		return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
			"read query requires a projection")
	}
	for _, r := range b.returns {
		if !declared[r.variable] {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("projection references undeclared variable %q", r.variable))
		}
	}

	if b.orderBy != nil {
		if !declared[b.orderBy.variable] {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("ORDER BY references undeclared variable %q", b.orderBy.variable))
		}
		if !validIdent(b.orderBy.property) {
			return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
				fmt.Sprintf("invalid property name %q", b.orderBy.property))
		}
	}

	if b.limit != nil && *b.limit < 0 {
		return CompiledQuery{}, types.NewError(types.QUERY_BUILDER_INVALID,
			"LIMIT must not be negative")
	}

	// Render pass. Parameter keys are allocated in clause order, with
	// property keys visited in sorted order, so compilation is deterministic.
	params := make(map[string]any)
	nextParam := 0
	param := func(value any) string {
		key := fmt.Sprintf("p%d", nextParam)
		nextParam++
		params[key] = value
		return key
	}

	var lines []string

	renderProps := func(props map[string]any) string {
		if len(props) == 0 {
			return ""
		}
		keys := make([]string, 0, len(props))
		for key := range props {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s: $%s", key, param(props[key])))
		}
		return " {" + strings.Join(parts, ", ") + "}"
	}

	relPattern := func(c patternClause) string {
		arrow := fmt.Sprintf("-[:%s]-", c.relType)
		switch c.direction {
		case DirectionOut:
			return fmt.Sprintf("(%s)%s>(%s)", c.fromVar, arrow, c.toVar)
		case DirectionIn:
			return fmt.Sprintf("(%s)<%s(%s)", c.fromVar, arrow, c.toVar)
		default:
			return fmt.Sprintf("(%s)%s(%s)", c.fromVar, arrow, c.toVar)
		}
	}

	var setLines, deleteLines []string
	for _, c := range b.clauses {
		switch c.kind {
		case clauseMatchNode:
			lines = append(lines, fmt.Sprintf("MATCH (%s:%s%s)", c.variable, c.label, renderProps(c.props)))
		case clauseCreateNode:
			lines = append(lines, fmt.Sprintf("CREATE (%s:%s%s)", c.variable, c.label, renderProps(c.props)))
		case clauseMergeNode:
			lines = append(lines, fmt.Sprintf("MERGE (%s:%s%s)", c.variable, c.label, renderProps(c.props)))
		case clauseOnCreateSet:
			keys := make([]string, 0, len(c.props))
			for key := range c.props {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			parts := make([]string, 0, len(keys))
			for _, key := range keys {
				parts = append(parts, fmt.Sprintf("%s.%s = $%s", c.variable, key, param(c.props[key])))
			}
			lines = append(lines, "ON CREATE SET "+strings.Join(parts, ", "))
		case clauseMatchRel:
			lines = append(lines, "MATCH "+relPattern(c))
		case clauseCreateRel:
			lines = append(lines, "CREATE "+relPattern(c))
		case clauseSet:
			keys := make([]string, 0, len(c.props))
			for key := range c.props {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			parts := make([]string, 0, len(keys))
			for _, key := range keys {
				parts = append(parts, fmt.Sprintf("%s.%s = $%s", c.variable, key, param(c.props[key])))
			}
			setLines = append(setLines, "SET "+strings.Join(parts, ", "))
		case clauseDelete:
			deleteLines = append(deleteLines, fmt.Sprintf("DETACH DELETE %s", c.variable))
		}
	}

	if len(b.predicates) > 0 {
		parts := make([]string, 0, len(b.predicates))
		for _, p := range b.predicates {
			parts = append(parts, fmt.Sprintf("%s.%s %s $%s", p.variable, p.property, string(p.op), param(p.value)))
		}
		lines = append(lines, "WHERE "+strings.Join(parts, " AND "))
	}

	lines = append(lines, setLines...)
	lines = append(lines, deleteLines...)

	if len(b.returns) > 0 {
		parts := make([]string, 0, len(b.returns))
		for _, r := range b.returns {
			if r.properties {
				parts = append(parts, fmt.Sprintf("properties(%s) AS %s", r.variable, r.variable))
			} else {
				parts = append(parts, r.variable)
			}
		}
		lines = append(lines, "RETURN "+strings.Join(parts, ", "))
	}

	if b.orderBy != nil {
		line := fmt.Sprintf("ORDER BY %s.%s", b.orderBy.variable, b.orderBy.property)
		if b.orderBy.descending {
			line += " DESC"
		}
		lines = append(lines, line)
	}

	if b.limit != nil {
		lines = append(lines, fmt.Sprintf("LIMIT %d", *b.limit))
	}

	return CompiledQuery{
		Text:        strings.Join(lines, "\n"),
		Params:      params,
		Cardinality: cardinality,
	}, nil
}

// hasWriteClause reports whether any clause writes, which makes a projection
// optional.
func (b Builder) hasWriteClause() bool {
	for _, c := range b.clauses {
		switch c.kind {
		case clauseCreateNode, clauseMergeNode, clauseCreateRel, clauseSet, clauseDelete:
			return true
		}
	}
	return false
}
