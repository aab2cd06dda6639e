package expr

import (
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer tokenizes test expressions. Number carries no sign so that
// "a-1" lexes as a subtraction.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
	{Name: "Operator", Pattern: `==|!=|<=|>=|&&|\|\||[-+*/%<>!()\[\].]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is the root of a parsed test expression.
type Expression struct {
	Pos lexer.Position
	Or  *OrExpr `@@`
}

type OrExpr struct {
	Left  *AndExpr   `@@`
	Right []*AndExpr `( ( "or" | "||" ) @@ )*`
}

type AndExpr struct {
	Left  *NotExpr   `@@`
	Right []*NotExpr `( ( "and" | "&&" ) @@ )*`
}

type NotExpr struct {
	Not *NotExpr    `  ( "not" | "!" ) @@`
	Cmp *Comparison `| @@`
}

type Comparison struct {
	Left *Additive    `@@`
	Tail *CompareTail `@@?`
}

type CompareTail struct {
	Op    string    `@( "==" | "!=" | "<=" | ">=" | "<" | ">" | "eq" | "neq" | "lte" | "gte" | "lt" | "gt" )`
	Right *Additive `@@`
}

type Additive struct {
	Left *Multiplicative `@@`
	Rest []*AddOp        `@@*`
}

type AddOp struct {
	Op    string          `@( "+" | "-" )`
	Right *Multiplicative `@@`
}

type Multiplicative struct {
	Left *Unary   `@@`
	Rest []*MulOp `@@*`
}

type MulOp struct {
	Op    string `@( "*" | "/" | "%" )`
	Right *Unary `@@`
}

type Unary struct {
	Neg   *Unary   `  "-" @@`
	Value *Primary `| @@`
}

type Primary struct {
	Number *string     `  @Number`
	String *string     `| @String`
	Bool   *string     `| @( "true" | "false" )`
	Null   bool        `| @"null"`
	Sub    *Expression `| "(" @@ ")"`
	Path   *Path       `| @@`
}

// Path is a property path: a name followed by .field, .method() and
// [index] segments.
type Path struct {
	Head     string     `@Ident`
	Segments []*Segment `@@*`
}

type Segment struct {
	Name  *string     `  "." @Ident`
	Call  bool        `  @( "(" ")" )?`
	Index *Expression `| "[" @@ "]"`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

var cache sync.Map // expression text -> *Expression

// Parse parses an expression, reusing the tree of an earlier parse of the
// same text.
func Parse(text string) (*Expression, error) {
	if cached, ok := cache.Load(text); ok {
		return cached.(*Expression), nil
	}
	ast, err := parser.ParseString("", text)
	if err != nil {
		return nil, &ExpressionError{Expr: text, Message: "syntax error: " + err.Error(), Err: err}
	}
	cache.Store(text, ast)
	return ast, nil
}
