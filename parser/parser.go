// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A Recursive descent parser is a top-down parser because it starts from
// the top grammar rule and works its way down into the nested
// sub-expressions before reaching the leaves of the syntax tree (terminal
// rules).
package parser

import (
	"fmt"

	"tpd/ast"
	"tpd/token"
	"tpd/value"
)

var comparisonTokenTypes = []token.TokenType{
	token.LARGER,
	token.LARGER_EQUAL,
	token.LESS,
	token.LESS_EQUAL,
}

var equalityTokenTypes = []token.TokenType{
	token.NOT_EQUAL,
	token.EQUAL_EQUAL,
}

var termTokenTypes = []token.TokenType{
	token.SUB,
	token.ADD,
}

var factorExpressionTypes = []token.TokenType{
	token.MULT,
	token.DIV,
	token.MOD,
}

var assignmentTokenTypes = []token.TokenType{
	token.ASSIGN,
	token.ADD_ASSIGN,
	token.SUB_ASSIGN,
	token.MULT_ASSIGN,
	token.DIV_ASSIGN,
}

type Parser struct {
	tokens   []token.Token
	position int
}

// NOTE: The parser's position is always one unit ahead of the
// current token.

// Make initialises and returns a new Parser over the given token stream.
func Make(tokens []token.Token) *Parser {
	return &Parser{
		tokens:   tokens,
		position: 0,
	}
}

// peek returns the token at the parser's current position without
// advancing it.
func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

// previous returns the token one position behind the parser's current one.
func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

// advance consumes and returns the current token, moving the parser
// forward by one position.
func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

// isFinished reports whether the parser has reached the EOF token.
func (parser *Parser) isFinished() bool {
	return parser.peek().TokenType == token.EOF
}

// checkType reports whether tokenType matches the token at the parser's
// current position.
func (parser *Parser) checkType(tokenType token.TokenType) bool {
	if parser.isFinished() {
		return false
	}
	return parser.peek().TokenType == tokenType
}

// isMatch reports whether the current token's type is one of tokenTypes,
// consuming it if so.
func (parser *Parser) isMatch(tokenTypes []token.TokenType) bool {
	for _, tokenType := range tokenTypes {
		if parser.checkType(tokenType) {
			parser.advance()
			return true
		}
	}
	return false
}

// consume advances past the current token if it matches tokenType,
// otherwise returns a SyntaxError carrying errorMessage.
func (parser *Parser) consume(tokenType token.TokenType, errorMessage string) (token.Token, error) {
	if parser.checkType(tokenType) {
		return parser.advance(), nil
	}
	currentToken := parser.peek()
	return token.Token{}, CreateSyntaxError(currentToken.Line, currentToken.Column, errorMessage)
}

// Parse parses the entire token stream into a module body Block,
// continuing until EOF. Errors are collected but parsing continues to
// surface as many as possible in one pass.
func (parser *Parser) Parse() (ast.Block, []error) {
	var statements []ast.Node
	var errors []error

	for !parser.isFinished() {
		stmt, err := parser.declaration()
		if err != nil {
			errors = append(errors, err)
			if !parser.isFinished() {
				parser.position++
			}
			continue
		}
		statements = append(statements, stmt)
	}

	return ast.Block{Statements: statements}, errors
}

// declaration parses a function definition or import, falling through to
// an ordinary statement otherwise.
func (parser *Parser) declaration() (ast.Node, error) {
	if parser.isMatch([]token.TokenType{token.FUNC}) {
		return parser.functionDefinition()
	}
	if parser.isMatch([]token.TokenType{token.USE}) {
		return parser.loadStatement()
	}
	return parser.statement()
}

// functionDefinition parses `fonk name(params) { body }`.
func (parser *Parser) functionDefinition() (ast.Node, error) {
	name, err := parser.consume(token.IDENTIFIER, "expected a function name")
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.LPA, "expected '(' after function name"); err != nil {
		return nil, err
	}

	var params []token.Token
	if !parser.checkType(token.RPA) {
		for {
			p, err := parser.consume(token.IDENTIFIER, "expected a parameter name")
			if err != nil {
				return nil, err
			}
			for _, seen := range params {
				if seen.Lexeme == p.Lexeme {
					return nil, CreateSyntaxError(p.Line, p.Column, fmt.Sprintf("duplicate parameter name '%s'", p.Lexeme))
				}
			}
			params = append(params, p)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RPA, "expected ')' after parameter list"); err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.LCUR, "expected '{' to start function body"); err != nil {
		return nil, err
	}
	body, err := parser.block()
	if err != nil {
		return nil, err
	}
	return ast.FunctionDefinition{Name: name, Params: params, Body: normaliseFunctionBody(body)}, nil
}

// normaliseFunctionBody appends an implicit `döndür yok` when the body does
// not already end with a Return, per the compiler's contract that every
// function ends on one.
func normaliseFunctionBody(body ast.Block) ast.Block {
	if len(body.Statements) > 0 {
		if _, ok := body.Statements[len(body.Statements)-1].(ast.Return); ok {
			return body
		}
	}
	body.Statements = append(body.Statements, ast.Return{Expr: ast.None{}})
	return body
}

// loadStatement parses `yükle a.b.c;`.
func (parser *Parser) loadStatement() (ast.Node, error) {
	first, err := parser.consume(token.IDENTIFIER, "expected a module path after 'use'")
	if err != nil {
		return nil, err
	}
	path := []string{first.Lexeme}
	for parser.isMatch([]token.TokenType{token.DOT}) {
		seg, err := parser.consume(token.IDENTIFIER, "expected a module path segment after '.'")
		if err != nil {
			return nil, err
		}
		path = append(path, seg.Lexeme)
	}
	parser.isMatch([]token.TokenType{token.SEMICOLON})
	return ast.Load{Path: path}, nil
}

// statement parses a single statement: a block, a control-flow form, or an
// expression statement.
func (parser *Parser) statement() (ast.Node, error) {
	switch {
	case parser.isMatch([]token.TokenType{token.LCUR}):
		return parser.block()
	case parser.isMatch([]token.TokenType{token.IF}):
		return parser.ifStatement()
	case parser.isMatch([]token.TokenType{token.LOOP}):
		return parser.loopStatement()
	case parser.isMatch([]token.TokenType{token.WHILE}):
		return parser.whileStatement()
	case parser.isMatch([]token.TokenType{token.RETURN}):
		return parser.returnStatement()
	case parser.isMatch([]token.TokenType{token.BREAK}):
		parser.isMatch([]token.TokenType{token.SEMICOLON})
		return ast.Break{}, nil
	case parser.isMatch([]token.TokenType{token.CONTINUE}):
		parser.isMatch([]token.TokenType{token.SEMICOLON})
		return ast.Continue{}, nil
	}

	expr, err := parser.expression()
	if err != nil {
		return nil, err
	}
	parser.isMatch([]token.TokenType{token.SEMICOLON})
	return expr, nil
}

// block parses a brace-delimited statement sequence; the opening '{' must
// already have been consumed by the caller.
func (parser *Parser) block() (ast.Block, error) {
	var statements []ast.Node
	for !parser.checkType(token.RCUR) && !parser.isFinished() {
		stmt, err := parser.declaration()
		if err != nil {
			return ast.Block{}, err
		}
		statements = append(statements, stmt)
	}
	if _, err := parser.consume(token.RCUR, "expected '}' to close block"); err != nil {
		return ast.Block{}, err
	}
	return ast.Block{Statements: statements}, nil
}

// requireBlock consumes '{' and parses the block that follows, for
// constructs (if/loop/while) whose body is always brace-delimited.
func (parser *Parser) requireBlock() (ast.Block, error) {
	if _, err := parser.consume(token.LCUR, "expected '{'"); err != nil {
		return ast.Block{}, err
	}
	return parser.block()
}

// ifStatement parses `eğer (cond) { then } (yada eğer (cond) { .. } | elif (cond) { .. })* (yada { .. })?`.
func (parser *Parser) ifStatement() (ast.Node, error) {
	condition, err := parser.parenthesisedExpression()
	if err != nil {
		return nil, err
	}
	then, err := parser.requireBlock()
	if err != nil {
		return nil, err
	}

	var elifs []ast.ElifBranch
	var elseBlock *ast.Block
	for parser.isMatch([]token.TokenType{token.ELSE, token.ELIF}) {
		if parser.previous().TokenType == token.ELIF || parser.isMatch([]token.TokenType{token.IF}) {
			elifCond, err := parser.parenthesisedExpression()
			if err != nil {
				return nil, err
			}
			elifBody, err := parser.requireBlock()
			if err != nil {
				return nil, err
			}
			elifs = append(elifs, ast.ElifBranch{Condition: elifCond, Body: elifBody})
			continue
		}
		finalBlock, err := parser.requireBlock()
		if err != nil {
			return nil, err
		}
		elseBlock = &finalBlock
		break
	}

	return ast.IfStatement{Condition: condition, Then: then, Elifs: elifs, Else: elseBlock}, nil
}

// loopStatement parses `döngü { body }`, an unconditional loop.
func (parser *Parser) loopStatement() (ast.Node, error) {
	body, err := parser.requireBlock()
	if err != nil {
		return nil, err
	}
	return ast.Loop{Body: body}, nil
}

// whileStatement parses `kadar (cond) { body }`.
func (parser *Parser) whileStatement() (ast.Node, error) {
	condition, err := parser.parenthesisedExpression()
	if err != nil {
		return nil, err
	}
	body, err := parser.requireBlock()
	if err != nil {
		return nil, err
	}
	return ast.WhileLoop{Condition: condition, Body: body}, nil
}

// returnStatement parses `döndür expr;` or a bare `döndür;`.
func (parser *Parser) returnStatement() (ast.Node, error) {
	if parser.checkType(token.SEMICOLON) || parser.checkType(token.RCUR) {
		parser.isMatch([]token.TokenType{token.SEMICOLON})
		return ast.Return{Expr: ast.None{}}, nil
	}
	expr, err := parser.expression()
	if err != nil {
		return nil, err
	}
	parser.isMatch([]token.TokenType{token.SEMICOLON})
	return ast.Return{Expr: expr}, nil
}

// parenthesisedExpression parses `(expr)`, used by if/while condition heads.
func (parser *Parser) parenthesisedExpression() (ast.Node, error) {
	if _, err := parser.consume(token.LPA, "expected '(' before condition"); err != nil {
		return nil, err
	}
	expr, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.RPA, "expected ')' after condition"); err != nil {
		return nil, err
	}
	return expr, nil
}

// expression is the entry point for parsing expressions, starting at the
// lowest-precedence rule (assignment).
func (parser *Parser) expression() (ast.Node, error) {
	return parser.assignment()
}

// assignment parses `target (= | += | -= | *= | /=) expression`, where
// target must be a Symbol, Indexer, or MemberAccess.
func (parser *Parser) assignment() (ast.Node, error) {
	target, err := parser.or()
	if err != nil {
		return nil, err
	}

	if parser.isMatch(assignmentTokenTypes) {
		operator := parser.previous()
		rhs, err := parser.assignment()
		if err != nil {
			return nil, err
		}
		switch target.(type) {
		case ast.Symbol, ast.Indexer, ast.MemberAccess:
			return ast.Assignment{Target: target, Operator: operator, Expression: rhs}, nil
		default:
			return nil, CreateSyntaxError(operator.Line, operator.Column, "invalid assignment target")
		}
	}
	return target, nil
}

// or parses `expr (veya expr)*`, left-associative.
func (parser *Parser) or() (ast.Node, error) {
	expr, err := parser.and()
	if err != nil {
		return nil, err
	}
	for parser.isMatch([]token.TokenType{token.OR}) {
		op := parser.previous()
		right, err := parser.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Control{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// and parses `expr (ve expr)*`, left-associative.
func (parser *Parser) and() (ast.Node, error) {
	expr, err := parser.equality()
	if err != nil {
		return nil, err
	}
	for parser.isMatch([]token.TokenType{token.AND}) {
		op := parser.previous()
		right, err := parser.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.Control{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// equality parses `expr ((== | !=) expr)*`.
func (parser *Parser) equality() (ast.Node, error) {
	expr, err := parser.comparison()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(equalityTokenTypes) {
		op := parser.previous()
		right, err := parser.comparison()
		if err != nil {
			return nil, err
		}
		expr = ast.Control{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// comparison parses `expr ((< | <= | > | >=) expr)*`.
func (parser *Parser) comparison() (ast.Node, error) {
	expr, err := parser.term()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(comparisonTokenTypes) {
		op := parser.previous()
		right, err := parser.term()
		if err != nil {
			return nil, err
		}
		expr = ast.Control{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// term parses `expr ((+ | -) expr)*`.
func (parser *Parser) term() (ast.Node, error) {
	expr, err := parser.factor()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(termTokenTypes) {
		op := parser.previous()
		right, err := parser.factor()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// factor parses `expr ((* | / | %) expr)*`.
func (parser *Parser) factor() (ast.Node, error) {
	expr, err := parser.unary()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(factorExpressionTypes) {
		op := parser.previous()
		right, err := parser.unary()
		if err != nil {
			return nil, err
		}
		expr = ast.Binary{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

// unary parses a prefix `! / değil / - / ++ / --` applied to its operand,
// falling through to postfix() once no prefix operator remains.
func (parser *Parser) unary() (ast.Node, error) {
	if parser.isMatch([]token.TokenType{token.BANG, token.NOT, token.SUB, token.PLUS_PLUS, token.MINUS_MINUS}) {
		operator := parser.previous()
		operand, err := parser.unary()
		if err != nil {
			return nil, err
		}
		return ast.PrefixUnary{Operator: operator, Expr: operand}, nil
	}
	return parser.postfix()
}

// postfix parses a primary expression followed by any chain of call,
// index, member-access, or suffix ++/-- operators.
func (parser *Parser) postfix() (ast.Node, error) {
	expr, err := parser.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case parser.isMatch([]token.TokenType{token.LPA}):
			args, err := parser.argumentList()
			if err != nil {
				return nil, err
			}
			expr = ast.FunctionCall{Callee: expr, Args: args}
		case parser.isMatch([]token.TokenType{token.LBRACKET}):
			index, err := parser.expression()
			if err != nil {
				return nil, err
			}
			if _, err := parser.consume(token.RBRACKET, "expected ']' after index expression"); err != nil {
				return nil, err
			}
			expr = ast.Indexer{Object: expr, Index: index}
		case parser.isMatch([]token.TokenType{token.DOT}):
			name, err := parser.consume(token.IDENTIFIER, "expected a member name after '.'")
			if err != nil {
				return nil, err
			}
			expr = ast.MemberAccess{Object: expr, Name: name}
		case parser.isMatch([]token.TokenType{token.PLUS_PLUS, token.MINUS_MINUS}):
			expr = ast.SuffixUnary{Operator: parser.previous(), Expr: expr}
		default:
			return expr, nil
		}
	}
}

// argumentList parses a call's comma-separated argument expressions; the
// opening '(' must already have been consumed.
func (parser *Parser) argumentList() ([]ast.Node, error) {
	var args []ast.Node
	if !parser.checkType(token.RPA) {
		for {
			arg, err := parser.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RPA, "expected ')' after argument list"); err != nil {
		return nil, err
	}
	return args, nil
}

// primary parses the leaves of the grammar: literals, identifiers,
// grouping, list literals, and dict literals.
func (parser *Parser) primary() (ast.Node, error) {
	switch {
	case parser.isMatch([]token.TokenType{token.FALSE}):
		return ast.Primative{Value: value.BoolOf(false)}, nil
	case parser.isMatch([]token.TokenType{token.TRUE}):
		return ast.Primative{Value: value.BoolOf(true)}, nil
	case parser.isMatch([]token.TokenType{token.EMPTY}):
		return ast.Primative{Value: value.Empty}, nil
	case parser.isMatch([]token.TokenType{token.INT}):
		return ast.Primative{Value: value.NumberOf(float64(parser.previous().Literal.(int64)))}, nil
	case parser.isMatch([]token.TokenType{token.FLOAT}):
		return ast.Primative{Value: value.NumberOf(parser.previous().Literal.(float64))}, nil
	case parser.isMatch([]token.TokenType{token.STRING}):
		return ast.Primative{Value: value.TextOf(parser.previous().Literal.(string))}, nil
	case parser.isMatch([]token.TokenType{token.IDENTIFIER}):
		return ast.Symbol{Name: parser.previous()}, nil
	case parser.isMatch([]token.TokenType{token.LPA}):
		expr, err := parser.expression()
		if err != nil {
			return nil, err
		}
		if _, err := parser.consume(token.RPA, "expected ')' to close grouping"); err != nil {
			return nil, err
		}
		return expr, nil
	case parser.isMatch([]token.TokenType{token.LBRACKET}):
		return parser.listLiteral()
	case parser.isMatch([]token.TokenType{token.LCUR}):
		return parser.dictLiteral()
	}

	currentToken := parser.peek()
	return nil, CreateSyntaxError(currentToken.Line, currentToken.Column, "unrecognised expression")
}

// listLiteral parses `[ expr, expr, ... ]`; the opening '[' must already
// have been consumed.
func (parser *Parser) listLiteral() (ast.Node, error) {
	var elements []ast.Node
	if !parser.checkType(token.RBRACKET) {
		for {
			el, err := parser.expression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RBRACKET, "expected ']' to close list literal"); err != nil {
		return nil, err
	}
	return ast.List{Elements: elements}, nil
}

// dictLiteral parses `{ key: value, ... }`; the opening '{' must already
// have been consumed.
func (parser *Parser) dictLiteral() (ast.Node, error) {
	var pairs []ast.DictPair
	if !parser.checkType(token.RCUR) {
		for {
			key, err := parser.expression()
			if err != nil {
				return nil, err
			}
			if _, err := parser.consume(token.COLON, "expected ':' after dict key"); err != nil {
				return nil, err
			}
			val, err := parser.expression()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, ast.DictPair{Key: key, Value: val})
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}
	if _, err := parser.consume(token.RCUR, "expected '}' to close dict literal"); err != nil {
		return nil, err
	}
	return ast.Dict{Pairs: pairs}, nil
}
