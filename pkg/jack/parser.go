package jack

import (
	"fmt"
	"io"

	"its-hmny.dev/nand2tetris/pkg/utils"
)

// ----------------------------------------------------------------------------
// Jack Parser

// This section defines the Parser for the nand2tetris Jack language.
//
// Unlike the asm/vm front-ends it doesn't lean on a parser combinator library: the
// Jack grammar nests statements inside statements and expressions inside expressions,
// which a hand-written recursive descent parser driven by the Tokenizer's pull
// contract expresses far more directly than a combinator tree would. Each grammar
// production below (class, classVarDec, subroutineDec, ...) gets its own method, named
// after the production it parses, mirroring the textbook Jack grammar.
//
// Per the language's spec: there's no operator precedence, expressions fold strictly
// left-to-right term by term, exactly as they're written.
type Parser struct {
	tok *Tokenizer
}

// Initializes and returns to the caller a brand new 'Parser' struct, eagerly reading
// and tokenizing the whole of 'r'.
func NewParser(r io.Reader) (*Parser, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read from 'io.Reader': %w", err)
	}

	tok, err := NewTokenizer(string(content))
	if err != nil {
		return nil, fmt.Errorf("error tokenizing source: %w", err)
	}

	return &Parser{tok: tok}, nil
}

// Parser entrypoint, parses a single compilation unit (one '.jack' file) into its
// 'jack.Class' AST.
func (p *Parser) Parse() (Class, error) {
	if err := p.tok.Advance(); err != nil {
		return Class{}, fmt.Errorf("error reading first token: %w", err)
	}

	class, err := p.parseClass()
	if err != nil {
		return Class{}, fmt.Errorf("error parsing class: %w", err)
	}

	if cur, _ := p.current(); cur.Type != EOFToken {
		return Class{}, fmt.Errorf("unexpected trailing content after class body, got %+v", cur)
	}

	return class, nil
}

// ----------------------------------------------------------------------------
// Token stream helpers

func (p *Parser) current() (Token, error) { return p.tok.Current() }

// Consumes the current token and moves onto the next one. A no-op at EOF, since the
// sentinel EOF token is never advanced past.
func (p *Parser) advance() error {
	if !p.tok.HasMore() {
		return nil
	}
	return p.tok.Advance()
}

// Verifies the current token is a keyword equal to 'value' and consumes it.
func (p *Parser) expectKeyword(value string) error {
	cur, err := p.current()
	if err != nil {
		return err
	}
	if cur.Type != KeywordToken || cur.Value != value {
		return fmt.Errorf("expected keyword '%s', got %+v", value, cur)
	}
	return p.advance()
}

// Verifies the current token is a symbol equal to 'value' and consumes it.
func (p *Parser) expectSymbol(value string) error {
	cur, err := p.current()
	if err != nil {
		return err
	}
	if cur.Type != SymbolToken || cur.Value != value {
		return fmt.Errorf("expected symbol '%s', got %+v", value, cur)
	}
	return p.advance()
}

// Verifies the current token is an identifier, returns its value and consumes it.
func (p *Parser) expectIdentifier() (string, error) {
	cur, err := p.current()
	if err != nil {
		return "", err
	}
	if cur.Type != IdentifierToken {
		return "", fmt.Errorf("expected identifier, got %+v", cur)
	}
	return cur.Value, p.advance()
}

// Reports whether the current token is a symbol equal to any of 'values'.
func (p *Parser) currentIsSymbol(values ...string) bool {
	cur, err := p.current()
	if err != nil {
		return false
	}
	for _, v := range values {
		if cur.Type == SymbolToken && cur.Value == v {
			return true
		}
	}
	return false
}

// Reports whether the current token is a keyword equal to any of 'values'.
func (p *Parser) currentIsKeyword(values ...string) bool {
	cur, err := p.current()
	if err != nil {
		return false
	}
	for _, v := range values {
		if cur.Type == KeywordToken && cur.Value == v {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Class, class-level variables and subroutines

func (p *Parser) parseClass() (Class, error) {
	if err := p.expectKeyword("class"); err != nil {
		return Class{}, err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return Class{}, fmt.Errorf("error reading class name: %w", err)
	}

	if err := p.expectSymbol("{"); err != nil {
		return Class{}, err
	}

	class := Class{
		Name:        name,
		Fields:      utils.NewOrderedMap[string, Variable](),
		Subroutines: utils.NewOrderedMap[string, Subroutine](),
	}

	for p.currentIsKeyword("static", "field") {
		vars, err := p.parseClassVarDec()
		if err != nil {
			return Class{}, fmt.Errorf("error parsing class variable declaration: %w", err)
		}
		for _, v := range vars {
			class.Fields.Set(v.Name, v)
		}
	}

	for p.currentIsKeyword("constructor", "function", "method") {
		subroutine, err := p.parseSubroutineDec()
		if err != nil {
			return Class{}, fmt.Errorf("error parsing subroutine declaration: %w", err)
		}
		class.Subroutines.Set(subroutine.Name, subroutine)
	}

	if err := p.expectSymbol("}"); err != nil {
		return Class{}, err
	}

	return class, nil
}

// classVarDec: ('static' | 'field') type varName (',' varName)* ';'
func (p *Parser) parseClassVarDec() ([]Variable, error) {
	cur, err := p.current()
	if err != nil {
		return nil, err
	}

	varType := Field
	if cur.Value == "static" {
		varType = Static
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	dataType, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("error parsing variable data type: %w", err)
	}

	names, err := p.parseVarNameList()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, Variable{Name: name, VarType: varType, DataType: dataType})
	}
	return vars, nil
}

// varName (',' varName)*
func (p *Parser) parseVarNameList() ([]string, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, fmt.Errorf("error reading variable name: %w", err)
	}
	names := []string{name}

	for p.currentIsSymbol(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, fmt.Errorf("error reading variable name: %w", err)
		}
		names = append(names, name)
	}

	return names, nil
}

// type: 'int' | 'char' | 'boolean' | className
func (p *Parser) parseType() (DataType, error) {
	cur, err := p.current()
	if err != nil {
		return DataType{}, err
	}

	switch {
	case cur.Type == KeywordToken && cur.Value == "int":
		return DataType{Main: Int}, p.advance()
	case cur.Type == KeywordToken && cur.Value == "char":
		return DataType{Main: Char}, p.advance()
	case cur.Type == KeywordToken && cur.Value == "boolean":
		return DataType{Main: Bool}, p.advance()
	case cur.Type == IdentifierToken:
		return DataType{Main: Object, Subtype: cur.Value}, p.advance()
	default:
		return DataType{}, fmt.Errorf("expected a type (int, char, boolean or class name), got %+v", cur)
	}
}

// subroutineDec: ('constructor' | 'function' | 'method') ('void' | type)
//
//	subroutineName '(' parameterList ')' subroutineBody
func (p *Parser) parseSubroutineDec() (Subroutine, error) {
	cur, err := p.current()
	if err != nil {
		return Subroutine{}, err
	}

	subType := Function
	switch cur.Value {
	case "constructor":
		subType = Constructor
	case "method":
		subType = Method
	}
	if err := p.advance(); err != nil {
		return Subroutine{}, err
	}

	var returnType DataType
	if p.currentIsKeyword("void") {
		returnType = DataType{Main: Void}
		if err := p.advance(); err != nil {
			return Subroutine{}, err
		}
	} else {
		returnType, err = p.parseType()
		if err != nil {
			return Subroutine{}, fmt.Errorf("error parsing return type: %w", err)
		}
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return Subroutine{}, fmt.Errorf("error reading subroutine name: %w", err)
	}

	if err := p.expectSymbol("("); err != nil {
		return Subroutine{}, err
	}
	args, err := p.parseParameterList()
	if err != nil {
		return Subroutine{}, fmt.Errorf("error parsing parameter list: %w", err)
	}
	if err := p.expectSymbol(")"); err != nil {
		return Subroutine{}, err
	}

	statements, err := p.parseSubroutineBody()
	if err != nil {
		return Subroutine{}, fmt.Errorf("error parsing subroutine body: %w", err)
	}

	return Subroutine{Name: name, Type: subType, Return: returnType, Arguments: args, Statements: statements}, nil
}

// parameterList: ((type varName) (',' type varName)*)?
func (p *Parser) parseParameterList() ([]Variable, error) {
	args := []Variable{}

	if p.currentIsSymbol(")") {
		return args, nil
	}

	for {
		dataType, err := p.parseType()
		if err != nil {
			return nil, fmt.Errorf("error parsing parameter type: %w", err)
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, fmt.Errorf("error reading parameter name: %w", err)
		}
		args = append(args, Variable{Name: name, VarType: Parameter, DataType: dataType})

		if !p.currentIsSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	return args, nil
}

// subroutineBody: '{' varDec* statements '}'
//
// Local variable declarations are folded into the statement list as 'VarStmt' nodes,
// same as class fields are, since the Emitter treats both uniformly (see
// 'Emitter.HandleVarStmt').
func (p *Parser) parseSubroutineBody() ([]Statement, error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}

	statements := []Statement{}

	for p.currentIsKeyword("var") {
		vars, err := p.parseVarDec()
		if err != nil {
			return nil, fmt.Errorf("error parsing local variable declaration: %w", err)
		}
		statements = append(statements, VarStmt{Vars: vars})
	}

	stmts, err := p.parseStatements()
	if err != nil {
		return nil, err
	}
	statements = append(statements, stmts...)

	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}

	return statements, nil
}

// varDec: 'var' type varName (',' varName)* ';'
func (p *Parser) parseVarDec() ([]Variable, error) {
	if err := p.expectKeyword("var"); err != nil {
		return nil, err
	}

	dataType, err := p.parseType()
	if err != nil {
		return nil, fmt.Errorf("error parsing variable data type: %w", err)
	}

	names, err := p.parseVarNameList()
	if err != nil {
		return nil, err
	}

	if err := p.expectSymbol(";"); err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, Variable{Name: name, VarType: Local, DataType: dataType})
	}
	return vars, nil
}

// ----------------------------------------------------------------------------
// Statements

// statements: statement*
func (p *Parser) parseStatements() ([]Statement, error) {
	statements := []Statement{}

	for p.currentIsKeyword("let", "if", "while", "do", "return") {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	return statements, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	cur, err := p.current()
	if err != nil {
		return nil, err
	}

	switch cur.Value {
	case "let":
		return p.parseLetStatement()
	case "if":
		return p.parseIfStatement()
	case "while":
		return p.parseWhileStatement()
	case "do":
		return p.parseDoStatement()
	case "return":
		return p.parseReturnStatement()
	default:
		return nil, fmt.Errorf("expected a statement (let, if, while, do or return), got %+v", cur)
	}
}

// letStatement: 'let' varName ('[' expression ']')? '=' expression ';'
func (p *Parser) parseLetStatement() (LetStmt, error) {
	if err := p.expectKeyword("let"); err != nil {
		return LetStmt{}, err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return LetStmt{}, fmt.Errorf("error reading assignment target name: %w", err)
	}

	var lhs Expression = VarExpr{Var: name}
	if p.currentIsSymbol("[") {
		if err := p.advance(); err != nil {
			return LetStmt{}, err
		}
		index, err := p.parseExpression()
		if err != nil {
			return LetStmt{}, fmt.Errorf("error parsing array index expression: %w", err)
		}
		if err := p.expectSymbol("]"); err != nil {
			return LetStmt{}, err
		}
		lhs = ArrayExpr{Var: name, Index: index}
	}

	if err := p.expectSymbol("="); err != nil {
		return LetStmt{}, err
	}

	rhs, err := p.parseExpression()
	if err != nil {
		return LetStmt{}, fmt.Errorf("error parsing assignment value expression: %w", err)
	}

	if err := p.expectSymbol(";"); err != nil {
		return LetStmt{}, err
	}

	return LetStmt{Lhs: lhs, Rhs: rhs}, nil
}

// ifStatement: 'if' '(' expression ')' '{' statements '}' ('else' '{' statements '}')?
func (p *Parser) parseIfStatement() (IfStmt, error) {
	if err := p.expectKeyword("if"); err != nil {
		return IfStmt{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return IfStmt{}, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return IfStmt{}, fmt.Errorf("error parsing if condition: %w", err)
	}
	if err := p.expectSymbol(")"); err != nil {
		return IfStmt{}, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return IfStmt{}, err
	}
	thenBlock, err := p.parseStatements()
	if err != nil {
		return IfStmt{}, fmt.Errorf("error parsing 'then' block: %w", err)
	}
	if err := p.expectSymbol("}"); err != nil {
		return IfStmt{}, err
	}

	var elseBlock []Statement
	if p.currentIsKeyword("else") {
		if err := p.advance(); err != nil {
			return IfStmt{}, err
		}
		if err := p.expectSymbol("{"); err != nil {
			return IfStmt{}, err
		}
		elseBlock, err = p.parseStatements()
		if err != nil {
			return IfStmt{}, fmt.Errorf("error parsing 'else' block: %w", err)
		}
		if err := p.expectSymbol("}"); err != nil {
			return IfStmt{}, err
		}
	}

	return IfStmt{Condition: cond, ThenBlock: thenBlock, ElseBlock: elseBlock}, nil
}

// whileStatement: 'while' '(' expression ')' '{' statements '}'
func (p *Parser) parseWhileStatement() (WhileStmt, error) {
	if err := p.expectKeyword("while"); err != nil {
		return WhileStmt{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return WhileStmt{}, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return WhileStmt{}, fmt.Errorf("error parsing while condition: %w", err)
	}
	if err := p.expectSymbol(")"); err != nil {
		return WhileStmt{}, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return WhileStmt{}, err
	}
	block, err := p.parseStatements()
	if err != nil {
		return WhileStmt{}, fmt.Errorf("error parsing while block: %w", err)
	}
	if err := p.expectSymbol("}"); err != nil {
		return WhileStmt{}, err
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

// doStatement: 'do' subroutineCall ';'
func (p *Parser) parseDoStatement() (DoStmt, error) {
	if err := p.expectKeyword("do"); err != nil {
		return DoStmt{}, err
	}

	call, err := p.parseSubroutineCall()
	if err != nil {
		return DoStmt{}, fmt.Errorf("error parsing subroutine call: %w", err)
	}

	if err := p.expectSymbol(";"); err != nil {
		return DoStmt{}, err
	}

	return DoStmt{FuncCall: call}, nil
}

// returnStatement: 'return' expression? ';'
func (p *Parser) parseReturnStatement() (ReturnStmt, error) {
	if err := p.expectKeyword("return"); err != nil {
		return ReturnStmt{}, err
	}

	if p.currentIsSymbol(";") {
		if err := p.advance(); err != nil {
			return ReturnStmt{}, err
		}
		return ReturnStmt{}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return ReturnStmt{}, fmt.Errorf("error parsing return expression: %w", err)
	}

	if err := p.expectSymbol(";"); err != nil {
		return ReturnStmt{}, err
	}

	return ReturnStmt{Expr: expr}, nil
}

// ----------------------------------------------------------------------------
// Expressions

// Binary operators fold strictly left to right, there's no operator precedence in
// this language: 'a + b * c' means '(a + b) * c', exactly as written.
var binaryOperators = map[string]ExprType{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// Unary operators, '^' and '#' included for the shift extensions (see jack.go).
var unaryOperators = map[string]ExprType{
	"-": Minus, "~": BoolNot, "^": ShiftLeft, "#": ShiftRight,
}

// expression: term (op term)*
func (p *Parser) parseExpression() (Expression, error) {
	lhs, err := p.parseTerm()
	if err != nil {
		return nil, fmt.Errorf("error parsing expression term: %w", err)
	}

	for {
		cur, err := p.current()
		if err != nil {
			return nil, err
		}
		if cur.Type != SymbolToken {
			break
		}
		op, isBinary := binaryOperators[cur.Value]
		if !isBinary {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}

		rhs, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("error parsing expression term: %w", err)
		}

		lhs = BinaryExpr{Type: op, Lhs: lhs, Rhs: rhs}
	}

	return lhs, nil
}

// term: integerConstant | stringConstant | keywordConstant | varName | varName'['expression']'
//
//	| subroutineCall | '(' expression ')' | unaryOp term
func (p *Parser) parseTerm() (Expression, error) {
	cur, err := p.current()
	if err != nil {
		return nil, err
	}

	switch {
	case cur.Type == IntConstToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return LiteralExpr{Type: DataType{Main: Int}, Value: cur.Value}, nil

	case cur.Type == StringConstToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return LiteralExpr{Type: DataType{Main: String}, Value: cur.Value}, nil

	case cur.Type == KeywordToken && (cur.Value == "true" || cur.Value == "false"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return LiteralExpr{Type: DataType{Main: Bool}, Value: cur.Value}, nil

	case cur.Type == KeywordToken && cur.Value == "null":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return LiteralExpr{Type: DataType{Main: Null}, Value: "null"}, nil

	case cur.Type == KeywordToken && cur.Value == "this":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return VarExpr{Var: "this"}, nil

	case cur.Type == SymbolToken && cur.Value == "(":
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, fmt.Errorf("error parsing parenthesized expression: %w", err)
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case cur.Type == SymbolToken:
		op, isUnary := unaryOperators[cur.Value]
		if !isUnary {
			return nil, fmt.Errorf("unexpected symbol in expression: %+v", cur)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("error parsing operand for unary '%s': %w", cur.Value, err)
		}
		return UnaryExpr{Type: op, Rhs: rhs}, nil

	case cur.Type == IdentifierToken:
		return p.parseIdentifierTerm()

	default:
		return nil, fmt.Errorf("unexpected token in expression: %+v", cur)
	}
}

// Disambiguates the four productions that start with an identifier: a bare variable
// read, an array access, a local subroutine call or an external one. Consumes the
// identifier first, then the next token alone (a plain '[', '(' or '.') is enough to
// tell them apart.
func (p *Parser) parseIdentifierTerm() (Expression, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}

	if p.currentIsSymbol("[") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		index, err := p.parseExpression()
		if err != nil {
			return nil, fmt.Errorf("error parsing array index expression: %w", err)
		}
		if err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		return ArrayExpr{Var: name, Index: index}, nil
	}

	if p.currentIsSymbol("(") || p.currentIsSymbol(".") {
		return p.parseSubroutineCallTail(name)
	}

	return VarExpr{Var: name}, nil
}

// subroutineCall: subroutineName '(' expressionList ')'
//
//	| (className | varName) '.' subroutineName '(' expressionList ')'
func (p *Parser) parseSubroutineCall() (FuncCallExpr, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return FuncCallExpr{}, fmt.Errorf("error reading subroutine call target: %w", err)
	}
	return p.parseSubroutineCallTail(name)
}

// Shared tail of 'subroutineCall', reused by 'parseIdentifierTerm' once it has already
// consumed the leading identifier and decided it must be a call.
func (p *Parser) parseSubroutineCallTail(name string) (FuncCallExpr, error) {
	call := FuncCallExpr{FuncName: name}

	if p.currentIsSymbol(".") {
		if err := p.advance(); err != nil {
			return FuncCallExpr{}, err
		}
		funcName, err := p.expectIdentifier()
		if err != nil {
			return FuncCallExpr{}, fmt.Errorf("error reading qualified subroutine name: %w", err)
		}
		call = FuncCallExpr{IsExtCall: true, Var: name, FuncName: funcName}
	}

	if err := p.expectSymbol("("); err != nil {
		return FuncCallExpr{}, err
	}
	args, err := p.parseExpressionList()
	if err != nil {
		return FuncCallExpr{}, fmt.Errorf("error parsing argument list: %w", err)
	}
	if err := p.expectSymbol(")"); err != nil {
		return FuncCallExpr{}, err
	}

	call.Arguments = args
	return call, nil
}

// expressionList: (expression (',' expression)*)?
func (p *Parser) parseExpressionList() ([]Expression, error) {
	args := []Expression{}

	if p.currentIsSymbol(")") {
		return args, nil
	}

	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, expr)

		if !p.currentIsSymbol(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	return args, nil
}
