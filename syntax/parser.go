package syntax

import (
	"fmt"
)

// Parser parses TSL tokens into an AST.
type Parser struct {
	tokens  []Token
	current int
	errors  []ParseError
}

// ParseError represents a parsing error.
type ParseError struct {
	Message string
	Token   Token
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Token.Line, e.Token.Column, e.Message)
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
	}
}

// Parse parses the tokens and returns a Module AST.
func (p *Parser) Parse() (*Module, error) {
	module := &Module{Span: spanFrom(p.peek())}

	for !p.isAtEnd() {
		if err := p.declaration(module); err != nil {
			p.errors = append(p.errors, *err)
			p.synchronize()
		}
	}

	if len(p.errors) > 0 {
		return module, fmt.Errorf("parsing failed with %d error(s): %w", len(p.errors), p.errors[0])
	}

	return module, nil
}

// declaration parses a top-level declaration.
func (p *Parser) declaration(module *Module) *ParseError {
	switch {
	case p.check(TokenStruct):
		decl, err := p.structDecl()
		if err != nil {
			return err
		}
		module.Structs = append(module.Structs, decl)
		return nil

	case p.check(TokenShader):
		decl, err := p.shaderDecl()
		if err != nil {
			return err
		}
		module.Functions = append(module.Functions, decl)
		return nil

	case p.check(TokenEOF):
		p.advance()
		return nil

	default:
		// A type followed by a name opens either a free function or a
		// module-scope global parameter.
		typ, err := p.typeSpec()
		if err != nil {
			return err
		}
		if !p.check(TokenIdent) {
			return p.errorf("expected name after type")
		}
		name := p.advance()

		if p.check(TokenLeftParen) {
			fn, err := p.functionRest(name, typ, false)
			if err != nil {
				return err
			}
			module.Functions = append(module.Functions, fn)
			return nil
		}

		global := &VarDecl{
			Name: name.Lexeme,
			Type: typ,
			Span: spanFrom(name),
		}
		if p.match(TokenEqual) {
			init, err := p.expression()
			if err != nil {
				return err
			}
			global.Init = init
		}
		if err := p.expectErr(TokenSemicolon); err != nil {
			return err
		}
		module.GlobalVars = append(module.GlobalVars, global)
		return nil
	}
}

// structDecl parses a struct declaration.
func (p *Parser) structDecl() (*StructDecl, *ParseError) {
	start := p.advance() // consume 'struct'

	if !p.check(TokenIdent) {
		return nil, p.errorf("expected struct name")
	}
	name := p.advance()

	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}

	decl := &StructDecl{Name: name.Lexeme, Span: spanFrom(start)}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		memberType, err := p.typeSpec()
		if err != nil {
			return nil, err
		}
		if !p.check(TokenIdent) {
			return nil, p.errorf("expected member name")
		}
		memberName := p.advance()
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		decl.Members = append(decl.Members, &StructMember{
			Name: memberName.Lexeme,
			Type: memberType,
			Span: spanFrom(memberName),
		})
	}

	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}

	return decl, nil
}

// shaderDecl parses a shader root function.
func (p *Parser) shaderDecl() (*FunctionDecl, *ParseError) {
	p.advance() // consume 'shader'

	if !p.check(TokenIdent) {
		return nil, p.errorf("expected shader name")
	}
	name := p.advance()

	return p.functionRest(name, DataType{Kind: TypeVoid}, true)
}

// functionRest parses the parameter list and body shared by shaders and
// free functions.
func (p *Parser) functionRest(name Token, ret DataType, shader bool) (*FunctionDecl, *ParseError) {
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}

	params := make([]*Parameter, 0, 4)
	for !p.check(TokenRightParen) && !p.isAtEnd() {
		param, err := p.parameter()
		if err != nil {
			return nil, err
		}
		params = append(params, param)

		if !p.match(TokenComma) {
			break
		}
	}

	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	body, err := p.blockStmt()
	if err != nil {
		return nil, err
	}

	return &FunctionDecl{
		Name:       name.Lexeme,
		Shader:     shader,
		ReturnType: ret,
		Params:     params,
		Body:       body,
		Span:       spanFrom(name),
	}, nil
}

// parameter parses one parameter with its optional in/out qualifier.
func (p *Parser) parameter() (*Parameter, *ParseError) {
	output := false
	if p.match(TokenOut) {
		output = true
	} else {
		p.match(TokenIn)
	}

	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}

	if !p.check(TokenIdent) {
		return nil, p.errorf("expected parameter name")
	}
	name := p.advance()

	return &Parameter{
		Name:   name.Lexeme,
		Type:   typ,
		Output: output,
		Span:   spanFrom(name),
	}, nil
}

// typeSpec parses a type.
func (p *Parser) typeSpec() (DataType, *ParseError) {
	tok := p.peek()
	switch tok.Kind {
	case TokenVoid:
		p.advance()
		return DataType{Kind: TypeVoid}, nil
	case TokenInt:
		p.advance()
		return DataType{Kind: TypeInt}, nil
	case TokenFloat:
		p.advance()
		return DataType{Kind: TypeFloat}, nil
	case TokenDouble:
		p.advance()
		return DataType{Kind: TypeDouble}, nil
	case TokenBool:
		p.advance()
		return DataType{Kind: TypeBool}, nil
	case TokenFloat3:
		p.advance()
		return DataType{Kind: TypeFloat3}, nil
	case TokenFloat4:
		p.advance()
		return DataType{Kind: TypeFloat4}, nil
	case TokenMatrix:
		p.advance()
		return DataType{Kind: TypeMatrix}, nil
	case TokenClosure:
		p.advance()
		return DataType{Kind: TypeClosure}, nil
	case TokenIdent:
		p.advance()
		return DataType{Kind: TypeStruct, StructName: tok.Lexeme}, nil
	default:
		return DataType{}, p.errorf("expected type, got %s", tok.Kind)
	}
}

// Statements

func (p *Parser) statement() (Stmt, *ParseError) {
	switch {
	case p.check(TokenLeftBrace):
		return p.blockStmt()
	case p.check(TokenIf):
		return p.ifStmt()
	case p.check(TokenReturn):
		return p.returnStmt()
	case p.checkType():
		return p.varDeclStmt()
	default:
		return p.assignOrExprStmt()
	}
}

// checkType reports whether the current position opens a local variable
// declaration: a type keyword, or a struct-type name followed by another
// identifier.
func (p *Parser) checkType() bool {
	switch p.peek().Kind {
	case TokenInt, TokenFloat, TokenDouble, TokenBool, TokenFloat3,
		TokenFloat4, TokenMatrix, TokenClosure:
		return true
	case TokenIdent:
		return p.peekNext().Kind == TokenIdent
	default:
		return false
	}
}

func (p *Parser) blockStmt() (*BlockStmt, *ParseError) {
	start := p.peek()
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}

	block := &BlockStmt{Span: spanFrom(start)}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}

	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) ifStmt() (Stmt, *ParseError) {
	start := p.advance() // consume 'if'

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	body, err := p.blockStmt()
	if err != nil {
		return nil, err
	}

	stmt := &IfStmt{Condition: cond, Body: body, Span: spanFrom(start)}
	if p.match(TokenElse) {
		if p.check(TokenIf) {
			elseStmt, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseStmt
		} else {
			elseBlock, err := p.blockStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBlock
		}
	}
	return stmt, nil
}

func (p *Parser) returnStmt() (Stmt, *ParseError) {
	start := p.advance() // consume 'return'

	stmt := &ReturnStmt{Span: spanFrom(start)}
	if !p.check(TokenSemicolon) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) varDeclStmt() (Stmt, *ParseError) {
	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	if !p.check(TokenIdent) {
		return nil, p.errorf("expected variable name")
	}
	name := p.advance()

	decl := &VarDecl{Name: name.Lexeme, Type: typ, Span: spanFrom(name)}
	if p.match(TokenEqual) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) assignOrExprStmt() (Stmt, *ParseError) {
	start := p.peek()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}

	if p.match(TokenEqual) {
		if !isLvalue(expr) {
			return nil, p.errorf("invalid assignment target")
		}
		right, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &AssignStmt{Left: expr, Right: right, Span: spanFrom(start)}, nil
	}

	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr, Span: spanFrom(start)}, nil
}

func isLvalue(expr Expr) bool {
	switch e := expr.(type) {
	case *Ident:
		return true
	case *MemberExpr:
		return isLvalue(e.Expr)
	default:
		return false
	}
}

// Expressions, by descending precedence.

func (p *Parser) expression() (Expr, *ParseError) {
	return p.logicalOr()
}

func (p *Parser) logicalOr() (Expr, *ParseError) {
	return p.binaryLevel(p.logicalAnd, TokenPipePipe)
}

func (p *Parser) logicalAnd() (Expr, *ParseError) {
	return p.binaryLevel(p.equality, TokenAmpAmp)
}

func (p *Parser) equality() (Expr, *ParseError) {
	return p.binaryLevel(p.comparison, TokenEqualEqual, TokenBangEqual)
}

func (p *Parser) comparison() (Expr, *ParseError) {
	return p.binaryLevel(p.term, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) term() (Expr, *ParseError) {
	return p.binaryLevel(p.factor, TokenPlus, TokenMinus)
}

func (p *Parser) factor() (Expr, *ParseError) {
	return p.binaryLevel(p.unary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) binaryLevel(next func() (Expr, *ParseError), ops ...TokenKind) (Expr, *ParseError) {
	expr, err := next()
	if err != nil {
		return nil, err
	}

	for p.checkAny(ops...) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{
			Left:  expr,
			Op:    op.Kind,
			Right: right,
			Span:  spanFrom(op),
		}
	}
	return expr, nil
}

func (p *Parser) unary() (Expr, *ParseError) {
	if p.check(TokenMinus) || p.check(TokenBang) {
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op.Kind, Operand: operand, Span: spanFrom(op)}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, *ParseError) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}

	for p.check(TokenDot) {
		p.advance()
		if !p.check(TokenIdent) {
			return nil, p.errorf("expected member name after '.'")
		}
		member := p.advance()
		expr = &MemberExpr{Expr: expr, Member: member.Lexeme, Span: spanFrom(member)}
	}
	return expr, nil
}

func (p *Parser) primary() (Expr, *ParseError) {
	tok := p.peek()

	switch tok.Kind {
	case TokenIntLiteral, TokenFloatLiteral, TokenDoubleLiteral, TokenTrue, TokenFalse:
		p.advance()
		return &Literal{Kind: tok.Kind, Value: tok.Lexeme, Span: spanFrom(tok)}, nil

	case TokenLeftParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil

	case TokenFloat3, TokenFloat4:
		p.advance()
		args, err := p.argumentList()
		if err != nil {
			return nil, err
		}
		kind := TypeFloat3
		if tok.Kind == TokenFloat4 {
			kind = TypeFloat4
		}
		return &ConstructExpr{Type: DataType{Kind: kind}, Args: args, Span: spanFrom(tok)}, nil

	case TokenMakeClosure:
		p.advance()
		name, err := p.angleName()
		if err != nil {
			return nil, err
		}
		args, err := p.argumentList()
		if err != nil {
			return nil, err
		}
		return &MakeClosureExpr{Closure: name, Args: args, Span: spanFrom(tok)}, nil

	case TokenGlobalValue:
		p.advance()
		name, err := p.angleName()
		if err != nil {
			return nil, err
		}
		return &GlobalValueExpr{Name: name, Span: spanFrom(tok)}, nil

	case TokenIdent:
		p.advance()
		ident := &Ident{Name: tok.Lexeme, Span: spanFrom(tok)}
		if p.check(TokenLeftParen) {
			args, err := p.argumentList()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Func: ident, Args: args, Span: spanFrom(tok)}, nil
		}
		return ident, nil

	default:
		return nil, p.errorf("unexpected token %s, expected expression", tok.Kind)
	}
}

// angleName parses the <name> part of make_closure and global_value.
func (p *Parser) angleName() (string, *ParseError) {
	if err := p.expectErr(TokenLess); err != nil {
		return "", err
	}
	if !p.check(TokenIdent) {
		return "", p.errorf("expected name inside <>")
	}
	name := p.advance()
	if err := p.expectErr(TokenGreater); err != nil {
		return "", err
	}
	return name.Lexeme, nil
}

func (p *Parser) argumentList() ([]Expr, *ParseError) {
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}

	var args []Expr
	for !p.check(TokenRightParen) && !p.isAtEnd() {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if !p.match(TokenComma) {
			break
		}
	}

	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return args, nil
}

// Parser plumbing.

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekNext() Token {
	if p.current+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+1]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) checkAny(kinds ...TokenKind) bool {
	for _, kind := range kinds {
		if p.check(kind) {
			return true
		}
	}
	return false
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectErr(kind TokenKind) *ParseError {
	if p.match(kind) {
		return nil
	}
	return p.errorf("expected %s, got %s", kind, p.peek().Kind)
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Token:   p.peek(),
	}
}

// synchronize skips tokens until a likely statement boundary so that one
// error does not cascade.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.advance().Kind == TokenSemicolon {
			return
		}
		switch p.peek().Kind {
		case TokenShader, TokenStruct, TokenRightBrace:
			return
		}
	}
}

func spanFrom(tok Token) Span {
	return Span{
		Start: Position{Line: tok.Line, Column: tok.Column},
		End:   Position{Line: tok.Line, Column: tok.Column + len(tok.Lexeme)},
	}
}
