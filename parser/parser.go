// Copyright (c) 2024 The CuteC Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package parser builds an *ast.Program from a token stream with a
// single token of lookahead (§4.P), using operator-precedence climbing
// for expressions and recursive descent for everything else. Unlike a
// one-shot parser, it does not stop at the first syntax error: it
// reports into a diag.Bag and keeps going, so a single parse can
// surface more than one mistake. A top-level declaration without a name
// is skipped to the next `;` or `}`; anywhere else an unexpected token
// is reported and stepped over one token at a time, with no skip to a
// statement boundary, so later diagnostics may follow from the first.
package parser

import (
	"github.com/cutec-lang/cutec/ast"
	"github.com/cutec-lang/cutec/diag"
	"github.com/cutec-lang/cutec/token"
	"github.com/cutec-lang/cutec/types"
)

type Parser struct {
	toks []token.Token
	pos  int
	errs *diag.Bag
}

// New builds a Parser over toks, which must end with a TK_EOF token.
func New(toks []token.Token, errs *diag.Bag) *Parser {
	return &Parser{toks: toks, errs: errs}
}

func Parse(toks []token.Token, errs *diag.Bag) *ast.Program {
	return New(toks, errs).ParseProgram()
}

func (p *Parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

// expect consumes the current token if it has kind k, else reports a
// syntax error and returns the offending token without advancing.
func (p *Parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.advance()
	}
	t := p.cur()
	p.errs.Add(diag.Syntactic, t.Pos, "expected %s, found %s", k, t.Kind)
	return t
}

// syncTo advances until the current token is one of the stop kinds (or
// EOF), used to recover after a malformed declaration or statement.
func (p *Parser) syncTo(stop ...token.Kind) {
	for !p.at(token.TK_EOF) {
		for _, s := range stop {
			if p.at(s) {
				return
			}
		}
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Program / declarations

func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(token.TK_EOF) {
		d := p.parseTopLevelDecl()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	return prog
}

// specifiers is the decoded specifier-sequence of a declaration.
type specifiers struct {
	typ     *types.Type
	storage ast.StorageClass
}

// parseSpecifiers consumes a run of type/storage-class keywords and
// resolves them to a single base type (§4.P "specifier sequences").
// signed/unsigned/int/long combine per the usual C rules; the base
// language has no composite type specifiers.
func (p *Parser) parseSpecifiers() specifiers {
	var (
		sawInt, sawLong, sawSigned, sawUnsigned, sawDouble bool
		storage                                            = ast.StorageNone
		pos                                                = p.cur().Pos
	)
	storageCount := 0
	for p.cur().Kind.IsTypeSpecifier() {
		switch p.cur().Kind {
		case token.KW_TYPE_INT:
			sawInt = true
		case token.KW_TYPE_LONG:
			sawLong = true
		case token.KW_TYPE_SIGNED:
			sawSigned = true
		case token.KW_TYPE_UNSIGNED:
			sawUnsigned = true
		case token.KW_TYPE_DOUBLE:
			sawDouble = true
		case token.KW_STATIC:
			storageCount++
			storage = ast.StorageStatic
		case token.KW_EXTERN:
			storageCount++
			storage = ast.StorageExtern
		}
		p.advance()
	}
	if sawDouble && (sawInt || sawLong || sawSigned || sawUnsigned) || sawSigned && sawUnsigned {
		p.errs.Add(diag.Syntactic, pos, "invalid combination of type specifiers")
	}
	if storageCount > 1 {
		p.errs.Add(diag.Syntactic, pos, "more than one storage class")
	}

	var t *types.Type
	switch {
	case sawDouble:
		t = types.TDouble
	case sawLong && sawUnsigned:
		t = types.TULong
	case sawLong:
		t = types.TLong
	case sawUnsigned:
		t = types.TUInt
	default:
		_ = sawInt
		_ = sawSigned
		t = types.TInt
	}
	if !sawInt && !sawLong && !sawSigned && !sawUnsigned && !sawDouble {
		p.errs.Add(diag.Syntactic, pos, "expected a type specifier")
	}
	return specifiers{typ: t, storage: storage}
}

func (p *Parser) parseTopLevelDecl() ast.Decl {
	pos := p.cur().Pos
	spec := p.parseSpecifiers()
	if !p.at(token.TK_IDENT) {
		p.errs.Add(diag.Syntactic, p.cur().Pos, "expected an identifier, found %s", p.cur().Kind)
		p.syncTo(token.TK_SEMICOLON, token.TK_RBRACE, token.TK_EOF)
		if p.at(token.TK_SEMICOLON) {
			p.advance()
		}
		return nil
	}
	name := p.advance().Lexeme

	if p.at(token.TK_LPAREN) {
		return p.parseFunctionDecl(pos, name, spec)
	}
	return p.parseVariableDeclRest(pos, name, spec, true)
}

func (p *Parser) parseFunctionDecl(pos token.Pos, name string, spec specifiers) *ast.FunctionDecl {
	p.expect(token.TK_LPAREN)
	var params []string
	var paramTypes []*types.Type
	if p.at(token.KW_VOID) && p.peek().Kind == token.TK_RPAREN {
		p.advance()
	} else if !p.at(token.TK_RPAREN) {
		for {
			ps := p.parseSpecifiers()
			pname := p.expect(token.TK_IDENT).Lexeme
			params = append(params, pname)
			paramTypes = append(paramTypes, ps.typ)
			if p.at(token.TK_COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	p.expect(token.TK_RPAREN)

	fn := &ast.FunctionDecl{
		P:       pos,
		Name:    name,
		Type:    types.NewFunction(spec.typ, paramTypes),
		Params:  params,
		Storage: spec.storage,
	}
	if p.at(token.TK_SEMICOLON) {
		p.advance()
		return fn
	}
	body := p.parseCompoundStmt()
	fn.Body = body.Items
	return fn
}

// parseVariableDeclRest parses the `name [= init] ;` tail shared by
// top-level and block-scope variable declarations.
func (p *Parser) parseVariableDeclRest(pos token.Pos, name string, spec specifiers, topLevel bool) *ast.VariableDecl {
	decl := &ast.VariableDecl{P: pos, Name: name, Type: spec.typ, Storage: spec.storage}
	if p.at(token.TK_ASSIGN) {
		p.advance()
		decl.Init = p.parseExpr()
	}
	p.expect(token.TK_SEMICOLON)
	return decl
}

// ---------------------------------------------------------------------------
// Statements

func (p *Parser) startsDecl() bool {
	return p.cur().Kind.IsTypeSpecifier()
}

func (p *Parser) parseBlockItem() ast.BlockItem {
	if p.startsDecl() {
		pos := p.cur().Pos
		spec := p.parseSpecifiers()
		name := p.expect(token.TK_IDENT).Lexeme
		return ast.BlockItem{Decl: p.parseVariableDeclRest(pos, name, spec, false)}
	}
	return ast.BlockItem{Stmt: p.parseStmt()}
}

func (p *Parser) parseCompoundStmt() *ast.CompoundStmt {
	pos := p.expect(token.TK_LBRACE).Pos
	cs := &ast.CompoundStmt{P: pos}
	for !p.at(token.TK_RBRACE) && !p.at(token.TK_EOF) {
		cs.Items = append(cs.Items, p.parseBlockItem())
	}
	p.expect(token.TK_RBRACE)
	return cs
}

func (p *Parser) parseStmt() ast.Stmt {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.TK_LBRACE:
		return p.parseCompoundStmt()
	case token.TK_SEMICOLON:
		p.advance()
		return &ast.NullStmt{P: pos}
	case token.KW_RETURN:
		p.advance()
		r := &ast.ReturnStmt{P: pos}
		if !p.at(token.TK_SEMICOLON) {
			r.Value = p.parseExpr()
		}
		p.expect(token.TK_SEMICOLON)
		return r
	case token.KW_IF:
		return p.parseIfStmt()
	case token.KW_WHILE:
		return p.parseWhileStmt()
	case token.KW_DO:
		return p.parseDoWhileStmt()
	case token.KW_FOR:
		return p.parseForStmt()
	case token.KW_BREAK:
		p.advance()
		p.expect(token.TK_SEMICOLON)
		return &ast.BreakStmt{P: pos}
	case token.KW_CONTINUE:
		p.advance()
		p.expect(token.TK_SEMICOLON)
		return &ast.ContinueStmt{P: pos}
	case token.KW_GOTO:
		p.advance()
		name := p.expect(token.TK_IDENT).Lexeme
		p.expect(token.TK_SEMICOLON)
		return &ast.GotoStmt{P: pos, Name: name}
	case token.KW_SWITCH:
		return p.parseSwitchStmt()
	case token.KW_CASE:
		p.advance()
		val := p.parseExpr()
		p.expect(token.TK_COLON)
		return &ast.CaseStmt{P: pos, Value: val, Body: p.parseStmt()}
	case token.KW_DEFAULT:
		p.advance()
		p.expect(token.TK_COLON)
		return &ast.DefaultStmt{P: pos, Body: p.parseStmt()}
	case token.TK_IDENT:
		if p.peek().Kind == token.TK_COLON {
			name := p.advance().Lexeme
			p.advance() // ':'
			return &ast.LabeledStmt{P: pos, Name: name, Body: p.parseStmt()}
		}
	}
	e := p.parseExpr()
	p.expect(token.TK_SEMICOLON)
	return &ast.ExprStmt{P: pos, Expr: e}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.TK_LPAREN)
	cond := p.parseExpr()
	p.expect(token.TK_RPAREN)
	then := p.parseStmt()
	s := &ast.IfStmt{P: pos, Cond: cond, Then: then}
	if p.at(token.KW_ELSE) {
		p.advance()
		s.Else = p.parseStmt()
	}
	return s
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.TK_LPAREN)
	cond := p.parseExpr()
	p.expect(token.TK_RPAREN)
	return &ast.WhileStmt{P: pos, Cond: cond, Body: p.parseStmt()}
}

func (p *Parser) parseDoWhileStmt() ast.Stmt {
	pos := p.advance().Pos
	body := p.parseStmt()
	p.expect(token.KW_WHILE)
	p.expect(token.TK_LPAREN)
	cond := p.parseExpr()
	p.expect(token.TK_RPAREN)
	p.expect(token.TK_SEMICOLON)
	return &ast.DoWhileStmt{P: pos, Body: body, Cond: cond}
}

func (p *Parser) parseForStmt() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.TK_LPAREN)

	var init ast.ForInit
	switch {
	case p.at(token.TK_SEMICOLON):
		p.advance()
	case p.startsDecl():
		dpos := p.cur().Pos
		spec := p.parseSpecifiers()
		name := p.expect(token.TK_IDENT).Lexeme
		init.Decl = p.parseVariableDeclRest(dpos, name, spec, false)
	default:
		init.Expr = p.parseExpr()
		p.expect(token.TK_SEMICOLON)
	}

	var cond ast.Expr
	if !p.at(token.TK_SEMICOLON) {
		cond = p.parseExpr()
	}
	p.expect(token.TK_SEMICOLON)

	var post ast.Expr
	if !p.at(token.TK_RPAREN) {
		post = p.parseExpr()
	}
	p.expect(token.TK_RPAREN)

	return &ast.ForStmt{P: pos, Init: init, Cond: cond, Post: post, Body: p.parseStmt()}
}

func (p *Parser) parseSwitchStmt() ast.Stmt {
	pos := p.advance().Pos
	p.expect(token.TK_LPAREN)
	e := p.parseExpr()
	p.expect(token.TK_RPAREN)
	return &ast.SwitchStmt{P: pos, Expr: e, Body: p.parseStmt()}
}

// ---------------------------------------------------------------------------
// Expressions: precedence climbing (§4.P). Binding powers, low to high:
// assignment (right-assoc) < conditional < logical-or < logical-and <
// bitor < bitxor < bitand < equality < relational < shift < additive <
// multiplicative, with unary/postfix/primary above all of them.

func precedence(k token.Kind) int {
	switch k {
	case token.TK_ASSIGN, token.TK_PLUS_AGN, token.TK_MINUS_AGN, token.TK_TIMES_AGN,
		token.TK_DIV_AGN, token.TK_MOD_AGN, token.TK_BITAND_AGN, token.TK_BITOR_AGN,
		token.TK_BITXOR_AGN, token.TK_LSHIFT_AGN, token.TK_RSHIFT_AGN:
		return 1
	case token.TK_QUESTION:
		return 2
	case token.TK_LOGOR:
		return 3
	case token.TK_LOGAND:
		return 4
	case token.TK_BITOR:
		return 5
	case token.TK_BITXOR:
		return 6
	case token.TK_BITAND:
		return 7
	case token.TK_EQ, token.TK_NE:
		return 8
	case token.TK_LT, token.TK_LE, token.TK_GT, token.TK_GE:
		return 9
	case token.TK_LSHIFT, token.TK_RSHIFT:
		return 10
	case token.TK_PLUS, token.TK_MINUS:
		return 11
	case token.TK_TIMES, token.TK_DIV, token.TK_MOD:
		return 12
	default:
		return -1
	}
}

func isAssignOp(k token.Kind) (ast.AssignOp, bool) {
	switch k {
	case token.TK_ASSIGN:
		return ast.AssignPlain, true
	case token.TK_PLUS_AGN:
		return ast.AssignAdd, true
	case token.TK_MINUS_AGN:
		return ast.AssignSub, true
	case token.TK_TIMES_AGN:
		return ast.AssignMul, true
	case token.TK_DIV_AGN:
		return ast.AssignDiv, true
	case token.TK_MOD_AGN:
		return ast.AssignRem, true
	case token.TK_BITAND_AGN:
		return ast.AssignBitAnd, true
	case token.TK_BITOR_AGN:
		return ast.AssignBitOr, true
	case token.TK_BITXOR_AGN:
		return ast.AssignBitXor, true
	case token.TK_LSHIFT_AGN:
		return ast.AssignShl, true
	case token.TK_RSHIFT_AGN:
		return ast.AssignShr, true
	default:
		return 0, false
	}
}

func binaryKind(k token.Kind) ast.BinaryKind {
	switch k {
	case token.TK_PLUS:
		return ast.BinAdd
	case token.TK_MINUS:
		return ast.BinSub
	case token.TK_TIMES:
		return ast.BinMul
	case token.TK_DIV:
		return ast.BinDiv
	case token.TK_MOD:
		return ast.BinRem
	case token.TK_LSHIFT:
		return ast.BinShl
	case token.TK_RSHIFT:
		return ast.BinShr
	case token.TK_BITAND:
		return ast.BinBitAnd
	case token.TK_BITOR:
		return ast.BinBitOr
	case token.TK_BITXOR:
		return ast.BinBitXor
	case token.TK_LT:
		return ast.BinLess
	case token.TK_LE:
		return ast.BinLessEq
	case token.TK_GT:
		return ast.BinGreater
	case token.TK_GE:
		return ast.BinGreaterEq
	case token.TK_EQ:
		return ast.BinEqual
	case token.TK_NE:
		return ast.BinNotEqual
	case token.TK_LOGAND:
		return ast.BinLogicalAnd
	case token.TK_LOGOR:
		return ast.BinLogicalOr
	}
	panic("parser: not a binary operator")
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseBinary(1)
}

// parseBinary implements precedence climbing. Assignment and the
// conditional operator are right-associative and handled specially;
// everything else is left-associative.
func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnaryOrPostfix()

	for {
		k := p.cur().Kind
		prec := precedence(k)
		if prec < minPrec {
			return left
		}

		switch {
		case k == token.TK_ASSIGN || isAssignOpKind(k):
			pos := p.advance().Pos
			op, _ := isAssignOp(k)
			right := p.parseBinary(prec) // right-associative
			left = &ast.AssignmentExpr{ExprBase: ast.NewExprBase(pos), Op: op, LHS: left, RHS: right}
		case k == token.TK_QUESTION:
			pos := p.advance().Pos
			then := p.parseExpr()
			p.expect(token.TK_COLON)
			els := p.parseBinary(prec)
			left = &ast.ConditionalExpr{ExprBase: ast.NewExprBase(pos), Cond: left, Then: then, Else: els}
		default:
			pos := p.advance().Pos
			right := p.parseBinary(prec + 1)
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(pos), Kind: binaryKind(k), Left: left, Right: right}
		}
	}
}

func isAssignOpKind(k token.Kind) bool {
	_, ok := isAssignOp(k)
	return ok
}

func (p *Parser) parseUnaryOrPostfix() ast.Expr {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.TK_MINUS:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryNegate, Expr: p.parseUnaryOrPostfix()}
	case token.TK_BITNOT:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryComplement, Expr: p.parseUnaryOrPostfix()}
	case token.TK_LOGNOT:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryLogicalNot, Expr: p.parseUnaryOrPostfix()}
	case token.TK_INCR:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryPrefixIncr, Expr: p.parseUnaryOrPostfix()}
	case token.TK_DECR:
		p.advance()
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryPrefixDecr, Expr: p.parseUnaryOrPostfix()}
	case token.TK_PLUS:
		p.advance()
		return p.parseUnaryOrPostfix()
	case token.TK_LPAREN:
		if p.peek().Kind.IsTypeSpecifier() {
			p.advance()
			spec := p.parseSpecifiers()
			p.expect(token.TK_RPAREN)
			cast := &ast.CastExpr{ExprBase: ast.NewExprBase(pos), Inner: p.parseUnaryOrPostfix()}
			cast.SetType(spec.typ)
			return cast
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		pos := p.cur().Pos
		switch p.cur().Kind {
		case token.TK_INCR:
			p.advance()
			e = &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryPostfixIncr, Expr: e}
		case token.TK_DECR:
			p.advance()
			e = &ast.UnaryExpr{ExprBase: ast.NewExprBase(pos), Kind: ast.UnaryPostfixDecr, Expr: e}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.TK_LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.TK_RPAREN)
		return e
	case token.TK_INT_CONST:
		p.advance()
		c := &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos), IntValue: t.IntValue}
		c.SetType(types.TInt)
		return c
	case token.TK_UINT_CONST:
		p.advance()
		c := &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos), IntValue: t.IntValue}
		c.SetType(types.TUInt)
		return c
	case token.TK_LONG_CONST:
		p.advance()
		c := &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos), IntValue: t.IntValue}
		c.SetType(types.TLong)
		return c
	case token.TK_ULONG_CONST:
		p.advance()
		c := &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos), IntValue: t.IntValue}
		c.SetType(types.TULong)
		return c
	case token.TK_DOUBLE_CONST:
		p.advance()
		c := &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos), DoubleValue: t.DoubleValue}
		c.SetType(types.TDouble)
		return c
	case token.TK_CHAR_CONST, token.TK_STRING_CONST:
		// Lexically valid but unsupported: A5 rejects any expression
		// whose type would need to be char/string/pointer, so these
		// are threaded through as untyped placeholders for the
		// diagnostic to anchor on.
		p.advance()
		return &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos)}
	case token.TK_IDENT:
		p.advance()
		if p.at(token.TK_LPAREN) {
			return p.parseCallArgs(t.Pos, t.Lexeme)
		}
		return &ast.VariableExpr{ExprBase: ast.NewExprBase(t.Pos), Name: t.Lexeme}
	}
	p.errs.Add(diag.Syntactic, t.Pos, "expected an expression, found %s", t.Kind)
	p.advance()
	return &ast.ConstantExpr{ExprBase: ast.NewExprBase(t.Pos)}
}

func (p *Parser) parseCallArgs(pos token.Pos, callee string) ast.Expr {
	p.expect(token.TK_LPAREN)
	call := &ast.FunctionCallExpr{ExprBase: ast.NewExprBase(pos), Callee: callee}
	if !p.at(token.TK_RPAREN) {
		for {
			call.Args = append(call.Args, p.parseExpr())
			if p.at(token.TK_COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	p.expect(token.TK_RPAREN)
	return call
}
