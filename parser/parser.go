package parser

import (
	"strconv"

	"github.com/arkscript-lang/ark/ast"
	"github.com/arkscript-lang/ark/token"
)

// Parser turns a flat token stream into the AST described by the data
// model: a single top-level List headed by Keyword(Begin). It is
// recursive descent, one production per legal form, grounded on the
// teacher's token-driven state machine
// (_examples/db47h-ngaro/asm/parser.go) and on the real ArkScript parser's
// production set (node(), letMutSet(), condition(), loop(), function(),
// block(), import_(), macro(), macroCondition(), del(), functionCall(),
// list()) read from original_source/.
type Parser struct {
	toks     []token.Token
	pos      int
	filename string
	imports  []ast.Import
}

func New(toks []token.Token, filename string) *Parser {
	return &Parser{toks: toks, filename: filename}
}

// Parse runs a Lexer's token stream through the full grammar and returns
// the top-level AST plus every import encountered, in source order.
func Parse(toks []token.Token, filename string) (ast.Node, []ast.Import, error) {
	return New(toks, filename).Parse()
}

func (p *Parser) Parse() (ast.Node, []ast.Import, error) {
	pos := p.here()
	root := ast.NewList(ast.List, pos, ast.NewKeyword(token.Begin, pos))
	children := root.Children()

	for p.peek().Kind != token.EOF {
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, nil, err
		}
		children = append(children, form)
	}
	root.SetChildren(children)
	return root, p.imports, nil
}

func (p *Parser) here() token.Position {
	return p.peek().Pos
}

func (p *Parser) peek() token.Token {
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) token.Token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos+off]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isGrouping(text string) bool {
	t := p.peek()
	return t.Kind == token.Grouping && t.Text == text
}

func (p *Parser) expectGrouping(text string, context string) error {
	if !p.isGrouping(text) {
		return &ParseError{Pos: p.here(), Message: context + ": expected '" + text + "'"}
	}
	p.advance()
	return nil
}

// parseForm parses exactly one top-level-or-nested form and attaches the
// nearest comments around it: a CommentBefore found on the token that
// opens the form, and a CommentAfter left trailing on the last token the
// form consumed. This is the single choke point every production in this
// file goes through (directly or via parseIdentOrField/parseParen, which
// parseForm itself dispatches to), so comment attachment lives here once
// rather than being repeated at every call site.
func (p *Parser) parseForm() (ast.Node, error) {
	before := p.peek().CommentBefore
	startPos := p.pos
	node, err := p.parseFormKind()
	if err != nil {
		return ast.Node{}, err
	}
	node.CommentBefore = before
	if p.pos > startPos {
		node.CommentAfter = p.toks[p.pos-1].CommentAfter
	}
	return node, nil
}

// parseFormKind is the original grammar dispatch, wrapped by parseForm
// above to attach comments uniformly.
func (p *Parser) parseFormKind() (ast.Node, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.EOF:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "unexpected end of input, expected a node"}
	case token.Grouping:
		switch tok.Text {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseBracketList()
		case "{":
			return p.parseBraceBegin()
		default:
			return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "unexpected '" + tok.Text + "'"}
		}
	case token.Shorthand:
		switch tok.Text {
		case "'":
			return p.parseQuote()
		case "!":
			return p.parseMacroCallShorthand()
		}
	case token.Identifier:
		return p.parseIdentOrField()
	case token.Number:
		p.advance()
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "malformed number literal: " + tok.Text}
		}
		return ast.NewNumber(n, tok.Pos), nil
	case token.String:
		p.advance()
		return ast.NewString(tok.Text, tok.Pos), nil
	case token.Spread:
		p.advance()
		return ast.NewSpread(tok.Text, tok.Pos), nil
	case token.Capture:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "a capture is only legal inside a function's argument list"}
	case token.Operator:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "invalid syntax, expected node: free-floating operator '" + tok.Text + "'"}
	case token.Keyword:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "invalid syntax, expected node: keyword '" + tok.Text + "' outside head position"}
	case token.GetField:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "dangling field access '." + tok.Text + "'"}
	case token.Mismatch:
		return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "invalid character " + strconv.Quote(tok.Text)}
	}
	return ast.Node{}, &SyntaxError{Pos: tok.Pos, Message: "invalid syntax, expected node"}
}

// parseIdentOrField consumes a bare Identifier, greedily folding any
// immediately following GetField tokens into a Field node (`a.b.c`).
func (p *Parser) parseIdentOrField() (ast.Node, error) {
	tok := p.advance()
	sym := ast.NewSymbol(tok.Text, tok.Pos)
	if p.peek().Kind != token.GetField {
		return sym, nil
	}
	fields := []ast.Node{sym}
	for p.peek().Kind == token.GetField {
		ft := p.advance()
		fields = append(fields, ast.NewSymbol(ft.Text, ft.Pos))
	}
	return ast.NewList(ast.Field, tok.Pos, fields...), nil
}

// parseQuote parses the `'e` shorthand into `(quote e)`.
func (p *Parser) parseQuote() (ast.Node, error) {
	pos := p.advance().Pos // consume "'"
	inner, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewSymbol("quote", pos), inner), nil
}

// parseMacroCallShorthand parses `!{name arg...}`, sugar for an ordinary
// call `(name arg...)`: whether `name` turns out to name a registered
// macro or a runtime function is a question for the macro expander and
// name resolver, not the parser, so this produces a plain List exactly
// like a parenthesized call.
func (p *Parser) parseMacroCallShorthand() (ast.Node, error) {
	pos := p.advance().Pos // consume "!"
	if err := p.expectGrouping("{", "macro call"); err != nil {
		return ast.Node{}, err
	}
	var children []ast.Node
	for !p.isGrouping("}") {
		if p.peek().Kind == token.EOF {
			return ast.Node{}, &ParseError{Pos: pos, Message: "unterminated macro call, expected '}'"}
		}
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, form)
	}
	p.advance() // "}"
	if len(children) == 0 {
		return ast.Node{}, &ParseError{Pos: pos, Message: "macro call needs at least a name"}
	}
	return ast.NewList(ast.List, pos, children...), nil
}

// parseBracketList parses `[a b c]` into `(list a b c)`.
func (p *Parser) parseBracketList() (ast.Node, error) {
	pos := p.advance().Pos // "["
	children := []ast.Node{ast.NewSymbol("list", pos)}
	for !p.isGrouping("]") {
		if p.peek().Kind == token.EOF {
			return ast.Node{}, &ParseError{Pos: pos, Message: "unterminated list, expected ']'"}
		}
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, form)
	}
	p.advance() // "]"
	return ast.NewList(ast.List, pos, children...), nil
}

// parseBraceBegin parses `{a b c}` into `(begin a b c)`.
func (p *Parser) parseBraceBegin() (ast.Node, error) {
	pos := p.advance().Pos // "{"
	children := []ast.Node{ast.NewKeyword(token.Begin, pos)}
	for !p.isGrouping("}") {
		if p.peek().Kind == token.EOF {
			return ast.Node{}, &ParseError{Pos: pos, Message: "unterminated begin block, expected '}'"}
		}
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, form)
	}
	p.advance() // "}"
	return ast.NewList(ast.List, pos, children...), nil
}

// parseParen dispatches a `(...)` form to the production selected by its
// first token: a keyword, one of the two dollar-sigil macro forms, or
// (falling through) a generic function call.
func (p *Parser) parseParen() (ast.Node, error) {
	pos := p.advance().Pos // "("
	head := p.peek()

	if head.Kind == token.Identifier {
		switch head.Text {
		case "$":
			return p.parseMacroDef(pos)
		case "$if":
			return p.parseMacroIf(pos)
		}
	}

	if head.Kind == token.Keyword {
		switch head.Text {
		case "let", "mut", "set":
			return p.parseLetMutSet(pos)
		case "if":
			return p.parseIf(pos)
		case "while":
			return p.parseWhile(pos)
		case "fun":
			return p.parseFun(pos)
		case "begin":
			p.advance()
			return p.parseBeginTail(pos)
		case "import":
			return p.parseImport(pos)
		case "del":
			return p.parseDel(pos)
		}
	}

	return p.parseCall(pos)
}

func (p *Parser) parseLetMutSet(pos token.Position) (ast.Node, error) {
	kwTok := p.advance()
	var kw token.KeywordID
	switch kwTok.Text {
	case "let":
		kw = token.Let
	case "mut":
		kw = token.Mut
	default:
		kw = token.Set
	}

	target, err := p.parseIdentOrField()
	if err != nil {
		return ast.Node{}, err
	}
	if target.Kind == ast.Field {
		if kw == token.Set {
			return ast.Node{}, &ParseError{Pos: pos, Message: "set forbids field access on the left"}
		}
	} else if target.Kind != ast.Symbol {
		return ast.Node{}, &ParseError{Pos: pos, Message: kwTok.Text + " needs a symbol"}
	}

	value, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	if err := p.expectGrouping(")", kwTok.Text); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewKeyword(kw, pos), target, value), nil
}

func (p *Parser) parseDel(pos token.Position) (ast.Node, error) {
	p.advance() // "del"
	tok := p.peek()
	if tok.Kind != token.Identifier {
		return ast.Node{}, &ParseError{Pos: pos, Message: "del needs a symbol"}
	}
	p.advance()
	if err := p.expectGrouping(")", "del"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewKeyword(token.Del, pos), ast.NewSymbol(tok.Text, tok.Pos)), nil
}

func (p *Parser) parseIf(pos token.Position) (ast.Node, error) {
	p.advance() // "if"
	cond, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	then, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	var elseNode ast.Node
	if p.isGrouping(")") {
		elseNode = ast.NewUnused(p.here())
	} else {
		elseNode, err = p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
	}
	if err := p.expectGrouping(")", "if"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewKeyword(token.If, pos), cond, then, elseNode), nil
}

func (p *Parser) parseWhile(pos token.Position) (ast.Node, error) {
	p.advance() // "while"
	cond, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	body, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	if err := p.expectGrouping(")", "while"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewKeyword(token.While, pos), cond, body), nil
}

func (p *Parser) parseFun(pos token.Position) (ast.Node, error) {
	p.advance() // "fun"
	if err := p.expectGrouping("(", "fun"); err != nil {
		return ast.Node{}, err
	}
	args, err := p.parseArgsList(false)
	if err != nil {
		return ast.Node{}, err
	}
	body, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	if err := p.expectGrouping(")", "fun"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.List, pos, ast.NewKeyword(token.Fun, pos), args, body), nil
}

// parseArgsList parses the parameter list shared by `fun` (Capture
// parameters, using '&') and macro definitions (Spread parameters, using
// '...'); only one of the two trailing kinds is legal per call, selected
// by forMacro. Either kind is only legal as the very last parameter.
func (p *Parser) parseArgsList(forMacro bool) (ast.Node, error) {
	pos := p.here()
	var children []ast.Node
	seen := map[string]bool{}
	trailing := false

	for !p.isGrouping(")") {
		tok := p.peek()
		if trailing {
			return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "captured/spread variables should be at the end of the argument list"}
		}
		switch {
		case !forMacro && tok.Kind == token.Capture:
			trailing = true
			if seen[tok.Text] {
				return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "argument names must be unique, can not reuse `" + tok.Text + "'"}
			}
			seen[tok.Text] = true
			children = append(children, ast.NewCapture(tok.Text, tok.Pos))
			p.advance()
		case forMacro && tok.Kind == token.Spread:
			trailing = true
			if seen[tok.Text] {
				return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "argument names must be unique, can not reuse `" + tok.Text + "'"}
			}
			seen[tok.Text] = true
			children = append(children, ast.NewSpread(tok.Text, tok.Pos))
			p.advance()
		case tok.Kind == token.Identifier:
			if seen[tok.Text] {
				return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "argument names must be unique, can not reuse `" + tok.Text + "'"}
			}
			seen[tok.Text] = true
			children = append(children, ast.NewSymbol(tok.Text, tok.Pos))
			p.advance()
		default:
			return ast.Node{}, &ParseError{Pos: tok.Pos, Message: "expected a parameter name"}
		}
	}
	p.advance() // ")"
	return ast.NewList(ast.List, pos, children...), nil
}

func (p *Parser) parseBeginTail(pos token.Position) (ast.Node, error) {
	children := []ast.Node{ast.NewKeyword(token.Begin, pos)}
	for !p.isGrouping(")") {
		if p.peek().Kind == token.EOF {
			return ast.Node{}, &ParseError{Pos: pos, Message: "unterminated begin, expected ')'"}
		}
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, form)
	}
	p.advance() // ")"
	return ast.NewList(ast.List, pos, children...), nil
}

// parseImport parses `(import a.b.c)`, `(import a.b.c.*)` and
// `(import a.b.c sym1 sym2)`. The package path is an Identifier followed
// by GetField segments; a trailing GetField segment of exactly "*"
// requests a glob import. Selective symbols follow as bare Identifiers,
// unambiguous at the token level because the dotted path already
// consumed every GetField token: this repo writes selective imports
// without a leading sigil (`sym1 sym2`), not ArkScript's `:sym1 :sym2`,
// because this lexer already folds a leading ':' into identifier
// characters for qualified names like `math:pi` (see token/lexer.go).
func (p *Parser) parseImport(pos token.Position) (ast.Node, error) {
	p.advance() // "import"

	head := p.peek()
	if head.Kind != token.Identifier {
		return ast.Node{}, &ParseError{Pos: pos, Message: "import expected a package name"}
	}
	p.advance()
	pkg := []string{head.Text}

	glob := false
	for p.peek().Kind == token.GetField {
		seg := p.advance()
		if seg.Text == "*" {
			glob = true
			break
		}
		pkg = append(pkg, seg.Text)
	}
	prefix := pkg[len(pkg)-1]

	var symbols []string
	if !glob {
		for p.peek().Kind == token.Identifier {
			sym := p.advance()
			symbols = append(symbols, sym.Text)
		}
	}

	if err := p.expectGrouping(")", "import"); err != nil {
		return ast.Node{}, err
	}

	p.imports = append(p.imports, ast.Import{
		Package: pkg,
		Prefix:  prefix,
		Symbols: symbols,
		Glob:    glob,
		Line:    pos.Line,
		Col:     pos.Col,
	})

	pkgChildren := make([]ast.Node, len(pkg))
	for i, seg := range pkg {
		pkgChildren[i] = ast.NewSymbol(seg, pos)
	}
	pkgNode := ast.NewList(ast.List, pos, pkgChildren...)

	var tail ast.Node
	if glob {
		tail = ast.NewSymbol("*", pos)
	} else {
		symChildren := make([]ast.Node, len(symbols))
		for i, s := range symbols {
			symChildren[i] = ast.NewSymbol(s, pos)
		}
		tail = ast.NewList(ast.List, pos, symChildren...)
	}

	return ast.NewList(ast.List, pos, ast.NewKeyword(token.Import, pos), pkgNode, tail), nil
}

// parseMacroDef parses `($ name value)` (constant macro) or
// `($ name (args) body)` (function macro).
func (p *Parser) parseMacroDef(pos token.Position) (ast.Node, error) {
	p.advance() // "$"
	nameTok := p.peek()
	if _, reserved := token.Keywords[nameTok.Text]; reserved {
		return ast.Node{}, &ParseError{Pos: nameTok.Pos, Message: "can not use the reserved keyword `" + nameTok.Text + "' as a macro name"}
	}
	if nameTok.Kind != token.Identifier {
		return ast.Node{}, &ParseError{Pos: pos, Message: "macro definition needs a name"}
	}
	p.advance()
	children := []ast.Node{ast.NewSymbol(nameTok.Text, nameTok.Pos)}

	if p.isGrouping("(") {
		p.advance()
		args, err := p.parseArgsList(true)
		if err != nil {
			return ast.Node{}, err
		}
		body, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, args, body)
	} else {
		value, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, value)
	}

	if err := p.expectGrouping(")", "macro definition"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.Macro, pos, children...), nil
}

func (p *Parser) parseMacroIf(pos token.Position) (ast.Node, error) {
	p.advance() // "$if"
	cond, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	then, err := p.parseForm()
	if err != nil {
		return ast.Node{}, err
	}
	var elseNode ast.Node
	if p.isGrouping(")") {
		elseNode = ast.NewUnused(p.here())
	} else {
		elseNode, err = p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
	}
	if err := p.expectGrouping(")", "$if"); err != nil {
		return ast.Node{}, err
	}
	return ast.NewList(ast.Macro, pos, ast.NewKeyword(token.If, pos), cond, then, elseNode), nil
}

// parseCall parses a generic `(head arg...)` form: the head is either an
// Operator (so that e.g. "(+ 1 2)" works, and "(+)" is legal with zero
// args), an Identifier/Field, or a nested node. `$undef` is special-cased
// to produce a Macro node instead of a List, mirroring functionCall() in
// the grammar this is grounded on.
func (p *Parser) parseCall(pos token.Position) (ast.Node, error) {
	headTok := p.peek()
	var head ast.Node
	var err error
	switch {
	case headTok.Kind == token.Operator:
		p.advance()
		head = ast.NewSymbol(headTok.Text, headTok.Pos)
	case headTok.Kind == token.Identifier:
		head, err = p.parseIdentOrField()
	case headTok.Kind == token.Grouping && headTok.Text == "(":
		head, err = p.parseParen()
	default:
		return ast.Node{}, &SyntaxError{Pos: headTok.Pos, Message: "expected a function name or nested expression"}
	}
	if err != nil {
		return ast.Node{}, err
	}

	kind := ast.List
	if head.Kind == ast.Symbol && head.Text() == "$undef" {
		kind = ast.Macro
	}

	children := []ast.Node{head}
	for !p.isGrouping(")") {
		if p.peek().Kind == token.EOF {
			return ast.Node{}, &ParseError{Pos: pos, Message: "unterminated form, expected ')'"}
		}
		form, err := p.parseForm()
		if err != nil {
			return ast.Node{}, err
		}
		children = append(children, form)
	}
	p.advance() // ")"
	return ast.NewList(kind, pos, children...), nil
}
