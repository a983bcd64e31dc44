package syntax

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenKind
	}{
		{"+ - * / %", []TokenKind{TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenEOF}},
		{"( ) { }", []TokenKind{TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace, TokenEOF}},
		{", . ;", []TokenKind{TokenComma, TokenDot, TokenSemicolon, TokenEOF}},
		{"== != <= >= && ||", []TokenKind{TokenEqualEqual, TokenBangEqual, TokenLessEqual, TokenGreaterEqual, TokenAmpAmp, TokenPipePipe, TokenEOF}},
	}

	for _, tt := range tests {
		lexer := NewLexer(tt.input)
		tokens, err := lexer.Tokenize()
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
			continue
		}

		if len(tokens) != len(tt.expected) {
			t.Errorf("Expected %d tokens, got %d", len(tt.expected), len(tokens))
			continue
		}

		for i, tok := range tokens {
			if tok.Kind != tt.expected[i] {
				t.Errorf("Token %d: expected %v, got %v", i, tt.expected[i], tok.Kind)
			}
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	input := "shader struct in out if else return make_closure global_value"
	expected := []TokenKind{
		TokenShader, TokenStruct, TokenIn, TokenOut, TokenIf, TokenElse,
		TokenReturn, TokenMakeClosure, TokenGlobalValue, TokenEOF,
	}

	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, tok := range tokens {
		if tok.Kind != expected[i] {
			t.Errorf("Token %d: expected %v, got %v", i, expected[i], tok.Kind)
		}
	}
}

func TestLexerTypes(t *testing.T) {
	input := "void int float double bool float3 float4 matrix closure"
	expected := []TokenKind{
		TokenVoid, TokenInt, TokenFloat, TokenDouble, TokenBool,
		TokenFloat3, TokenFloat4, TokenMatrix, TokenClosure, TokenEOF,
	}

	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d", len(expected), len(tokens))
	}

	for i, tok := range tokens {
		if tok.Kind != expected[i] {
			t.Errorf("Token %d: expected %v, got %v", i, expected[i], tok.Kind)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{"42", TokenIntLiteral},
		{"0", TokenIntLiteral},
		{"1.5", TokenFloatLiteral},
		{"1.", TokenFloatLiteral},
		{"2.5e3", TokenFloatLiteral},
		{"1e9", TokenFloatLiteral},
		{"3f", TokenFloatLiteral},
		{"1.5d", TokenDoubleLiteral},
		{"2d", TokenDoubleLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			tokens, err := lexer.Tokenize()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(tokens) != 2 {
				t.Fatalf("Expected 2 tokens, got %d", len(tokens))
			}
			if tokens[0].Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tokens[0].Kind, tt.kind)
			}
		})
	}
}

func TestLexerMemberAccessOnInt(t *testing.T) {
	// "v.x" style access must not swallow the dot into a float literal.
	lexer := NewLexer("color.x")
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []TokenKind{TokenIdent, TokenDot, TokenIdent, TokenEOF}
	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tok := range tokens {
		if tok.Kind != expected[i] {
			t.Errorf("Token %d: expected %v, got %v", i, expected[i], tok.Kind)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := `
// line comment
shader /* block
comment */ main
`
	lexer := NewLexer(input)
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []TokenKind{TokenShader, TokenIdent, TokenEOF}
	if len(tokens) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d", len(expected), len(tokens))
	}
}

func TestLexerLineTracking(t *testing.T) {
	lexer := NewLexer("a\nb")
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tokens[0].Line != 1 {
		t.Errorf("first token line = %d, want 1", tokens[0].Line)
	}
	if tokens[1].Line != 2 {
		t.Errorf("second token line = %d, want 2", tokens[1].Line)
	}
}
