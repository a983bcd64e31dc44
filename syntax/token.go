// Package syntax provides TSL (tiny shading language) parsing.
package syntax

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenError

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenFloatLiteral
	TokenDoubleLiteral

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %
	TokenBang         // !
	TokenEqual        // =
	TokenLess         // <
	TokenGreater      // >
	TokenDot          // .
	TokenComma        // ,
	TokenSemicolon    // ;
	TokenEqualEqual   // ==
	TokenBangEqual    // !=
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenAmpAmp       // &&
	TokenPipePipe     // ||

	// Delimiters
	TokenLeftParen  // (
	TokenRightParen // )
	TokenLeftBrace  // {
	TokenRightBrace // }

	// Keywords
	TokenShader
	TokenStruct
	TokenIn
	TokenOut
	TokenIf
	TokenElse
	TokenReturn
	TokenTrue
	TokenFalse
	TokenMakeClosure
	TokenGlobalValue

	// Type keywords
	TokenVoid
	TokenInt
	TokenFloat
	TokenDouble
	TokenBool
	TokenFloat3
	TokenFloat4
	TokenMatrix
	TokenClosure
)

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "Error"
	case TokenIdent:
		return "Ident"
	case TokenIntLiteral:
		return "IntLiteral"
	case TokenFloatLiteral:
		return "FloatLiteral"
	case TokenDoubleLiteral:
		return "DoubleLiteral"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenBang:
		return "!"
	case TokenEqual:
		return "="
	case TokenLess:
		return "<"
	case TokenGreater:
		return ">"
	case TokenDot:
		return "."
	case TokenComma:
		return ","
	case TokenSemicolon:
		return ";"
	case TokenEqualEqual:
		return "=="
	case TokenBangEqual:
		return "!="
	case TokenLessEqual:
		return "<="
	case TokenGreaterEqual:
		return ">="
	case TokenAmpAmp:
		return "&&"
	case TokenPipePipe:
		return "||"
	case TokenLeftParen:
		return "("
	case TokenRightParen:
		return ")"
	case TokenLeftBrace:
		return "{"
	case TokenRightBrace:
		return "}"
	case TokenShader:
		return "shader"
	case TokenStruct:
		return "struct"
	case TokenIn:
		return "in"
	case TokenOut:
		return "out"
	case TokenIf:
		return "if"
	case TokenElse:
		return "else"
	case TokenReturn:
		return "return"
	case TokenTrue:
		return "true"
	case TokenFalse:
		return "false"
	case TokenMakeClosure:
		return "make_closure"
	case TokenGlobalValue:
		return "global_value"
	case TokenVoid:
		return "void"
	case TokenInt:
		return "int"
	case TokenFloat:
		return "float"
	case TokenDouble:
		return "double"
	case TokenBool:
		return "bool"
	case TokenFloat3:
		return "float3"
	case TokenFloat4:
		return "float4"
	case TokenMatrix:
		return "matrix"
	case TokenClosure:
		return "closure"
	default:
		return "Unknown"
	}
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
}

// Span represents a source code location span.
type Span struct {
	Start Position
	End   Position
}

// Position represents a position in source code.
type Position struct {
	Line   int
	Column int
	Offset int
}

var keywords = map[string]TokenKind{
	"shader":       TokenShader,
	"struct":       TokenStruct,
	"in":           TokenIn,
	"out":          TokenOut,
	"if":           TokenIf,
	"else":         TokenElse,
	"return":       TokenReturn,
	"true":         TokenTrue,
	"false":        TokenFalse,
	"make_closure": TokenMakeClosure,
	"global_value": TokenGlobalValue,
	"void":         TokenVoid,
	"int":          TokenInt,
	"float":        TokenFloat,
	"double":       TokenDouble,
	"bool":         TokenBool,
	"float3":       TokenFloat3,
	"float4":       TokenFloat4,
	"matrix":       TokenMatrix,
	"closure":      TokenClosure,
}
