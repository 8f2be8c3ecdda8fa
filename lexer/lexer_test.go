package lexer

import (
	"testing"

	"tpd/token"
)

func scanTypes(t *testing.T, src string) []token.TokenType {
	t.Helper()
	toks, err := New(src).Scan()
	if err != nil {
		t.Fatalf("Scan(%q) raised an error: %v", src, err)
	}
	types := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.TokenType
	}
	return types
}

func assertTypes(t *testing.T, src string, want ...token.TokenType) {
	t.Helper()
	want = append(want, token.EOF)
	got := scanTypes(t, src)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan(%q)[%d] = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestOperators(t *testing.T) {
	assertTypes(t, "==/=*+>-<!=<=>=!",
		token.EQUAL_EQUAL, token.DIV_ASSIGN, token.MULT, token.ADD,
		token.LARGER, token.SUB, token.LESS, token.NOT_EQUAL, token.LESS_EQUAL,
		token.LARGER_EQUAL, token.BANG,
	)
}

func TestCompoundAssignAndIncrementOperators(t *testing.T) {
	assertTypes(t, "+=-=*=/=++--",
		token.ADD_ASSIGN, token.SUB_ASSIGN, token.MULT_ASSIGN, token.DIV_ASSIGN,
		token.PLUS_PLUS, token.MINUS_MINUS,
	)
}

func TestBracketsAndMemberAccess(t *testing.T) {
	assertTypes(t, "(){}[]:,.%",
		token.LPA, token.RPA, token.LCUR, token.RCUR, token.LBRACKET, token.RBRACKET,
		token.COLON, token.COMMA, token.DOT, token.MOD,
	)
}

func TestTurkishKeywordsLexAsKeywords(t *testing.T) {
	assertTypes(t, "eğer döngü döndür fonk yükle büyükHarf",
		token.IF, token.LOOP, token.RETURN, token.FUNC, token.USE, token.IDENTIFIER,
	)
}

func TestEnglishAndTurkishAliasesAgree(t *testing.T) {
	english := scanTypes(t, "if loop return")
	turkish := scanTypes(t, "eğer döngü döndür")
	for i := range english {
		if english[i] != turkish[i] {
			t.Fatalf("alias %d: %v != %v", i, english[i], turkish[i])
		}
	}
}

func TestNumberLiterals(t *testing.T) {
	toks, err := New("42 3.14 .5").Scan()
	if err != nil {
		t.Fatalf("Scan raised an error: %v", err)
	}
	if toks[0].TokenType != token.INT || toks[0].Literal.(int64) != 42 {
		t.Errorf("expected INT 42, got %+v", toks[0])
	}
	if toks[1].TokenType != token.FLOAT || toks[1].Literal.(float64) != 3.14 {
		t.Errorf("expected FLOAT 3.14, got %+v", toks[1])
	}
	if toks[2].TokenType != token.FLOAT || toks[2].Literal.(float64) != 0.5 {
		t.Errorf("expected FLOAT .5, got %+v", toks[2])
	}
}

func TestStringLiteral(t *testing.T) {
	toks, err := New(`"merhaba dünya"`).Scan()
	if err != nil {
		t.Fatalf("Scan raised an error: %v", err)
	}
	if toks[0].TokenType != token.STRING || toks[0].Literal.(string) != "merhaba dünya" {
		t.Errorf("expected STRING literal, got %+v", toks[0])
	}
}

func TestUnclosedStringIsAnError(t *testing.T) {
	_, err := New(`"unterminated`).Scan()
	if err == nil {
		t.Error("expected an error for an unclosed string literal")
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	assertTypes(t, "1 + 1 # this is a comment\n+ 2",
		token.INT, token.ADD, token.INT, token.ADD, token.INT,
	)
}
