package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_DedupCaseFoldTrim(t *testing.T) {
	got := Tokenize("Java, python , PYTHON")
	assert.Equal(t, []string{"java", "python"}, got.Sorted())
}

func TestTokenize_Blank(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		assert.Equal(t, 0, Tokenize(raw).Len(), "raw=%q", raw)
	}
}

func TestTokenize_DropsEmptyPieces(t *testing.T) {
	got := Tokenize(",, go ,,  ,sql,")
	assert.Equal(t, []string{"go", "sql"}, got.Sorted())
}

func TestTokenize_NoDelimiter(t *testing.T) {
	got := Tokenize("  Machine Learning ")
	assert.Equal(t, []string{"machine learning"}, got.Sorted())
}

func TestTokenize_UnicodeNormalization(t *testing.T) {
	// "é" precomposed vs. "e" + combining acute accent.
	got := Tokenize("caf\u00e9, cafe\u0301")
	assert.Equal(t, 1, got.Len())
}

func TestTokens_ZeroValue(t *testing.T) {
	var tok Tokens
	assert.Equal(t, 0, tok.Len())
	assert.False(t, tok.Contains("go"))
	assert.Equal(t, 0, tok.Intersect(Tokenize("go")).Len())
	assert.Equal(t, "", tok.String())
	assert.Equal(t, []string{}, tok.Sorted())
}

func TestTokens_Intersect(t *testing.T) {
	a := Tokenize("python, sql, go")
	b := Tokenize("Go, Rust, SQL")
	assert.Equal(t, []string{"go", "sql"}, a.Intersect(b).Sorted())
}

func TestTokens_String(t *testing.T) {
	assert.Equal(t, "ai,python", Tokenize("Python, AI").String())
}

func TestTokens_JSON(t *testing.T) {
	data, err := json.Marshal(Tokenize("sql, Python"))
	require.NoError(t, err)
	assert.JSONEq(t, `["python","sql"]`, string(data))

	var decoded Tokens
	require.NoError(t, json.Unmarshal([]byte(`[" Go ","go","Kafka"]`), &decoded))
	assert.Equal(t, []string{"go", "kafka"}, decoded.Sorted())
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "computer science", NormalizeToken("  Computer Science "))
}
