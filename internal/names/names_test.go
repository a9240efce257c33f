package names

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	hist := []byte("CNPJ_FUNDO;DENOM_SOCIAL;DT_INI_DENOM_SOCIAL;DT_FIM_DENOM_SOCIAL\n" +
		"AAA;OLD NAME FI;2001-01-01;2010-01-01\n" +
		"AAA;FUNDO A FI;2010-01-01;\n" +
		"BBB;FUNDO B A")
	hist = append(hist, 0xc7, 0xd5) // "ÇÕ" in ISO-8859-1
	hist = append(hist, []byte("ES FI;2015-01-01;\n")...)

	extract := []byte("CNPJ_FUNDO_CLASSE;DENOM_SOCIAL;CLASSE_ANBIMA\n" +
		"AAA;SHOULD NOT WIN;Renda Fixa\n" +
		"CCC;CLASSE C;Multimercado\n")

	m, err := LoadRegistry(bytes.NewReader(hist), bytes.NewReader(extract))
	require.NoError(t, err)

	assert.Equal(t, Map{
		"AAA": "FUNDO A FI",
		"BBB": "FUNDO B AÇÕES FI",
		"CCC": "CLASSE C",
	}, m)
}

func TestLoadRegistryMissingColumn(t *testing.T) {
	_, err := LoadRegistry(bytes.NewReader([]byte("CNPJ;NOME\nA;B\n")), nil)
	assert.ErrorContains(t, err, "missing column CNPJ_FUNDO")
}

func TestLabel(t *testing.T) {
	m := Map{"AAA": "Fundo A", "EMPTY": ""}

	assert.Equal(t, "Fundo A", Label(m, "AAA"))
	assert.Equal(t, "ZZZ", Label(m, "ZZZ"))
	assert.Equal(t, "EMPTY", Label(m, "EMPTY"))
	assert.Equal(t, "AAA", Label(nil, "AAA"))
}
