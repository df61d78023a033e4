package v4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

const processListHTML = `
<html><body>
<table id="tblDocumentos"><tbody>
<tr><th>Header</th></tr>
<tr>
  <td>1</td>
  <td align="center"><a href="controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=ABC&outra=1">12345.001234/2024-56</a></td>
</tr>
<tr>
  <td>2</td>
  <td align="center"><a href="controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=DEF">12345.001234/2024-56</a></td>
</tr>
<tr>
  <td>3</td>
  <td align="center"><a href="controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=GHI">99999.000001/2023-11</a></td>
</tr>
<tr>
  <td>4</td>
  <td align="center"><a href="controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=JKL">not-a-process</a></td>
</tr>
<tr>
  <td>5</td>
  <td align="center"><a href="controlador.php?acao=outra">12345.999999/2024-01</a></td>
</tr>
</tbody></table>
</body></html>`

func TestParseProcessList(t *testing.T) {
	base := NewBase("4.2.0")

	refs, err := base.parseProcessList(processListHTML)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, "12345.001234/2024-56", refs[0].ProcessNumber)
	assert.Equal(t, "ABC", refs[0].LinkID)
	assert.Equal(t, "12345.001234/2024-56", refs[1].ProcessNumber)
	assert.Equal(t, "DEF", refs[1].LinkID)
	assert.Equal(t, "99999.000001/2023-11", refs[2].ProcessNumber)
	assert.Equal(t, "GHI", refs[2].LinkID)
}

const documentsHTML = `
<html><body>
<table id="tblDocumentos">
<tr class="infraTrClara">
  <td>1</td>
  <td><a href="#">10000001</a></td>
  <td>Order</td>
  <td>05/08/2024</td>
  <td>Dr. Silva</td>
</tr>
<tr class="infraTrClara">
  <td>2</td>
  <td><a href="#" onclick="alert('Documento restrito');">10000002</a></td>
  <td>Sealed</td>
  <td>06/08/2024</td>
  <td></td>
</tr>
<tr class="infraTrClara">
  <td>3</td>
  <td><a href="#">10000003</a></td>
  <td>Petition</td>
  <td>07/08/2024</td>
  <td>Dra. Souza</td>
</tr>
<tr class="infraTrClara">
  <td>4</td>
  <td><a href="#">badnum</a></td>
  <td>Noise</td>
  <td>07/08/2024</td>
  <td></td>
</tr>
</table>
</body></html>`

func TestParseDocuments(t *testing.T) {
	base := NewBase("4.2.0")

	docs, err := base.parseDocuments(documentsHTML)
	require.NoError(t, err)
	require.Len(t, docs, 2, "restricted and malformed rows are skipped")

	assert.Equal(t, "10000001", docs[0].Number)
	assert.Equal(t, "Order", docs[0].Type)
	assert.Equal(t, "05/08/2024", docs[0].Date)
	assert.Equal(t, "Dr. Silva", docs[0].Signer)

	assert.Equal(t, "10000003", docs[1].Number)
	assert.Equal(t, "Petition", docs[1].Type)
}

func TestNormalizeLinkID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=ABC123", "ABC123"},
		{"x?id_procedimento_externo=A&b=c", "A"},
		{"controlador.php?acao=outra", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLinkID(tt.href))
	}
}

func TestClassifyLocationText(t *testing.T) {
	integral := []string{"Visualização Integral"}
	partial := []string{"Acesso Parcial", "Visualização Parcial"}

	tests := []struct {
		text string
		want models.AccessType
	}{
		{"Processo 12345 - Visualização Integral", models.AccessIntegral},
		{"Processo 12345 - Acesso Parcial", models.AccessPartial},
		{"Processo 12345 - Visualização Parcial", models.AccessPartial},
		{"Página não encontrada", models.AccessError},
		{"", models.AccessError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLocationText(tt.text, integral, partial))
	}
}

func TestParseAuthority(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"GAB - Diretor - Dr. Silva", "Dr. Silva"},
		{"GAB - Dr. Silva", "Dr. Silva"},
		{"Dr. Silva", "Dr. Silva"},
		{"  GAB - Diretor -  Dr. Silva  ", "Dr. Silva"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAuthority(tt.text))
	}
}

func TestURLBuilders(t *testing.T) {
	base := NewBase("4.2.0")

	assert.Equal(t,
		"https://sei.example.gov.br/controlador.php?acao=procedimento_controlar",
		base.ProcessListURL("https://sei.example.gov.br/"))
	assert.Equal(t,
		"https://sei.example.gov.br/controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=ABC",
		base.ProcessURL("https://sei.example.gov.br", "ABC"))
}
