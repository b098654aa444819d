package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCOP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
		ok   bool
	}{
		{"DollarSignWithCOP", "el costo es $150.000 COP por trayecto", 150000, true},
		{"CommaSeparators", "$1,500,000 COP", 1500000, true},
		{"PesosColombianosSuffix", "cuesta 80.000 pesos colombianos", 80000, true},
		{"ValorPrefix", "tiene un valor de $45.000", 45000, true},
		{"BareDollarAmount", "se cobra $200.000 adicional", 200000, true},
		{"NoAmount", "sin costo asociado", 0, false},
		{"Empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractCOP(tt.text)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractUSD(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"USDPrefix", "USD $50 por cambio", 50, true},
		{"DolaresSuffix", "un cargo de 75.5 dólares", 75.5, true},
		{"ThousandsComma", "USD 1,200", 1200, true},
		{"NoAmount", "sin cargos en dólares aplicables?", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractUSD(tt.text)
			require.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestExtractPercent(t *testing.T) {
	t.Parallel()

	got, ok := ExtractPercent("reembolso del 80% del valor")
	require.True(t, ok)
	assert.Equal(t, 80, got)

	got, ok = ExtractPercent("devolución de 50 por ciento")
	require.True(t, ok)
	assert.Equal(t, 50, got)

	_, ok = ExtractPercent("reembolso completo")
	assert.False(t, ok)
}

func TestDetectBoolean(t *testing.T) {
	t.Parallel()

	t.Run("Positive", func(t *testing.T) {
		v, confidence := DetectBoolean("se permite el cambio de nombre, está disponible en línea")
		require.NotNil(t, v)
		assert.True(t, *v)
		assert.Greater(t, confidence, 0.0)
	})

	t.Run("Negative", func(t *testing.T) {
		v, _ := DetectBoolean("no se permite la transferencia, el boleto es no reembolsable e intransferible, prohibido cederlo")
		require.NotNil(t, v)
		assert.False(t, *v)
	})

	t.Run("ExtraKeywordsTipPositive", func(t *testing.T) {
		v, _ := DetectBoolean("transferencia a terceros: permitido", "transferencia")
		require.NotNil(t, v)
		assert.True(t, *v)
	})

	t.Run("NoSignal", func(t *testing.T) {
		v, confidence := DetectBoolean("consulte los términos en la oficina")
		assert.Nil(t, v)
		assert.Zero(t, confidence)
	})

	t.Run("ConfidenceCapped", func(t *testing.T) {
		_, confidence := DetectBoolean("permite posible puede autorizado permitido disponible se acepta")
		assert.LessOrEqual(t, confidence, 0.9)
	})
}

func TestExtractPhoneAndEmail(t *testing.T) {
	t.Parallel()

	phone, ok := ExtractPhone("llámenos al +57 601 123 4567 en horario de oficina")
	require.True(t, ok)
	assert.Equal(t, "+57 601 123 4567", phone)

	email, ok := ExtractEmail("escriba a servicio@aerolinea.com.co para más información")
	require.True(t, ok)
	assert.Equal(t, "servicio@aerolinea.com.co", email)

	_, ok = ExtractPhone("sin información de contacto")
	assert.False(t, ok)
}

func TestTimeRestrictions(t *testing.T) {
	t.Parallel()

	got, ok := TimeRestrictions("los cambios se aceptan hasta 24 horas antes del vuelo, o 3 días antes para tarifas básicas")
	require.True(t, ok)
	assert.Contains(t, got, "24")
	assert.Contains(t, got, "3")

	_, ok = TimeRestrictions("sin restricciones de tiempo")
	assert.False(t, ok)
}

func TestSentencesWithKeywords(t *testing.T) {
	t.Parallel()

	text := "Primera oración sin relevancia. El cambio de nombre cuesta $150.000 COP. Tercera oración de contexto. Cuarta sin nada."
	sections := SentencesWithKeywords(text, []string{"cambio de nombre"}, 1)
	require.Len(t, sections, 1)
	assert.Contains(t, sections[0], "$150.000 COP")
	assert.Contains(t, sections[0], "Primera oración")
	assert.Contains(t, sections[0], "Tercera oración")
}

func TestSentenceSplitKeepsAmountsIntact(t *testing.T) {
	t.Parallel()

	sections := SentencesWithKeywords("La transferencia cuesta $150.000 COP.", []string{"transferencia"}, 0)
	require.Len(t, sections, 1)

	cop, ok := ExtractCOP(sections[0])
	require.True(t, ok)
	assert.Equal(t, 150000, cop)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", CleanText("  a \n\t b   c  "))
	assert.Equal(t, "", CleanText("   "))
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// A cut landing inside the two byte "ó" must back up to the previous
	// rune boundary instead of leaving a dangling lead byte.
	text := strings.Repeat("a", 499) + "ón de transferencia"
	got := truncate(text, 500)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 499), got)

	assert.Equal(t, "señ", truncate("señal", 4))
	assert.Equal(t, "se", truncate("señal", 3))
	assert.Equal(t, "corto", truncate("corto", 10))
}
