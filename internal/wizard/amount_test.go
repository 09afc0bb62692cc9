package wizard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"1000":        "1000",
		"1000,50":     "1000.5",
		"1000.50":     "1000.5",
		"  250  ":     "250",
		"0,01":        "0.01",
		"007":         "7",
		"99999999":    "99999999",
		"99999999,99": "99999999.99",
		"1000.500":    "1000.5",
		"0.10":        "0.1",
	}
	for raw, want := range valid {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseAmount(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got.String())
		})
	}

	invalid := []string{
		"abc", "-5", "0", "0,00", "1 000", "", "1,2,3", "1.", ",5", "1e3", "+5",
		"0.001", "1000,555", "100000000", "123456789",
		strings.Repeat("9", 60) + "." + strings.Repeat("1", 20),
	}
	for _, raw := range invalid {
		t.Run("invalid "+raw, func(t *testing.T) {
			_, err := ParseAmount(raw)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParseAmount_SeparatorsAgree(t *testing.T) {
	comma, err := ParseAmount("1000,50")
	require.NoError(t, err)
	dot, err := ParseAmount("1000.50")
	require.NoError(t, err)
	assert.True(t, comma.Equal(dot))
}

func TestParseAmount_FitsCallbackData(t *testing.T) {
	// самая длинная допустимая сумма должна влезать в кнопку быстрого выбора
	d, err := ParseAmount("99999999,99")
	require.NoError(t, err)
	assert.LessOrEqual(t, len("w:pick:"+d.String()), 64)
}
