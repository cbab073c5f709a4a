package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormSpace(t *testing.T) {
	assert.Equal(t, "a b c", NormSpace("  a   b \t c  "))
	assert.Equal(t, "a b", NormSpace("a  b"))
	assert.Equal(t, "", NormSpace("   "))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Nguyen Van An", TitleCase("nguyen VAN an"))
	assert.Equal(t, "Lê Thị Hồng", TitleCase("lê thị hồng"))
	assert.Equal(t, "O Brien", TitleCase("  o   BRIEN "))
	assert.Equal(t, "", TitleCase(""))
}

func TestNormalizeStudentCode(t *testing.T) {
	got, err := NormalizeStudentCode(" 2024-000.001 ")
	require.NoError(t, err)
	assert.Equal(t, "2024000001", got)

	_, err = NormalizeStudentCode("12345")
	assert.Error(t, err)

	_, err = NormalizeStudentCode("20240000012")
	assert.Error(t, err)
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate("01/09/2006")
	require.NoError(t, err)
	assert.Equal(t, "2006-09-01", got)

	got, err = NormalizeDate("2006-09-01")
	require.NoError(t, err)
	assert.Equal(t, "2006-09-01", got)

	_, err = NormalizeDate("1/9/2006")
	assert.Error(t, err)
	_, err = NormalizeDate("september 1")
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePhone("+84 (90) 123-4567"))
	assert.Error(t, validatePhone("123"))
	assert.Error(t, validatePhone("phone#1234567"))

	assert.NoError(t, validateGender("Female"))
	assert.Error(t, validateGender("female"))
	assert.Error(t, validateGender("unknown"))

	assert.NoError(t, validateEmail("an.nguyen@example.edu"))
	assert.Error(t, validateEmail("not-an-email"))
	assert.Error(t, validateEmail("a@b"))
}
