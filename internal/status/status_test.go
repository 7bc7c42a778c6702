package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	assert.Equal(t, "Success", Message(Success))
	assert.Equal(t, "Description is missing.", Message(DescriptionMissing))
	assert.Equal(t, "", Message(999))
}

func TestErrorFormatting(t *testing.T) {
	err := Err(FamilyUnassigned)
	assert.Equal(t, "status 301: Tool could not assign a generic tool family (i.e. DRILL, EM).", err.Error())

	err = Errf(ToolTypeNotFound, "parsed description: %q", "WIDGET")
	assert.Contains(t, err.Error(), "status 104:")
	assert.Contains(t, err.Error(), `"WIDGET"`)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Success, CodeOf(nil))
	assert.Equal(t, DescriptionMissing, CodeOf(Err(DescriptionMissing)))
	// Non-status errors fold into the generic calculation error.
	assert.Equal(t, CalcError, CodeOf(errors.New("boom")))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Success", MessageOf(nil))
	assert.Equal(t, "Description is missing.", MessageOf(Err(DescriptionMissing)))
	assert.Equal(t, "Conversion error. kwarg FOO", MessageOf(Errf(ConversionError, "kwarg FOO")))
	assert.Equal(t, "boom", MessageOf(errors.New("boom")))
}
