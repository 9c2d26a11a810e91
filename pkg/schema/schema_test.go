package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErdError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := NewError(ErrCodeExtractionCorrupt, "not a database").WithCause(cause)

	assert.Equal(t, "[EXTRACTION_CORRUPT] not a database", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_Wrapped(t *testing.T) {
	inner := NewErrorf(ErrCodeSynthesisMalformed, "got %q", "hello")
	wrapped := fmt.Errorf("pipeline: %w", inner)

	assert.Equal(t, ErrCodeSynthesisMalformed, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeSynthesisMalformed))
	assert.False(t, IsCode(wrapped, ErrCodeCancelled))
	assert.False(t, IsCode(nil, ErrCodeCancelled))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewError(ErrCodeSynthesisUnavailable, "503")))
	assert.False(t, Retryable(NewError(ErrCodeSynthesisMalformed, "prose")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"known code", NewError(ErrCodeNothingToExport, "x"), "There is no diagram to export yet."},
		{"syntax keeps detail", NewError(ErrCodeInvalidSyntax, "line 3: expected '}'"),
			"Syntax error: the diagram code is invalid. line 3: expected '}'"},
		{"unknown code", NewError("OTHER", "custom"), "custom"},
		{"plain error", errors.New("boom"), "Something went wrong: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestDiagnostics_ToError(t *testing.T) {
	d := &Diagnostics{}
	d.AddWarning(2, "entity %s has no attributes", "A")
	assert.True(t, d.Valid())
	assert.NoError(t, d.ToError())

	d.AddError(4, "unterminated entity block")
	d.AddError(9, "missing label")
	err := d.ToError()
	require.Error(t, err)

	var erdErr *ErdError
	require.ErrorAs(t, err, &erdErr)
	assert.Equal(t, ErrCodeInvalidSyntax, erdErr.Code)
	assert.Equal(t, "line 4: unterminated entity block (and 1 more)", erdErr.Message)
	assert.Equal(t, 2, erdErr.Details["error_count"])
	assert.Equal(t, 1, erdErr.Details["warning_count"])
}

func TestSourceInput_Validate(t *testing.T) {
	assert.NoError(t, NewFileSource("shop.db", []byte{1}).Validate())
	assert.NoError(t, NewTextSource("a library").Validate())

	assert.True(t, IsCode(NewFileSource("shop.db", nil).Validate(), ErrCodeValidation))
	assert.True(t, IsCode(NewTextSource("  \n").Validate(), ErrCodeValidation))
	assert.True(t, IsCode(SourceInput{Kind: "url"}.Validate(), ErrCodeValidation))
}

func TestSourceInput_Label(t *testing.T) {
	tests := []struct {
		in   SourceInput
		want string
	}{
		{NewFileSource("shop.db", nil), "shop.db"},
		{NewFileSource("/tmp/my data.sqlite3", nil), "my-data.sqlite3"},
		{NewFileSource(`C:\x\inventory.v2.db`, nil), "inventory.v2.db"},
		{NewFileSource("", nil), "db"},
		{NewFileSource("ünï", nil), "n"},
		{NewTextSource("library"), "db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Label(), tt.in.Name)
	}
}

func TestPhase_Busy(t *testing.T) {
	assert.True(t, PhaseExtracting.Busy())
	assert.True(t, PhaseSynthesizing.Busy())
	assert.True(t, PhaseRendering.Busy())
	assert.False(t, PhaseIdle.Busy())
	assert.False(t, PhaseReady.Busy())
	assert.False(t, PhaseFailed.Busy())
}

func TestExportFormat(t *testing.T) {
	f, err := ParseExportFormat("png")
	require.NoError(t, err)
	assert.Equal(t, FormatRasterLossless, f)
	assert.Equal(t, "erd-shop.png", f.FileName("shop"))
	assert.Equal(t, "image/png", f.MediaType())
	assert.True(t, f.Raster())

	f, err = ParseExportFormat("vector")
	require.NoError(t, err)
	assert.Equal(t, "erd-db.svg", f.FileName(""))
	assert.False(t, f.Raster())

	f, err = ParseExportFormat("jpeg")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", f.Extension())
	assert.Equal(t, "JPG", f.Label())

	_, err = ParseExportFormat("gif")
	assert.True(t, IsCode(err, ErrCodeValidation))
}
