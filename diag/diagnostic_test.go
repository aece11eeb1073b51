package diag_test

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptcore/bsc/diag"
	"github.com/scriptcore/bsc/token"
)

func rng(line int) token.Range {
	p := token.Position{Line: line, Column: 1}
	return token.Range{Start: p, End: p}
}

func TestSortOrdersByFileThenPositionThenCode(t *testing.T) {
	ds := []diag.Diagnostic{
		{File: "b.bs", Range: rng(1), Code: diag.CodeUnexpectedToken},
		{File: "a.bs", Range: rng(5), Code: diag.CodeCallToUnknownFunction},
		{File: "a.bs", Range: rng(1), Code: diag.CodeMismatchArgumentCount},
		{File: "a.bs", Range: rng(1), Code: diag.CodeUnterminatedString},
	}
	diag.Sort(ds)

	want := []string{"a.bs", "a.bs", "a.bs", "b.bs"}
	got := make([]string, len(ds))
	for i, d := range ds {
		got[i] = d.File
	}
	if !assert.Equal(t, want, got) {
		t.Logf("sorted diagnostics:\n%# v", pretty.Formatter(ds))
	}
	require.Equal(t, diag.CodeUnterminatedString, ds[0].Code, "lowest code at the same position sorts first")
	require.Equal(t, diag.CodeMismatchArgumentCount, ds[1].Code)
}

func TestFilterDropsIgnoredCodesAndSuppressedRanges(t *testing.T) {
	ds := []diag.Diagnostic{
		{File: "a.bs", Range: rng(1), Code: diag.CodeUnterminatedString},
		{File: "a.bs", Range: rng(2), Code: diag.CodeUnexpectedToken},
		{File: "a.bs", Range: rng(3), Code: diag.CodeMismatchArgumentCount},
	}
	suppressed := func(file string, r token.Range, code diag.Code) bool {
		return r.Start.Line == 3
	}
	out := diag.Filter(ds, []diag.Code{diag.CodeUnexpectedToken}, nil, suppressed)
	require.Len(t, out, 1)
	assert.Equal(t, diag.CodeUnterminatedString, out[0].Code)
}

func TestIsKnownCodeRejectsUnregisteredCode(t *testing.T) {
	assert.True(t, diag.IsKnownCode(diag.CodeInternalParserFailure))
	assert.False(t, diag.IsKnownCode(diag.Code(424242)))
}
