// Package diag defines the diagnostic wire shape shared by every stage of
// the pipeline (lexer, parser, validator, transpiler), modeled on
// cue/errors.Error and spec §6's "Diagnostic wire shape".
package diag

import (
	"fmt"
	"sort"

	"github.com/scriptcore/bsc/token"
)

// Severity mirrors spec §6 severity ∈ {error, warning, info, hint}.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	}
	return "unknown"
}

// Code enumerates the stable diagnostic codes referenced in spec §7/§8.
// New codes are appended; existing values must never be renumbered since
// they are part of the wire contract (§6: "Codes are stable integers").
type Code int

const (
	CodeUnterminatedString Code = 1000 + iota
	CodeUnexpectedCharacter
	CodeInvalidNumericLiteral
	CodeInvalidHashConstValue
	CodeConstNameCannotBeReservedWord
	CodeUnexpectedToken
	CodeExpectedIdentifier
	CodeExpectedKeyword
	CodeBsFeatureNotSupportedInBrsFiles
	CodeImportStatementMustBeDeclaredAtTopOfFile
	CodeLibraryStatementMustBeDeclaredAtTopOfFile
	CodeUnknownDiagnosticCode

	CodeCallToUnknownFunction Code = 2000 + iota
	CodeMismatchArgumentCount
	CodeDuplicateFunctionImplementation
	CodeDuplicateClassDeclaration
	CodeClassCouldNotBeFound
	CodeClassConstructorMissingSuperCall
	CodeMissingOverrideKeyword
	CodeOverrideOnNonOverriddenMethod
	CodeDuplicateMemberName
	CodeClassChildMemberDifferentMemberTypeThanAncestor
	CodeNamespacedClassCannotShareNameWithNonNamespacedClass
	CodeDuplicateComponentName
	CodeScriptImportCaseMismatch
	CodeUnnecessaryScriptImport
	CodeReferencedFileDoesNotExist
	CodeFileNotReferenced

	CodeOverridesAncestorFunction Code = 3000 + iota
	CodeLocalVarFunctionShadowsParentFunction
	CodeScopeFunctionShadowedByBuiltInFunction
	CodeLocalVarShadowedByScopedFunction

	CodeInternalParserFailure Code = 9000
)

// RelatedInformation is a secondary (location, message) pointer attached to
// a Diagnostic, per spec §6.
type RelatedInformation struct {
	File    string
	Range   token.Range
	Message string
}

// Diagnostic is the wire shape from spec §6.
type Diagnostic struct {
	Code               Code
	Severity           Severity
	Message            string
	Range              token.Range
	File               string
	RelatedInformation []RelatedInformation
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: %s: %s", d.File, d.Range.Start, d.Severity, d.Message)
}

// Sort orders diagnostics by file, then position, then code, so that
// SPEC_FULL's "deterministic diagnostic ordering" supplement holds:
// re-running validation produces an identical ordered slice (spec §8,
// property 3), not merely an identical set.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Range.Start != b.Range.Start {
			return a.Range.Start.Before(b.Range.Start)
		}
		return a.Code < b.Code
	})
}

// knownCodes is the full set of codes this module ever emits. File-level
// comment flags (spec §4.6) that name a code outside this set are
// themselves diagnosed with CodeUnknownDiagnosticCode.
var knownCodes = map[Code]bool{
	CodeUnterminatedString: true, CodeUnexpectedCharacter: true,
	CodeInvalidNumericLiteral: true, CodeInvalidHashConstValue: true,
	CodeConstNameCannotBeReservedWord: true, CodeUnexpectedToken: true,
	CodeExpectedIdentifier: true, CodeExpectedKeyword: true,
	CodeBsFeatureNotSupportedInBrsFiles: true,
	CodeImportStatementMustBeDeclaredAtTopOfFile:  true,
	CodeLibraryStatementMustBeDeclaredAtTopOfFile: true,
	CodeUnknownDiagnosticCode:                     true,
	CodeCallToUnknownFunction:                     true,
	CodeMismatchArgumentCount:                      true,
	CodeDuplicateFunctionImplementation:            true,
	CodeDuplicateClassDeclaration:                  true,
	CodeClassCouldNotBeFound:                       true,
	CodeClassConstructorMissingSuperCall:           true,
	CodeMissingOverrideKeyword:                     true,
	CodeOverrideOnNonOverriddenMethod:              true,
	CodeDuplicateMemberName:                        true,
	CodeClassChildMemberDifferentMemberTypeThanAncestor:      true,
	CodeNamespacedClassCannotShareNameWithNonNamespacedClass: true,
	CodeDuplicateComponentName:                     true,
	CodeScriptImportCaseMismatch:                   true,
	CodeUnnecessaryScriptImport:                    true,
	CodeReferencedFileDoesNotExist:                 true,
	CodeFileNotReferenced:                          true,
	CodeOverridesAncestorFunction:                  true,
	CodeLocalVarFunctionShadowsParentFunction:      true,
	CodeScopeFunctionShadowedByBuiltInFunction:     true,
	CodeLocalVarShadowedByScopedFunction:           true,
	CodeInternalParserFailure:                      true,
}

// IsKnownCode reports whether c is one of the stable codes this module
// can emit (spec §4.6's commentFlags rule: "numeric codes not in the
// known-code set emit diagnostic unknownDiagnosticCode").
func IsKnownCode(c Code) bool { return knownCodes[c] }

// Filter removes diagnostics whose code appears in ignoreCodes or
// diagnosticFilters, and any whose range is suppressed by a comment flag,
// per spec §7's propagation policy.
func Filter(ds []Diagnostic, ignoreCodes, filters []Code, isSuppressed func(file string, r token.Range, code Code) bool) []Diagnostic {
	ignore := make(map[Code]bool, len(ignoreCodes)+len(filters))
	for _, c := range ignoreCodes {
		ignore[c] = true
	}
	for _, c := range filters {
		ignore[c] = true
	}
	out := ds[:0:0]
	for _, d := range ds {
		if ignore[d.Code] {
			continue
		}
		if isSuppressed != nil && isSuppressed(d.File, d.Range, d.Code) {
			continue
		}
		out = append(out, d)
	}
	return out
}
