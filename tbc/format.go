// Package tbc serializes compiled units to the textual .tbc container:
// a guarded script preamble, a signature line, and the recursive dump of
// the unit with its support arrays. Binary payloads travel through a
// substitution base-85 codec chosen so the output never contains
// characters the surrounding script syntax cares about.
package tbc

import "fmt"

const (
	// SignatureHeader starts the signature line that marks a stream as
	// compiled bytecode.
	SignatureHeader = "TclPro ByteCode"

	// FormatVersion is the version of the container layout itself.
	FormatVersion = 3

	// CompilerVersion is written into the signature line after the
	// format version.
	CompilerVersion = "1.9"

	// Extension is the conventional file extension for serialized output.
	Extension = ".tbc"

	// ReaderPackage is the loader package the preamble requires, and
	// ReaderVersion the minimum version it asks for.
	ReaderPackage = "tbcload"
	ReaderVersion = "1.7"

	// EvalCommand evaluates an embedded bytecode stream; ProcCommand
	// recreates a procedure from a serialized body.
	EvalCommand = "bceval"
	ProcCommand = "bcproc"

	// ProcCommandName is the qualified form patched into rewritten
	// procedure definition sites.
	ProcCommandName = ReaderPackage + "::" + ProcCommand
)

// Literal pool type tags.
const (
	IntTag      = 'i'
	DoubleTag   = 'd'
	StringTag   = 's'
	XStringTag  = 'x'
	ByteCodeTag = 'c'
	ProcBodyTag = 'p'
)

// Exception range kind tags.
const (
	LoopRangeTag  = 'L'
	CatchRangeTag = 'C'
)

// Auxiliary data kind tags.
const (
	JumptableTag  = 'J'
	DictUpdateTag = 'D'
	ForeachTag    = 'f'
)

// loaderErrorMessage is embedded in the preamble's failure path.
const loaderErrorMessage = "The TclPro ByteCode Loader is not available or does not support the correct version"

// Preamble returns the script text that guards the embedded bytecode:
// it requires the loader package and opens the braced argument of the
// eval command. The embedded stream follows immediately.
func Preamble() string {
	return fmt.Sprintf(
		"if {[catch {package require %s %s} err] == 1} {\n"+
			"    return -code error \"[info script]: %s -- $err\"\n"+
			"}\n"+
			"%s::%s {",
		ReaderPackage, ReaderVersion, loaderErrorMessage, ReaderPackage, EvalCommand)
}

// Postamble closes the braced argument opened by the preamble.
func Postamble() string {
	return "}"
}

// Signature returns the signature line placed ahead of the dumped unit:
// format name, format version, producer version, and the language
// version the unit was compiled for.
func Signature(tclVersion string) string {
	return fmt.Sprintf("%s %d %s %s", SignatureHeader, FormatVersion, CompilerVersion, tclVersion)
}
