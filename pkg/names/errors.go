package names

import "fmt"

// InvalidInputTypeError reports a name argument that is neither a string nor
// a collection of strings.
type InvalidInputTypeError struct {
	Value any
}

func (err InvalidInputTypeError) Error() string {
	return fmt.Sprintf("subject and session names must be a string or a list of strings, got %T", err.Value)
}

// InvalidNameFormatError reports a name that breaks formatting rules, such as
// containing a space or misordered delimiters.
type InvalidNameFormatError struct {
	Name   string
	Reason string
}

func (err InvalidNameFormatError) Error() string {
	reason := err.Reason
	if reason == "" {
		reason = "sub and ses names cannot include spaces"
	}

	return fmt.Sprintf("invalid name %q: %s", err.Name, reason)
}

// DuplicateNameError reports an exact duplicate in one call's input, detected
// after prefixing but before any tag expansion.
type DuplicateNameError struct {
	Name string
}

func (err DuplicateNameError) Error() string {
	return fmt.Sprintf("subject and session names must be unique, %q appears more than once", err.Name)
}

// InvalidRangeFormatError reports an @TO@ tag that is not in the required
// <prefix>-<digits>@TO@<digits> shape at the start of the name.
type InvalidRangeFormatError struct {
	Name   string
	Prefix Prefix
}

func (err InvalidRangeFormatError) Error() string {
	return fmt.Sprintf(
		"the name %q is not in the required format for the @TO@ tag: it must start with %s<NUMBER>@TO@<NUMBER>",
		err.Name, err.Prefix.WithDash(),
	)
}

// InvalidRangeError reports an @TO@ range whose left bound is not smaller
// than its right bound.
type InvalidRangeError struct {
	Name  string
	Left  int
	Right int
}

func (err InvalidRangeError) Error() string {
	return fmt.Sprintf(
		"in %q the number to the left of @TO@ (%d) must be smaller than the number to the right (%d)",
		err.Name, err.Left, err.Right,
	)
}

// MultipleDateTagsError reports a name containing more than one of @DATE@,
// @TIME@ and @DATETIME@.
type MultipleDateTagsError struct {
	Name string
}

func (err MultipleDateTagsError) Error() string {
	return fmt.Sprintf("only one of @DATE@, @TIME@ or @DATETIME@ is permitted per name, got %q", err.Name)
}
