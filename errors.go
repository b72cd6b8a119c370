package odtgen

import "fmt"

// SyntaxError reports a malformed placeholder or directive. Text holds the
// offending raw value as found in the document.
type SyntaxError struct {
	Text   string
	Reason string
	Err    error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("syntax error in %q: %s", e.Text, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// FormatError reports a package that is missing required entries or whose
// content does not parse as XML.
type FormatError struct {
	Entry  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "format error"
	if e.Entry != "" {
		msg += " in " + e.Entry
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// TemplateError reports a failure of the template engine.
type TemplateError struct {
	Msg string
	Err error
}

func (e *TemplateError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *TemplateError) Unwrap() error { return e.Err }

// ArgumentError reports an invalid argument passed by the caller.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Reason)
}
