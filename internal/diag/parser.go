package diag

import (
	"regexp"
	"strconv"
	"strings"
)

// headerRe matches a diagnostic header line: path:line:col: severity: message
var headerRe = regexp.MustCompile(`^([^\s:][^:]*):(\d+):(\d+):\s*(error|warning|info):\s?(.*)$`)

// ParseOutput parses raw checker output into an ordered diagnostic sequence.
//
// The grammar is line oriented: a header line starts a diagnostic, and any
// following lines up to the next header (or end of output) are folded into
// its message body. Lines before the first header are build noise and are
// skipped. A header that matches the shape but carries inconsistent fields
// is a ParseError, not a runtime failure path.
func ParseOutput(output string) ([]Diagnostic, error) {
	var diags []Diagnostic
	var current *Diagnostic
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		if len(body) > 0 {
			current.Message = strings.TrimRight(current.Message+"\n"+strings.Join(body, "\n"), "\n")
		}
		diags = append(diags, *current)
		current = nil
		body = nil
	}

	for _, line := range strings.Split(output, "\n") {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				body = append(body, strings.TrimRight(line, "\r"))
			}
			continue
		}

		flush()

		lineNo, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		colNo, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if lineNo < 1 || colNo < 0 {
			return nil, &ParseError{Line: line}
		}

		current = &Diagnostic{
			File:     m[1],
			Line:     lineNo,
			Col:      colNo,
			Severity: Severity(m[4]),
			Message:  m[5],
		}
	}
	flush()

	// Trim trailing blank lines folded into the last message body.
	for i := range diags {
		diags[i].Message = strings.TrimRight(diags[i].Message, " \t\n")
	}

	return diags, nil
}
