package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/leanworks/mend/internal/diag"
	"github.com/leanworks/mend/internal/patch"
)

// Rule maps one diagnostic pattern to a source transformation. Match and
// Build must be pure functions of (diagnostic, buffer); a rule whose target
// condition already holds in the buffer must not match.
type Rule struct {
	// Name labels the rule in patch descriptions and event payloads
	Name string

	// Match reports whether the rule applies to this diagnostic and buffer
	Match func(d diag.Diagnostic, buffer string) bool

	// Build produces the patch. Only called when Match returned true;
	// returns nil if the transformation cannot be anchored after all.
	Build func(d diag.Diagnostic, buffer string) *patch.Patch
}

// Engine evaluates an ordered rule list, first match wins
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the default rule set
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// NewEngineWithRules creates an engine with a custom rule list.
// Intended for tests.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Propose returns a patch for the diagnostic, or nil when no rule matches,
// signaling the loop to fall back to generative repair.
func (e *Engine) Propose(d diag.Diagnostic, buffer string) *patch.Patch {
	for _, r := range e.rules {
		if !r.Match(d, buffer) {
			continue
		}
		p := r.Build(d, buffer)
		if p == nil {
			continue
		}
		p.Origin = patch.OriginDeterministic
		p.Description = r.Name
		p.Targets = []diag.Diagnostic{d}
		return p
	}
	return nil
}

// ProposeCandidates returns up to beam patches, one per diagnostic in
// target order, for beam search over deterministic fixes. With beam 1 this
// is Propose on the first unresolved diagnostic.
func (e *Engine) ProposeCandidates(result *diag.CompileResult, buffer string, beam int) []*patch.Patch {
	if beam < 1 {
		beam = 1
	}

	var candidates []*patch.Patch
	for _, d := range orderedTargets(result) {
		if p := e.Propose(d, buffer); p != nil {
			candidates = append(candidates, p)
			if len(candidates) == beam {
				break
			}
		}
	}
	return candidates
}

// orderedTargets sorts diagnostics in fix-target order: earliest by
// location, then errors before warnings before info.
func orderedTargets(result *diag.CompileResult) []diag.Diagnostic {
	ordered := make([]diag.Diagnostic, len(result.Diagnostics))
	copy(ordered, result.Diagnostics)
	sort.SliceStable(ordered, func(i, j int) bool {
		return targetLess(ordered[i], ordered[j])
	})
	return ordered
}

func targetLess(a, b diag.Diagnostic) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Col != b.Col {
		return a.Col < b.Col
	}
	return severityRank(a.Severity) < severityRank(b.Severity)
}

func severityRank(s diag.Severity) int {
	switch s {
	case diag.SeverityError:
		return 0
	case diag.SeverityWarning:
		return 1
	default:
		return 2
	}
}

var (
	unknownIdentRe = regexp.MustCompile(`unknown identifier '([^']+)'`)
	didYouMeanRe   = regexp.MustCompile(`(?:did you mean|similar identifier)\s+'([^']+)'`)
	unknownNsRe    = regexp.MustCompile(`unknown (?:namespace|constant) '([^']+)'`)
)

// knownImports maps identifier prefixes to the Mathlib module that
// provides them. Deliberately small: only stable, unambiguous mappings.
var knownImports = map[string]string{
	"Real.log":  "Mathlib.Analysis.SpecialFunctions.Log.Basic",
	"Real.exp":  "Mathlib.Analysis.SpecialFunctions.Exp",
	"Complex":   "Mathlib.Analysis.SpecialFunctions.Complex.Log",
	"Finset":    "Mathlib.Data.Finset.Basic",
	"Filter":    "Mathlib.Order.Filter.Basic",
	"Matrix":    "Mathlib.Data.Matrix.Basic",
	"Nat.Prime": "Mathlib.Data.Nat.Prime.Basic",
}

func defaultRules() []Rule {
	return []Rule{
		renameSuggestionRule(),
		importForIdentifierRule(),
		openClassicalRule(),
		importForNamespaceRule(),
	}
}

// renameSuggestionRule renames an unknown identifier to the checker's
// suggested alternative when the diagnostic span still holds the
// identifier in the current buffer.
func renameSuggestionRule() Rule {
	match := func(d diag.Diagnostic, buffer string) bool {
		if d.Severity != diag.SeverityError {
			return false
		}
		ident := unknownIdentRe.FindStringSubmatch(d.Message)
		hint := didYouMeanRe.FindStringSubmatch(d.Message)
		if ident == nil || hint == nil || ident[1] == hint[1] {
			return false
		}
		off, ok := offsetOf(buffer, d.Line, d.Col)
		if !ok {
			return false
		}
		return strings.HasPrefix(buffer[off:], ident[1])
	}

	build := func(d diag.Diagnostic, buffer string) *patch.Patch {
		ident := unknownIdentRe.FindStringSubmatch(d.Message)[1]
		hint := didYouMeanRe.FindStringSubmatch(d.Message)[1]
		off, ok := offsetOf(buffer, d.Line, d.Col)
		if !ok {
			return nil
		}
		return &patch.Patch{
			Start:       off,
			End:         off + len(ident),
			Anchor:      ident,
			Replacement: hint,
		}
	}

	return Rule{Name: "rename-suggestion", Match: match, Build: build}
}

// importForIdentifierRule inserts the Mathlib import for a fully qualified
// identifier the table knows about.
func importForIdentifierRule() Rule {
	match := func(d diag.Diagnostic, buffer string) bool {
		ident := unknownIdentRe.FindStringSubmatch(d.Message)
		if ident == nil {
			return false
		}
		module, ok := lookupImport(ident[1])
		return ok && !hasImport(buffer, module)
	}

	build := func(d diag.Diagnostic, buffer string) *patch.Patch {
		ident := unknownIdentRe.FindStringSubmatch(d.Message)[1]
		module, _ := lookupImport(ident)
		return insertLinePatch(0, fmt.Sprintf("import %s\n", module))
	}

	return Rule{Name: "import-for-identifier", Match: match, Build: build}
}

// openClassicalRule opens the Classical namespace when the checker cannot
// resolve Classical-prefixed names and the file does not open it yet.
func openClassicalRule() Rule {
	match := func(d diag.Diagnostic, buffer string) bool {
		ident := unknownIdentRe.FindStringSubmatch(d.Message)
		if ident == nil || !strings.HasPrefix(ident[1], "Classical") {
			return false
		}
		return !strings.Contains(buffer, "open Classical")
	}

	build := func(d diag.Diagnostic, buffer string) *patch.Patch {
		return insertLinePatch(afterImports(buffer), "open Classical\n")
	}

	return Rule{Name: "open-classical", Match: match, Build: build}
}

// importForNamespaceRule inserts the Mathlib import for an unknown
// namespace or constant the table knows about.
func importForNamespaceRule() Rule {
	match := func(d diag.Diagnostic, buffer string) bool {
		ns := unknownNsRe.FindStringSubmatch(d.Message)
		if ns == nil {
			return false
		}
		module, ok := lookupImport(ns[1])
		return ok && !hasImport(buffer, module)
	}

	build := func(d diag.Diagnostic, buffer string) *patch.Patch {
		ns := unknownNsRe.FindStringSubmatch(d.Message)[1]
		module, _ := lookupImport(ns)
		return insertLinePatch(0, fmt.Sprintf("import %s\n", module))
	}

	return Rule{Name: "import-for-namespace", Match: match, Build: build}
}

// lookupImport resolves an identifier against the import table, trying the
// full name first and then successively shorter prefixes.
func lookupImport(ident string) (string, bool) {
	for {
		if module, ok := knownImports[ident]; ok {
			return module, true
		}
		i := strings.LastIndex(ident, ".")
		if i < 0 {
			return "", false
		}
		ident = ident[:i]
	}
}

func hasImport(buffer, module string) bool {
	return strings.Contains(buffer, "import "+module)
}

func insertLinePatch(offset int, line string) *patch.Patch {
	return &patch.Patch{
		Start:       offset,
		End:         offset,
		Anchor:      "",
		Replacement: line,
	}
}

// afterImports returns the byte offset just past the last top-level
// import line, or 0 when the buffer has none.
func afterImports(buffer string) int {
	offset := 0
	pos := 0
	for _, line := range strings.SplitAfter(buffer, "\n") {
		if strings.HasPrefix(line, "import ") {
			offset = pos + len(line)
		}
		pos += len(line)
	}
	return offset
}

// offsetOf converts a 1-based line and 0-based column into a byte offset
func offsetOf(buffer string, line, col int) (int, bool) {
	if line < 1 || col < 0 {
		return 0, false
	}
	pos := 0
	current := 1
	for current < line {
		i := strings.IndexByte(buffer[pos:], '\n')
		if i < 0 {
			return 0, false
		}
		pos += i + 1
		current++
	}
	lineEnd := len(buffer)
	if i := strings.IndexByte(buffer[pos:], '\n'); i >= 0 {
		lineEnd = pos + i
	}
	if pos+col > lineEnd {
		return 0, false
	}
	return pos + col, true
}
