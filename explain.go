package pubgrub

import (
	"fmt"
	"strings"
)

const explainWrapWidth = 78

// Explain renders the derivation proof rooted at an incompatibility as
// ordered prose. Incompatibilities referenced by more than one derivation
// get a stable "(N)" line number and are cited by number instead of being
// re-derived; single-use ones are inlined into their child's sentence.
func Explain(root *Incompatibility) string {
	w := &explainWriter{
		root:        root,
		derivations: make(map[*Incompatibility]int),
		lineNumbers: make(map[*Incompatibility]int),
	}
	w.countDerivations(root)
	return w.write()
}

type explainLine struct {
	message string
	number  int // 0 when unnumbered
}

type explainWriter struct {
	root        *Incompatibility
	derivations map[*Incompatibility]int
	lineNumbers map[*Incompatibility]int
	lines       []explainLine
}

// countDerivations records the fan-in of each node: nodes used more than
// once must be written on their own numbered line.
func (w *explainWriter) countDerivations(in *Incompatibility) {
	if _, ok := w.derivations[in]; ok {
		w.derivations[in]++
		return
	}
	w.derivations[in] = 1
	if c, ok := in.cause.(ConflictCause); ok {
		w.countDerivations(c.Conflict)
		w.countDerivations(c.Other)
	}
}

func (w *explainWriter) write() string {
	if _, ok := w.root.cause.(ConflictCause); ok {
		w.visit(w.root, false)
	} else {
		w.writeLine(w.root, fmt.Sprintf("Because %s, version solving failed.", w.root), false)
	}

	padding := 0
	if len(w.lineNumbers) > 0 {
		highest := 0
		for _, n := range w.lineNumbers {
			if n > highest {
				highest = n
			}
		}
		padding = len(fmt.Sprintf("(%d) ", highest))
	}

	var buf strings.Builder
	lastWasEmpty := false
	for _, line := range w.lines {
		if line.message == "" {
			if !lastWasEmpty {
				buf.WriteByte('\n')
			}
			lastWasEmpty = true
			continue
		}
		lastWasEmpty = false

		msg := line.message
		if line.number != 0 {
			prefix := fmt.Sprintf("(%d)", line.number)
			msg = prefix + strings.Repeat(" ", padding-len(prefix)) + msg
		} else {
			msg = strings.Repeat(" ", padding) + msg
		}
		buf.WriteString(wordWrap(msg, strings.Repeat(" ", padding+2)))
		buf.WriteByte('\n')
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (w *explainWriter) writeLine(in *Incompatibility, message string, numbered bool) {
	if numbered {
		n := len(w.lineNumbers) + 1
		w.lineNumbers[in] = n
		w.lines = append(w.lines, explainLine{message: message, number: n})
		return
	}
	w.lines = append(w.lines, explainLine{message: message})
}

// visit writes the prose for one conflict-caused incompatibility, visiting
// whichever parents have not already been written to a numbered line.
func (w *explainWriter) visit(in *Incompatibility, conclusion bool) {
	numbered := conclusion || w.derivations[in] > 1
	conjunction := "And"
	if conclusion || in == w.root {
		conjunction = "So,"
	}
	incompatString := in.String()

	cc := in.cause.(ConflictCause)
	_, conflictDerived := cc.Conflict.cause.(ConflictCause)
	_, otherDerived := cc.Other.cause.(ConflictCause)

	switch {
	case conflictDerived && otherDerived:
		conflictLine := w.lineNumbers[cc.Conflict]
		otherLine := w.lineNumbers[cc.Other]
		switch {
		case conflictLine != 0 && otherLine != 0:
			w.writeLine(in, fmt.Sprintf("Because %s, %s.",
				cc.Conflict.andToString(cc.Other, conflictLine, otherLine),
				incompatString), numbered)
		case conflictLine != 0 || otherLine != 0:
			withLine, withoutLine, line := cc.Conflict, cc.Other, conflictLine
			if otherLine != 0 {
				withLine, withoutLine, line = cc.Other, cc.Conflict, otherLine
			}
			w.visit(withoutLine, false)
			w.writeLine(in, fmt.Sprintf("%s because %s (%d), %s.",
				conjunction, withLine, line, incompatString), numbered)
		case isSingleLine(cc.Conflict.cause.(ConflictCause)) || isSingleLine(cc.Other.cause.(ConflictCause)):
			// Write the single-sentence parent first so both derivations
			// read bottom-up into the conclusion.
			first, second := cc.Other, cc.Conflict
			if isSingleLine(cc.Other.cause.(ConflictCause)) {
				first, second = cc.Conflict, cc.Other
			}
			w.visit(first, false)
			w.visit(second, false)
			w.writeLine(in, fmt.Sprintf("Thus, %s.", incompatString), numbered)
		default:
			// Two long derivations: write the first as a numbered
			// conclusion, separate with a blank line, then cite it.
			w.visit(cc.Conflict, true)
			w.lines = append(w.lines, explainLine{})
			w.visit(cc.Other, false)
			w.writeLine(in, fmt.Sprintf("%s because %s (%d), %s.",
				conjunction, cc.Conflict, w.lineNumbers[cc.Conflict], incompatString), numbered)
		}
	case conflictDerived || otherDerived:
		derived, ext := cc.Conflict, cc.Other
		if otherDerived {
			derived, ext = cc.Other, cc.Conflict
		}
		if line := w.lineNumbers[derived]; line != 0 {
			w.writeLine(in, fmt.Sprintf("Because %s, %s.",
				ext.andToString(derived, 0, line), incompatString), numbered)
		} else if w.isCollapsible(derived) {
			dc := derived.cause.(ConflictCause)
			collapsedDerived, collapsedExt := dc.Conflict, dc.Other
			if _, ok := dc.Other.cause.(ConflictCause); ok {
				collapsedDerived, collapsedExt = dc.Other, dc.Conflict
			}
			w.visit(collapsedDerived, false)
			w.writeLine(in, fmt.Sprintf("%s because %s, %s.",
				conjunction, collapsedExt.andToString(ext, 0, 0), incompatString), numbered)
		} else {
			w.visit(derived, false)
			w.writeLine(in, fmt.Sprintf("%s because %s, %s.",
				conjunction, ext, incompatString), numbered)
		}
	default:
		w.writeLine(in, fmt.Sprintf("Because %s, %s.",
			cc.Conflict.andToString(cc.Other, 0, 0), incompatString), numbered)
	}
}

// isCollapsible reports whether a derived incompatibility can be inlined
// into its child's sentence: used only once, with exactly one derived
// parent, and that parent not already on a numbered line.
func (w *explainWriter) isCollapsible(in *Incompatibility) bool {
	if w.derivations[in] > 1 {
		return false
	}
	cc, ok := in.cause.(ConflictCause)
	if !ok {
		return false
	}
	_, conflictDerived := cc.Conflict.cause.(ConflictCause)
	_, otherDerived := cc.Other.cause.(ConflictCause)
	if conflictDerived == otherDerived {
		return false
	}
	complex := cc.Conflict
	if otherDerived {
		complex = cc.Other
	}
	_, hasLine := w.lineNumbers[complex]
	return !hasLine
}

// isSingleLine reports whether a conflict's prose fits one sentence: both
// parents are external facts.
func isSingleLine(cc ConflictCause) bool {
	_, conflictDerived := cc.Conflict.cause.(ConflictCause)
	_, otherDerived := cc.Other.cause.(ConflictCause)
	return !conflictDerived && !otherDerived
}

func wordWrap(message, indent string) string {
	if len(message) <= explainWrapWidth {
		return message
	}

	lead := message[:len(message)-len(strings.TrimLeft(message, " "))]
	words := strings.Fields(message)

	var b strings.Builder
	b.WriteString(lead)
	lineLen := len(lead)
	for i, word := range words {
		if i > 0 {
			if lineLen+1+len(word) > explainWrapWidth {
				b.WriteByte('\n')
				b.WriteString(indent)
				lineLen = len(indent)
			} else {
				b.WriteByte(' ')
				lineLen++
			}
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}
