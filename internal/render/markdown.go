// Package render incrementally formats assistant markdown to the terminal.
// The caller holds an append-only buffer and a byte offset; each call
// consumes as much of the partial view as is unambiguously parseable and
// returns how many bytes were consumed. ErrIncomplete means no progress can
// be made until more bytes arrive.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ErrIncomplete reports that the partial view ends mid-token.
var ErrIncomplete = errors.New("incomplete markdown input")

var (
	boldStyle     = lipgloss.NewStyle().Bold(true)
	italicStyle   = lipgloss.NewStyle().Italic(true)
	codeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	citationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	ruleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Citation is one recorded citation marker, printed in the end-of-stream
// footer.
type Citation struct {
	Index string
	URL   string
}

// ParseState carries the renderer state across partial parses.
type ParseState struct {
	// Column is the current terminal column, tracked for wrapping.
	Column int

	// Newline and SetNewline implement the caller-managed newline-pending
	// handshake: after each successful parse the caller copies SetNewline
	// into Newline and clears SetNewline.
	Newline    bool
	SetNewline bool

	// TerminalWidth bounds soft wrapping. Zero disables wrapping.
	TerminalWidth int

	// Citations accumulates citation markers seen so far.
	Citations []Citation
}

// NewParseState creates a ParseState for the given terminal width.
func NewParseState(width int) *ParseState {
	return &ParseState{TerminalWidth: width}
}

const specials = "\n*`[#-"

// InterpretMarkdown consumes one token from the partial view and writes its
// rendered form. It returns the number of bytes consumed, or ErrIncomplete
// when the view ends mid-token.
func InterpretMarkdown(input string, w io.Writer, st *ParseState) (int, error) {
	if input == "" {
		return 0, ErrIncomplete
	}

	switch input[0] {
	case '\n':
		fmt.Fprint(w, "\n")
		st.Column = 0
		st.SetNewline = true
		return 1, nil
	case '[':
		return parseCitation(input, w, st)
	case '*':
		return parseEmphasis(input, w, st)
	case '`':
		return parseCode(input, w, st)
	case '#':
		if st.Column == 0 {
			return parseHeading(input, w, st)
		}
	case '-':
		if st.Column == 0 {
			return parseDash(input, w, st)
		}
	}

	return parseText(input, w, st)
}

// parseText consumes plain prose up to the next special character.
func parseText(input string, w io.Writer, st *ParseState) (int, error) {
	end := strings.IndexAny(input, specials)
	if end == 0 {
		// A special character that failed its own parse renders literally.
		end = 1
	} else if end < 0 {
		end = len(input)
	}
	st.writeStyled(w, input[:end], lipgloss.NewStyle())
	return end, nil
}

// parseCitation handles [^N] markers, optionally followed by (url). The
// index and URL are recorded for the end-of-stream footer.
func parseCitation(input string, w io.Writer, st *ParseState) (int, error) {
	if len(input) < 2 {
		return 0, ErrIncomplete
	}
	if input[1] != '^' {
		return parseText(input, w, st)
	}

	close := strings.IndexByte(input, ']')
	if close < 0 {
		if strings.ContainsRune(input, '\n') {
			return parseText(input, w, st)
		}
		return 0, ErrIncomplete
	}

	index := input[2:close]
	if index == "" || strings.ContainsAny(index, " \n") {
		return parseText(input, w, st)
	}

	consumed := close + 1
	url := ""
	if consumed == len(input) {
		// A (url) may still follow; wait for the next byte. The sentinel
		// newline at end of stream guarantees this resolves.
		return 0, ErrIncomplete
	}
	if input[consumed] == '(' {
		urlEnd := strings.IndexByte(input[consumed:], ')')
		if urlEnd < 0 {
			if strings.ContainsRune(input[consumed:], '\n') {
				st.writeStyled(w, fmt.Sprintf("[^%s]", index), citationStyle)
				st.Citations = append(st.Citations, Citation{Index: index})
				return consumed, nil
			}
			return 0, ErrIncomplete
		}
		url = input[consumed+1 : consumed+urlEnd]
		consumed += urlEnd + 1
	}

	st.writeStyled(w, fmt.Sprintf("[^%s]", index), citationStyle)
	st.Citations = append(st.Citations, Citation{Index: index, URL: url})
	return consumed, nil
}

// parseEmphasis handles **bold** and *italic* spans. An opener with no
// closer before the next newline renders literally.
func parseEmphasis(input string, w io.Writer, st *ParseState) (int, error) {
	marker := "*"
	style := italicStyle
	if strings.HasPrefix(input, "**") {
		marker = "**"
		style = boldStyle
	}

	rest := input[len(marker):]
	close := strings.Index(rest, marker)
	nl := strings.IndexByte(rest, '\n')

	if close < 0 || (nl >= 0 && nl < close) {
		if nl < 0 {
			return 0, ErrIncomplete
		}
		st.writeStyled(w, marker, lipgloss.NewStyle())
		return len(marker), nil
	}

	st.writeStyled(w, rest[:close], style)
	return len(marker)*2 + close, nil
}

// parseCode handles `inline code` spans.
func parseCode(input string, w io.Writer, st *ParseState) (int, error) {
	rest := input[1:]
	close := strings.IndexByte(rest, '`')
	nl := strings.IndexByte(rest, '\n')

	if close < 0 || (nl >= 0 && nl < close) {
		if nl < 0 {
			return 0, ErrIncomplete
		}
		st.writeStyled(w, "`", lipgloss.NewStyle())
		return 1, nil
	}

	st.writeStyled(w, rest[:close], codeStyle)
	return close + 2, nil
}

// parseHeading handles # headings. The whole line is needed before anything
// renders.
func parseHeading(input string, w io.Writer, st *ParseState) (int, error) {
	nl := strings.IndexByte(input, '\n')
	if nl < 0 {
		return 0, ErrIncomplete
	}

	line := input[:nl]
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level == len(line) || line[level] != ' ' {
		return parseText(input, w, st)
	}

	st.writeStyled(w, line[level+1:], headingStyle)
	return nl, nil
}

// parseDash distinguishes "- " bullets from --- horizontal rules.
func parseDash(input string, w io.Writer, st *ParseState) (int, error) {
	if len(input) < 2 {
		return 0, ErrIncomplete
	}
	if input[1] == ' ' {
		st.writeStyled(w, "• ", lipgloss.NewStyle())
		return 2, nil
	}

	nl := strings.IndexByte(input, '\n')
	if nl < 0 {
		return 0, ErrIncomplete
	}
	line := input[:nl]
	if len(line) >= 3 && strings.Count(line, "-") == len(line) {
		width := st.TerminalWidth
		if width <= 0 {
			width = len(line)
		}
		fmt.Fprint(w, ruleStyle.Render(strings.Repeat("─", width)))
		st.Column = width
		return nl, nil
	}
	return parseText(input, w, st)
}

// writeStyled writes text with soft word wrapping against the terminal
// width, updating the column.
func (st *ParseState) writeStyled(w io.Writer, text string, style lipgloss.Style) {
	if st.TerminalWidth <= 0 {
		fmt.Fprint(w, style.Render(text))
		st.Column += runewidth.StringWidth(text)
		return
	}

	for len(text) > 0 {
		wordEnd := strings.IndexByte(text, ' ')
		var word string
		if wordEnd < 0 {
			word, text = text, ""
		} else {
			word, text = text[:wordEnd+1], text[wordEnd+1:]
		}

		width := runewidth.StringWidth(word)
		if st.Column > 0 && st.Column+width > st.TerminalWidth {
			fmt.Fprint(w, "\n")
			st.Column = 0
		}
		fmt.Fprint(w, style.Render(word))
		st.Column += width
	}
}
