package source

import (
	"bytes"
	"unicode/utf8"
)

// Source is an immutable parsed document. All parser positions are absolute
// byte offsets into its content; the remaining input at position p is always
// the suffix starting at p, never a copy.
type Source struct {
	name       string
	content    []byte
	lineStarts []int
	reversed   []byte
}

func New (name string, content []byte) *Source {
	s := &Source{name: name, content: content}
	lineCnt := bytes.Count(content, []byte("\n")) + 1
	s.lineStarts = make([]int, 1, lineCnt)
	for i, c := range content {
		if c == '\n' {
			s.lineStarts = append(s.lineStarts, i + 1)
		}
	}
	return s
}

func (s *Source) Name () string {
	return s.name
}

func (s *Source) Content () []byte {
	return s.content
}

func (s *Source) Len () int {
	return len(s.content)
}

// Text returns the document text between two byte positions, clamped to the
// document bounds.
func (s *Source) Text (from, to int) string {
	l := len(s.content)
	if from < 0 {
		from = 0
	}
	if to > l {
		to = l
	}
	if from >= to {
		return ""
	}
	return string(s.content[from : to])
}

// Suffix returns the remaining input at the given byte position.
func (s *Source) Suffix (pos int) []byte {
	if pos < 0 {
		pos = 0
	}
	if pos >= len(s.content) {
		return nil
	}
	return s.content[pos :]
}

// Reversed returns the document content reversed rune-wise, built lazily on
// first use. For any position p lying on a rune boundary, Reversed()[Len()-p:]
// is the rune-wise reversal of Content()[:p]; lookbehind matching relies on
// this equality.
func (s *Source) Reversed () []byte {
	if s.reversed == nil {
		src := s.content
		rev := make([]byte, len(src))
		pos := len(rev)
		for i := 0; i < len(src); {
			_, size := utf8.DecodeRune(src[i :])
			pos -= size
			copy(rev[pos : pos + size], src[i : i + size])
			i += size
		}
		s.reversed = rev
	}
	return s.reversed
}

// LineCol converts an absolute byte position to 1-based line and column
// numbers; columns count runes, not bytes.
func (s *Source) LineCol (pos int) (line, col int) {
	if pos < 0 {
		pos = 0
	} else if pos > len(s.content) {
		pos = len(s.content)
	}

	lineIndex := s.findLineIndex(pos)
	lineStart := s.lineStarts[lineIndex]
	return lineIndex + 1, utf8.RuneCount(s.content[lineStart : pos]) + 1
}

// Pos converts 1-based line and column numbers to an absolute byte position,
// clamped to the document bounds.
func (s *Source) Pos (line, col int) int {
	if line <= 0 || col <= 0 {
		return 0
	}

	l := len(s.content)
	if line > len(s.lineStarts) {
		return l
	}

	res := s.lineStarts[line - 1] + col - 1
	if res > l {
		res = l
	}
	return res
}

func (s *Source) findLineIndex (pos int) int {
	left := 0
	right := len(s.lineStarts) - 1
	for left < right {
		index := (left + right + 1) >> 1
		if s.lineStarts[index] <= pos {
			left = index
		} else {
			right = index - 1
		}
	}
	return left
}
