// Package tokens scans delimited tokens such as ${name} and #{prop} out of
// template text.
//
// A backslash directly before the open delimiter escapes it, and a backslash
// before the close delimiter inside a token keeps the delimiter as content.
// An open delimiter without a matching close is left in the text verbatim.
package tokens

import "strings"

// Segment is one piece of scanned text: either literal text or the content
// of a token (delimiters removed).
type Segment struct {
	Text  string
	Token bool
}

// Scan walks text and calls onText for literal runs and onToken for the
// content of each complete token, in textual order. The first error returned
// by onToken stops the scan.
func Scan(text, open, close string, onText func(string), onToken func(string) error) error {
	start := indexFrom(text, open, 0)
	if start < 0 {
		if text != "" {
			onText(text)
		}
		return nil
	}

	var lit strings.Builder
	offset := 0
	for start >= 0 {
		if start > 0 && text[start-1] == '\\' {
			lit.WriteString(text[offset : start-1])
			lit.WriteString(open)
			offset = start + len(open)
			start = indexFrom(text, open, offset)
			continue
		}

		lit.WriteString(text[offset:start])
		var content strings.Builder
		pos := start + len(open)
		end := indexFrom(text, close, pos)
		for end > pos && text[end-1] == '\\' {
			content.WriteString(text[pos : end-1])
			content.WriteString(close)
			pos = end + len(close)
			end = indexFrom(text, close, pos)
		}
		if end < 0 {
			lit.WriteString(text[start:])
			offset = len(text)
			break
		}
		content.WriteString(text[pos:end])

		if lit.Len() > 0 {
			onText(lit.String())
			lit.Reset()
		}
		if err := onToken(content.String()); err != nil {
			return err
		}
		offset = end + len(close)
		start = indexFrom(text, open, offset)
	}
	if offset < len(text) {
		lit.WriteString(text[offset:])
	}
	if lit.Len() > 0 {
		onText(lit.String())
	}
	return nil
}

// Replace substitutes every token in text with the value returned by fn.
func Replace(text, open, close string, fn func(content string) (string, error)) (string, error) {
	var b strings.Builder
	err := Scan(text, open, close,
		func(s string) { b.WriteString(s) },
		func(content string) error {
			out, err := fn(content)
			if err != nil {
				return err
			}
			b.WriteString(out)
			return nil
		})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Split returns text as an ordered list of literal and token segments.
func Split(text, open, close string) []Segment {
	var segs []Segment
	_ = Scan(text, open, close,
		func(s string) { segs = append(segs, Segment{Text: s}) },
		func(content string) error {
			segs = append(segs, Segment{Text: content, Token: true})
			return nil
		})
	return segs
}

// Contains reports whether text holds at least one complete token.
func Contains(text, open, close string) bool {
	for _, seg := range Split(text, open, close) {
		if seg.Token {
			return true
		}
	}
	return false
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return i + from
}
