// Package chunker splits documents into overlapping chunks for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Separators are tried in order; the empty separator splits into runes.
var Separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size runes where consecutive
// chunks share up to Overlap runes
type Splitter struct {
	Size    int
	Overlap int
}

// New validates size and overlap
func New(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split returns the chunks of text. Blank text yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, Separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := pickSeparator(text, seps)

	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var (
		out  []string
		good []string
	)
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) <= s.Size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}
	return out
}

// pickSeparator returns the first separator present in text and the finer
// separators after it
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// merge packs pieces into chunks no longer than Size, carrying trailing
// pieces of up to Overlap runes into the next chunk
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var (
		out     []string
		current []string
		total   int
	)
	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n+joinCost() > s.Size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
				out = append(out, chunk)
			}
			for total > s.Overlap || (total > 0 && total+n+joinCost() > s.Size) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		total += n + joinCost()
		current = append(current, p)
	}
	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		out = append(out, chunk)
	}
	return out
}
