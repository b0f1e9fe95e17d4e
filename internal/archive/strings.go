package archive

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"

	"github.com/jchantrell/gmdata/internal/iff"
)

// StringResource is a length-prefixed entry of the STRG chunk. Its span
// covers the character data only; the length prefix sits just before it.
type StringResource struct {
	span

	once  sync.Once
	value string
}

func (s *StringResource) Kind() Kind { return KindString }

// Value decodes the text once. Invalid UTF-8 sequences become U+FFFD.
func (s *StringResource) Value() string {
	s.once.Do(func() {
		raw, err := s.span.Bytes()
		if err != nil {
			return
		}
		decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
		if err != nil {
			decoded = raw
		}
		s.value = string(decoded)
	})
	return s.value
}

var (
	colourCode   = regexp.MustCompile(`\\[A-Z][0-9]?`)
	portraitCode = regexp.MustCompile(`\\\[.\]`)
	delayCode    = regexp.MustCompile(`\^\d`)
	trailingEnd  = regexp.MustCompile(`/%*$`)
)

// Display strips the in-game text markup: colour and face codes, delay
// markers and the trailing end-of-message marker. Ampersands are line
// breaks.
func (s *StringResource) Display() string {
	out := colourCode.ReplaceAllString(s.Value(), "")
	out = portraitCode.ReplaceAllString(out, "???")
	out = delayCode.ReplaceAllString(out, "")
	out = trailingEnd.ReplaceAllString(out, "")
	return strings.ReplaceAll(out, "&", "\n")
}

func (s *StringResource) String() string {
	return fmt.Sprintf("StringResource [bounds=%d -> %d, text=%s]", s.Absolute(), s.Absolute()+int64(s.length), s.Value())
}

// decodeStrings builds the string table. Entries are keyed by the position
// of their first character, which is what other chunks point at.
func (a *Archive) decodeStrings(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	a.strings = make([]*StringResource, 0, len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		n, err := c.Int32(off)
		if err != nil {
			return fmt.Errorf("string %d length: %w", i, err)
		}
		s, err := newSpan(c, off+4, int(n))
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		if _, err := s.Bytes(); err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}

		res := &StringResource{span: s}
		a.strings = append(a.strings, res)
		a.register(ptr+4, res)
	}
	return nil
}

// stringAt resolves a string pointer. A null pointer yields an empty string.
func (a *Archive) stringAt(ptr int64) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	s, err := resourceAs[*StringResource](a, ptr)
	if err != nil {
		return "", err
	}
	return s.Value(), nil
}
