package valkey

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrIncomplete reports that the input ends before the value does. The
// reader keeps the buffer and waits for more bytes.
var ErrIncomplete = errors.New("incomplete RESP data")

// Kind discriminates Value. The names follow the RESP3 type names.
type Kind int

const (
	KindNull Kind = iota
	KindSimpleString
	KindSimpleError
	KindInteger
	KindBulkString
	KindArray
	KindBoolean
	KindDouble
	KindBigNumber
	KindBulkError
	KindVerbatimString
	KindMap
	KindSet
	KindPush
)

// Value is one RESP3 value. Only the fields for the active Kind are
// meaningful.
type Value struct {
	Kind   Kind
	Str    string
	Int    int64
	Float  float64
	Bool   bool
	Bulk   []byte
	Format string // verbatim string format, e.g. "txt"
	Elems  []Value
	Pairs  []Pair
}

// Pair is one map entry. Maps keep wire order.
type Pair struct {
	Key Value
	Val Value
}

func SimpleString(s string) Value { return Value{Kind: KindSimpleString, Str: s} }
func BulkString(b []byte) Value   { return Value{Kind: KindBulkString, Bulk: b} }
func Integer(i int64) Value       { return Value{Kind: KindInteger, Int: i} }
func Null() Value                 { return Value{Kind: KindNull} }

// IsError reports whether the value is a server error reply.
func (v Value) IsError() bool {
	return v.Kind == KindSimpleError || v.Kind == KindBulkError
}

// Err converts an error reply into a Go error, nil otherwise.
func (v Value) Err() error {
	switch v.Kind {
	case KindSimpleError:
		return errors.New(v.Str)
	case KindBulkError:
		return errors.New(string(v.Bulk))
	}
	return nil
}

// MapGet looks a bulk-string or simple-string key up in a map value.
func (v Value) MapGet(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	for _, p := range v.Pairs {
		if p.Key.String() == key {
			return p.Val, true
		}
	}
	return Value{}, false
}

// String renders the value for display. Aggregates render their
// elements in wire form, scalars their content.
func (v Value) String() string {
	switch v.Kind {
	case KindSimpleString, KindSimpleError, KindBigNumber:
		return v.Str
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindBulkString, KindBulkError:
		return string(v.Bulk)
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindVerbatimString:
		return v.Format + ":" + v.Str
	case KindArray, KindSet, KindPush:
		var sb strings.Builder
		for _, e := range v.Elems {
			sb.Write(e.Encode())
		}
		return sb.String()
	case KindMap:
		var sb strings.Builder
		for _, p := range v.Pairs {
			sb.Write(p.Key.Encode())
			sb.Write(p.Val.Encode())
		}
		return sb.String()
	}
	return ""
}

// Flatten collapses the value into display strings, one per leaf.
func (v Value) Flatten() []string {
	switch v.Kind {
	case KindArray, KindSet, KindPush:
		out := make([]string, 0, len(v.Elems))
		for _, e := range v.Elems {
			out = append(out, e.Flatten()...)
		}
		return out
	case KindMap:
		out := make([]string, 0, 2*len(v.Pairs))
		for _, p := range v.Pairs {
			out = append(out, p.Key.String(), p.Val.String())
		}
		return out
	}
	return []string{v.String()}
}

// Encode renders the value back into wire form.
func (v Value) Encode() []byte {
	var b bytes.Buffer
	v.encode(&b)
	return b.Bytes()
}

func (v Value) encode(b *bytes.Buffer) {
	switch v.Kind {
	case KindSimpleString:
		fmt.Fprintf(b, "+%s\r\n", v.Str)
	case KindSimpleError:
		fmt.Fprintf(b, "-%s\r\n", v.Str)
	case KindInteger:
		fmt.Fprintf(b, ":%d\r\n", v.Int)
	case KindBulkString:
		fmt.Fprintf(b, "$%d\r\n", len(v.Bulk))
		b.Write(v.Bulk)
		b.WriteString("\r\n")
	case KindNull:
		b.WriteString("$-1\r\n")
	case KindBoolean:
		if v.Bool {
			b.WriteString("#t\r\n")
		} else {
			b.WriteString("#f\r\n")
		}
	case KindDouble:
		fmt.Fprintf(b, ",%s\r\n", strconv.FormatFloat(v.Float, 'g', -1, 64))
	case KindBigNumber:
		fmt.Fprintf(b, "(%s\r\n", v.Str)
	case KindBulkError:
		fmt.Fprintf(b, "!%d\r\n", len(v.Bulk))
		b.Write(v.Bulk)
		b.WriteString("\r\n")
	case KindVerbatimString:
		fmt.Fprintf(b, "=%d\r\n%s:%s\r\n", len(v.Format)+len(v.Str)+1, v.Format, v.Str)
	case KindArray:
		fmt.Fprintf(b, "*%d\r\n", len(v.Elems))
		for _, e := range v.Elems {
			e.encode(b)
		}
	case KindSet:
		fmt.Fprintf(b, "~%d\r\n", len(v.Elems))
		for _, e := range v.Elems {
			e.encode(b)
		}
	case KindPush:
		fmt.Fprintf(b, ">%d\r\n", len(v.Elems))
		for _, e := range v.Elems {
			e.encode(b)
		}
	case KindMap:
		fmt.Fprintf(b, "%%%d\r\n", len(v.Pairs))
		for _, p := range v.Pairs {
			p.Key.encode(b)
			p.Val.encode(b)
		}
	}
}

// EncodeCommand renders a command as a RESP array of bulk strings, the
// form the server accepts for every command.
func EncodeCommand(args ...string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(a), a)
	}
	return b.Bytes()
}

// Parse decodes one value from the head of data and returns it with
// the number of bytes consumed. ErrIncomplete means more input is
// needed, any other error means the stream is corrupt.
func Parse(data []byte) (Value, int, error) {
	return parseAt(data, 0)
}

// ParseAll decodes consecutive values until the input runs out. A
// trailing incomplete value is an error.
func ParseAll(data []byte) ([]Value, error) {
	var values []Value
	pos := 0
	for pos < len(data) {
		v, next, err := parseAt(data, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		pos = next
	}
	return values, nil
}

// CompleteCount reports how many whole values sit at the head of data.
// Used by pipelined execution to know when every reply has arrived.
func CompleteCount(data []byte) int {
	count, pos := 0, 0
	for pos < len(data) {
		_, next, err := parseAt(data, pos)
		if err != nil {
			break
		}
		count++
		pos = next
	}
	return count
}

func findCRLF(data []byte, start int) int {
	i := bytes.Index(data[start:], []byte("\r\n"))
	if i < 0 {
		return -1
	}
	return start + i
}

// line reads the header line after the type byte at start. Returns the
// line content and the offset past the CRLF.
func line(data []byte, start int) (string, int, error) {
	end := findCRLF(data, start)
	if end < 0 {
		return "", 0, ErrIncomplete
	}
	return string(data[start+1 : end]), end + 2, nil
}

func parseAt(data []byte, start int) (Value, int, error) {
	if start >= len(data) {
		return Value{}, 0, ErrIncomplete
	}
	switch data[start] {
	case '+':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindSimpleString, Str: s}, next, nil
	case '-':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindSimpleError, Str: s}, next, nil
	case ':':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, 0, errors.Wrap(err, "bad integer")
		}
		return Value{Kind: KindInteger, Int: n}, next, nil
	case '_':
		_, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindNull}, next, nil
	case '#':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindBoolean, Bool: strings.EqualFold(s, "t")}, next, nil
	case ',':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, 0, errors.Wrap(err, "bad double")
		}
		return Value{Kind: KindDouble, Float: f}, next, nil
	case '(':
		s, next, err := line(data, start)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindBigNumber, Str: s}, next, nil
	case '$':
		return parseBlob(data, start, KindBulkString)
	case '!':
		return parseBlob(data, start, KindBulkError)
	case '=':
		v, next, err := parseBlob(data, start, KindVerbatimString)
		if err != nil {
			return Value{}, 0, err
		}
		format, rest, ok := strings.Cut(string(v.Bulk), ":")
		if !ok {
			return Value{}, 0, errors.New("verbatim string without format prefix")
		}
		return Value{Kind: KindVerbatimString, Format: format, Str: rest}, next, nil
	case '*':
		return parseAggregate(data, start, KindArray)
	case '~':
		return parseAggregate(data, start, KindSet)
	case '>':
		return parseAggregate(data, start, KindPush)
	case '%':
		return parseMap(data, start)
	}
	return Value{}, 0, errors.Errorf("unknown RESP type %q", data[start])
}

func parseBlob(data []byte, start int, kind Kind) (Value, int, error) {
	s, next, err := line(data, start)
	if err != nil {
		return Value{}, 0, err
	}
	length, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Value{}, 0, errors.Wrap(err, "bad blob length")
	}
	if length < 0 {
		return Value{Kind: KindNull}, next, nil
	}
	end := next + length
	if end+2 > len(data) {
		return Value{}, 0, ErrIncomplete
	}
	if data[end] != '\r' || data[end+1] != '\n' {
		return Value{}, 0, errors.New("blob not terminated by CRLF")
	}
	blob := make([]byte, length)
	copy(blob, data[next:end])
	return Value{Kind: kind, Bulk: blob}, end + 2, nil
}

func parseAggregate(data []byte, start int, kind Kind) (Value, int, error) {
	s, next, err := line(data, start)
	if err != nil {
		return Value{}, 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Value{}, 0, errors.Wrap(err, "bad aggregate length")
	}
	if count < 0 {
		return Value{Kind: KindNull}, next, nil
	}
	elems := make([]Value, 0, count)
	pos := next
	for i := 0; i < count; i++ {
		e, p, err := parseAt(data, pos)
		if err != nil {
			return Value{}, 0, err
		}
		elems = append(elems, e)
		pos = p
	}
	if kind == KindSet {
		elems = dedup(elems)
	}
	return Value{Kind: kind, Elems: elems}, pos, nil
}

func parseMap(data []byte, start int) (Value, int, error) {
	s, next, err := line(data, start)
	if err != nil {
		return Value{}, 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Value{}, 0, errors.Wrap(err, "bad map length")
	}
	pairs := make([]Pair, 0, count)
	pos := next
	for i := 0; i < count; i++ {
		k, p, err := parseAt(data, pos)
		if err != nil {
			return Value{}, 0, err
		}
		v, p2, err := parseAt(data, p)
		if err != nil {
			return Value{}, 0, err
		}
		pairs = append(pairs, Pair{Key: k, Val: v})
		pos = p2
	}
	return Value{Kind: KindMap, Pairs: pairs}, pos, nil
}

// dedup removes adjacent duplicates, matching how set replies are
// normalized for display.
func dedup(elems []Value) []Value {
	out := elems[:0]
	for i, e := range elems {
		if i > 0 && bytes.Equal(e.Encode(), elems[i-1].Encode()) {
			continue
		}
		out = append(out, e)
	}
	return out
}
