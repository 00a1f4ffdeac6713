package pagetoken

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2s"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/ordering"
	"github.com/zjrosen/aipq/internal/value"
)

// ErrNoCursor is returned when a record cannot anchor a keyset cursor.
var ErrNoCursor = errors.New("record cannot anchor a keyset cursor")

// Fingerprint hashes the canonical filter text, the canonical ordering text
// and any extra request parts. Tokens only apply to requests with the same
// fingerprint.
func Fingerprint(f *filter.Filter, o ordering.Ordering, extra ...string) []byte {
	parts := append([]string{f.String(), o.String()}, extra...)

	var buf []byte
	for _, p := range parts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	sum := blake2s.Sum256(buf)
	return sum[:]
}

// KeysetCursor builds the filter selecting r and everything after it under o.
// For terms t1..tn with values v1..vn of r the result is
//
//	t1 > v1 OR (t1 = v1 AND (t2 > v2 OR (... AND tn >= vn)))
//
// with > flipped to < for descending terms. The last term should be unique,
// otherwise ties across the page boundary repeat.
func KeysetCursor(o ordering.Ordering, r filter.FieldResolver) (*filter.Filter, error) {
	if len(o) == 0 {
		return nil, fmt.Errorf("%w: empty ordering", ErrNoCursor)
	}
	values := make([]*filter.Literal, len(o))
	for i, t := range o {
		v, ok := r.Resolve(t.Name)
		if !ok || v.IsNull() {
			return nil, fmt.Errorf("%w: %s is absent", ErrNoCursor, t.Name)
		}
		if v.Kind() == value.KindRepeated {
			return nil, fmt.Errorf("%w: %s is repeated", ErrNoCursor, t.Name)
		}
		values[i] = &filter.Literal{Value: v}
	}
	return &filter.Filter{Root: keyset(o, values, 0)}, nil
}

func keyset(o ordering.Ordering, values []*filter.Literal, i int) filter.Expr {
	t := o[i]
	name := &filter.Name{Path: t.Name}
	if i == len(o)-1 {
		op := filter.ComparatorGte
		if t.Direction == ordering.Descending {
			op = filter.ComparatorLte
		}
		return &filter.Restriction{Comparable: name, Comparator: op, Arg: values[i]}
	}

	op := filter.ComparatorGt
	if t.Direction == ordering.Descending {
		op = filter.ComparatorLt
	}
	tie := &filter.Conjunction{Terms: []filter.Expr{
		&filter.Restriction{Comparable: name, Comparator: filter.ComparatorEq, Arg: values[i]},
		keyset(o, values, i+1),
	}}
	return &filter.Disjunction{Terms: []filter.Expr{
		&filter.Restriction{Comparable: name, Comparator: op, Arg: values[i]},
		&filter.Composite{Expr: tie},
	}}
}
