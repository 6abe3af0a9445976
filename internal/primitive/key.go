package primitive

import (
	"strconv"
	"strings"
)

// KeyBuilder assembles cache keys from shape parameters. Fields are
// length-delimited so (12,3) and (1,23) can never collide.
type KeyBuilder struct {
	b strings.Builder
}

func (k *KeyBuilder) AddString(s string) *KeyBuilder {
	k.b.WriteString(strconv.Itoa(len(s)))
	k.b.WriteByte(':')
	k.b.WriteString(s)
	k.b.WriteByte(';')
	return k
}

func (k *KeyBuilder) AddInt(v int) *KeyBuilder {
	k.b.WriteByte('i')
	k.b.WriteString(strconv.Itoa(v))
	k.b.WriteByte(';')
	return k
}

func (k *KeyBuilder) AddDims(dims []int) *KeyBuilder {
	k.b.WriteByte('d')
	for i, d := range dims {
		if i > 0 {
			k.b.WriteByte('x')
		}
		k.b.WriteString(strconv.Itoa(d))
	}
	k.b.WriteByte(';')
	return k
}

func (k *KeyBuilder) Key() string {
	return k.b.String()
}
