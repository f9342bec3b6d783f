package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a byte count written in config as "1Mi", "512KB", "1 MiB"
// or a plain number. Suffixes ending in i/iB are binary, the rest decimal.
type ByteSize uint64

// Binary units, used for defaults.
const (
	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
)

// ParseByteSize parses s with humanize.ParseBytes.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// MarshalText writes the largest binary unit that divides b exactly, so
// a saved config loads back to the same value.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size   ByteSize
		suffix string
	}{{GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"}} {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.suffix), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String renders b for humans, e.g. "1.0 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Int64 returns b as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
