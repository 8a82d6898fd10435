package shm

import (
	"fmt"
)

// Default field names and capacity.
const (
	FieldInbound     = "inbound"
	FieldOutbound    = "outbound"
	DefaultFieldSize = 2048
)

// FieldSpec describes one fixed-capacity field of a segment.
type FieldSpec struct {
	Name string
	Size uint32
}

// Layout is the ordered list of fields of a segment. Fields are laid out back
// to back in order, so the segment size is the sum of the field sizes.
type Layout []FieldSpec

// DefaultLayout returns inbound and outbound fields of DefaultFieldSize bytes.
func DefaultLayout() Layout {
	return Layout{
		{Name: FieldInbound, Size: DefaultFieldSize},
		{Name: FieldOutbound, Size: DefaultFieldSize},
	}
}

// Size returns the number of bytes the layout occupies.
func (l Layout) Size() int {
	total := 0
	for _, f := range l {
		total += int(f.Size)
	}
	return total
}

// Verify checks that the layout has at least one field, that names are
// unique and non-empty, and that every field can hold one byte plus its
// terminator.
func (l Layout) Verify() error {
	if len(l) == 0 {
		return fmt.Errorf("shm: layout has no fields")
	}
	seen := make(map[string]struct{}, len(l))
	for _, f := range l {
		if f.Name == "" {
			return fmt.Errorf("shm: layout field without a name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("shm: duplicate layout field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Size < 2 {
			return fmt.Errorf("shm: layout field %q size %d is smaller than 2", f.Name, f.Size)
		}
	}
	return nil
}

// Carve splits mem into the layout's fields.
func (l Layout) Carve(mem []byte) (map[string]*Field, error) {
	if err := l.Verify(); err != nil {
		return nil, err
	}
	if len(mem) < l.Size() {
		return nil, fmt.Errorf("shm: %d bytes cannot hold a %d byte layout", len(mem), l.Size())
	}
	fields := make(map[string]*Field, len(l))
	offset := 0
	for _, f := range l {
		end := offset + int(f.Size)
		fields[f.Name] = &Field{
			name: f.Name,
			data: mem[offset:end:end],
		}
		offset = end
	}
	return fields, nil
}
