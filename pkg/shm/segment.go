package shm

import (
	"context"
	"fmt"

	internalshm "github.com/srediag/sumipc/internal/shm"
)

var (
	// ErrNoSpace is returned by Create when /dev/shm cannot hold the segment.
	ErrNoSpace = internalshm.ErrNoSpace
	// ErrLayoutMismatch is returned by Open when the object size differs from the layout size.
	ErrLayoutMismatch = internalshm.ErrSizeMismatch
	// ErrInvalidName is returned for names not of the form "/name".
	ErrInvalidName = internalshm.ErrInvalidName
)

// Options identifies a segment and its layout. A nil Layout means DefaultLayout().
type Options struct {
	Name   string
	Layout Layout
}

func (o Options) layout() Layout {
	if o.Layout == nil {
		return DefaultLayout()
	}
	return o.Layout
}

// Segment is one process's mapping of a named shared memory segment.
type Segment struct {
	region *internalshm.MappedRegion
	layout Layout
	fields map[string]*Field
}

// Create makes a new segment under name, sized to exactly the layout size and
// zero filled. It fails if the name already exists.
func Create(ctx context.Context, opts Options) (*Segment, error) {
	return mapSegment(ctx, opts, true)
}

// Open maps an existing segment. It never creates one, and fails when the
// object size differs from the layout size.
func Open(ctx context.Context, opts Options) (*Segment, error) {
	return mapSegment(ctx, opts, false)
}

func mapSegment(ctx context.Context, opts Options, create bool) (*Segment, error) {
	layout := opts.layout()
	if err := layout.Verify(); err != nil {
		return nil, err
	}
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name:   opts.Name,
		Size:   layout.Size(),
		Create: create,
	})
	if err != nil {
		return nil, fmt.Errorf("shm: map segment %s: %w", opts.Name, err)
	}
	fields, err := layout.Carve(region.Addr)
	if err != nil {
		_ = internalshm.UnmapRegion(ctx, region)
		if create {
			_ = internalshm.UnlinkRegion(opts.Name)
		}
		return nil, err
	}
	return &Segment{
		region: region,
		layout: layout,
		fields: fields,
	}, nil
}

// Name returns the segment's object name.
func (s *Segment) Name() string {
	return s.region.Name
}

// Size returns the mapped size in bytes.
func (s *Segment) Size() int {
	return s.region.Size
}

// Layout returns the segment layout.
func (s *Segment) Layout() Layout {
	return s.layout
}

// Field returns the named field, or nil when the layout has no such field.
func (s *Segment) Field(name string) *Field {
	return s.fields[name]
}

// Inbound returns the controller to worker field.
func (s *Segment) Inbound() *Field {
	return s.fields[FieldInbound]
}

// Outbound returns the worker to controller field.
func (s *Segment) Outbound() *Field {
	return s.fields[FieldOutbound]
}

// Close unmaps the segment and closes the handle. The name stays until Unlink.
func (s *Segment) Close() error {
	if s == nil || s.region == nil {
		return nil
	}
	for _, f := range s.fields {
		f.data = nil
	}
	return internalshm.UnmapRegion(context.Background(), s.region)
}

// Unlink removes the segment name from the system. Only the creator calls it,
// after the peer has exited.
func Unlink(name string) error {
	return internalshm.UnlinkRegion(name)
}
