package archive

import (
	"fmt"

	"github.com/jchantrell/gmdata/internal/iff"
)

const objectSize = 80

// Shape is an object's physics collision shape.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeBox
	ShapeCustom
)

func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "CIRCLE"
	case ShapeBox:
		return "BOX"
	case ShapeCustom:
		return "CUSTOM"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// ObjectResource is a game object definition from OBJT.
type ObjectResource struct {
	span

	Name        string
	SpriteIndex int
	Visible     bool
	Solid       bool
	Depth       int
	Persistent  bool
	ParentIndex int
	MaskIndex   int
	Physics     bool
	Sensor      bool
	Shape       Shape

	Density        float32
	Restitution    float32
	Group          float32
	LinearDamping  float32
	AngularDamping float32
	Unknown64      float32
	Friction       float32
	Unknown72      float32
	Kinematic      float32

	sprite *SpriteResource
	a      *Archive
}

func (o *ObjectResource) Kind() Kind { return KindObject }

// Sprite returns the object's sprite, or nil when it has none.
func (o *ObjectResource) Sprite() *SpriteResource { return o.sprite }

// Parent returns the object this one inherits from, or nil.
func (o *ObjectResource) Parent() (*ObjectResource, error) {
	if o.ParentIndex < 0 {
		return nil, nil
	}
	if o.ParentIndex >= len(o.a.objects) {
		return nil, iff.Errorf(iff.KindDanglingReference, "object %s parent index %d of %d", o.Name, o.ParentIndex, len(o.a.objects))
	}
	return o.a.objects[o.ParentIndex], nil
}

// Ancestors walks the parent chain, nearest first. A chain that revisits an
// object fails instead of looping.
func (o *ObjectResource) Ancestors() ([]*ObjectResource, error) {
	seen := map[*ObjectResource]bool{o: true}
	var out []*ObjectResource
	for cur := o; ; {
		p, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		if p == nil {
			return out, nil
		}
		if seen[p] {
			return nil, iff.Errorf(iff.KindInvariantViolation, "object %s has a parent cycle through %s", o.Name, p.Name)
		}
		seen[p] = true
		out = append(out, p)
		cur = p
	}
}

func (o *ObjectResource) String() string {
	sprite := "<none>"
	if o.sprite != nil {
		sprite = o.sprite.Name
	}
	return fmt.Sprintf("ObjectResource [name=%s, sprite=%s, parent=%d, depth=%d, shape=%s]",
		o.Name, sprite, o.ParentIndex, o.Depth, o.Shape)
}

func (a *Archive) decodeObjects(c *iff.Chunk) error {
	ptrs, err := readPointers(c, 0)
	if err != nil {
		return err
	}

	a.objects = make([]*ObjectResource, 0, len(ptrs))
	a.objectByName = make(map[string]*ObjectResource, len(ptrs))
	for i, ptr := range ptrs {
		off, err := entryOffset(c, ptr)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		o, err := a.decodeObject(c, off)
		if err != nil {
			return fmt.Errorf("object %d at 0x%08x: %w", i, ptr, err)
		}
		a.objects = append(a.objects, o)
		a.objectByName[o.Name] = o
		a.register(ptr, o)
	}
	return nil
}

func (a *Archive) decodeObject(c *iff.Chunk, off int) (*ObjectResource, error) {
	s, err := newSpan(c, off, objectSize)
	if err != nil {
		return nil, err
	}

	cur := c.Cursor(off)
	namePtr := int64(cur.Uint32())
	o := &ObjectResource{
		span:        s,
		SpriteIndex: int(cur.Int32()),
		Visible:     cur.Bool(),
		Solid:       cur.Bool(),
		Depth:       int(cur.Int32()),
		Persistent:  cur.Bool(),
		ParentIndex: int(cur.Int32()),
		MaskIndex:   int(cur.Int32()),
		Physics:     cur.Bool(),
		Sensor:      cur.Bool(),
		Shape:       Shape(cur.Int32()),
		a:           a,
	}
	o.Density = cur.Float32()
	o.Restitution = cur.Float32()
	o.Group = cur.Float32()
	o.LinearDamping = cur.Float32()
	o.AngularDamping = cur.Float32()
	o.Unknown64 = cur.Float32()
	o.Friction = cur.Float32()
	o.Unknown72 = cur.Float32()
	o.Kinematic = cur.Float32()
	if err := cur.Err(); err != nil {
		return nil, err
	}

	if o.Shape < ShapeCircle || o.Shape > ShapeCustom {
		return nil, iff.Errorf(iff.KindInvariantViolation, "collision shape %d", int(o.Shape))
	}
	if o.Name, err = a.stringAt(namePtr); err != nil {
		return nil, fmt.Errorf("object name: %w", err)
	}
	if o.SpriteIndex >= 0 {
		if o.SpriteIndex >= len(a.sprites) {
			return nil, iff.Errorf(iff.KindDanglingReference, "object %s sprite index %d of %d", o.Name, o.SpriteIndex, len(a.sprites))
		}
		o.sprite = a.sprites[o.SpriteIndex]
	}
	return o, nil
}
