package layout

import (
	"go.bytecodealliance.org/wit"
)

// Field is the placement of one record field.
type Field struct {
	Name   string
	Offset uint32
	Size   uint32
	Align  uint32
}

// Info is the Canonical ABI size and alignment of a type. Records also
// carry their fields in declaration order.
type Info struct {
	Fields []Field
	Size   uint32
	Align  uint32
}

// Field returns the placement of a named record field.
func (i Info) Field(name string) (Field, bool) {
	for _, f := range i.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HandleSize is the size of resource handles and async futures: one i32 index.
const HandleSize = 4

// Calculator computes layouts, caching type definitions. Not safe for
// concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) typeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info
	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.record(kind)
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Option:
		info = c.option(kind)
	case *wit.Result:
		info = c.result(kind)
	case *wit.Tuple:
		info = c.tuple(kind)
	case *wit.Own, *wit.Borrow, *wit.Future:
		info = Info{Size: HandleSize, Align: HandleSize}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

func (c *Calculator) record(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fields := make([]Field, 0, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)
	for _, f := range r.Fields {
		fl := c.Calculate(f.Type)
		offset = AlignTo(offset, fl.Align)
		fields = append(fields, Field{Name: f.Name, Offset: offset, Size: fl.Size, Align: fl.Align})
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset += fl.Size
	}

	return Info{
		Size:   AlignTo(offset, maxAlign),
		Align:  maxAlign,
		Fields: fields,
	}
}

func (c *Calculator) option(o *wit.Option) Info {
	inner := c.Calculate(o.Type)
	align := max(inner.Align, 1)
	payload := AlignTo(1, align)
	return Info{Size: AlignTo(payload+inner.Size, align), Align: align}
}

func (c *Calculator) result(r *wit.Result) Info {
	var ok, failed Info
	ok.Align, failed.Align = 1, 1
	if r.OK != nil {
		ok = c.Calculate(r.OK)
	}
	if r.Err != nil {
		failed = c.Calculate(r.Err)
	}
	align := max(ok.Align, failed.Align)
	payload := AlignTo(1, align)
	return Info{Size: AlignTo(payload+max(ok.Size, failed.Size), align), Align: align}
}

func (c *Calculator) tuple(t *wit.Tuple) Info {
	if len(t.Types) == 0 {
		return Info{Size: 0, Align: 1}
	}
	maxAlign := uint32(1)
	offset := uint32(0)
	for _, typ := range t.Types {
		el := c.Calculate(typ)
		offset = AlignTo(offset, el.Align)
		maxAlign = max(maxAlign, el.Align)
		offset += el.Size
	}
	return Info{Size: AlignTo(offset, maxAlign), Align: maxAlign}
}

// AlignTo rounds offset up to a multiple of align, a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
