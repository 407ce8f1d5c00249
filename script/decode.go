package script

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
	"github.com/go-plugraph/plugraph/image"
)

var (
	v2iType    = reflect.TypeFor[geom.V2i]()
	v3fType    = reflect.TypeFor[geom.V3f]()
	box2iType  = reflect.TypeFor[geom.Box2i]()
	m44fType   = reflect.TypeFor[geom.M44f]()
	formatType = reflect.TypeFor[image.Format]()
)

// decoder converts script values to plug values.
type decoder struct {
	// version of the release that wrote the script.
	version image.Version
}

// decode converts v to a value of type t. Vectors and boxes are written as lists
// of numbers, matrices as an object with optional translate and scale vectors,
// and formats either by registered name or as an object with a display_window
// and an optional pixel_aspect.
func (d decoder) decode(v cty.Value, t reflect.Type) (reflect.Value, error) {
	if v.IsNull() {
		return reflect.Zero(t), nil
	}
	if !v.IsWhollyKnown() {
		return reflect.Value{}, errors.New("value is not known")
	}

	switch t {
	case v2iType:
		n, err := numbers(v, 2)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(geom.V2i{X: int(n[0]), Y: int(n[1])}), nil
	case v3fType:
		n, err := numbers(v, 3)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(geom.V3f{X: float32(n[0]), Y: float32(n[1]), Z: float32(n[2])}), nil
	case box2iType:
		n, err := numbers(v, 4)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(geom.NewBox2i(int(n[0]), int(n[1]), int(n[2]), int(n[3]))), nil
	case m44fType:
		m, err := d.matrix(v)
		return reflect.ValueOf(m), err
	case formatType:
		f, err := d.format(v)
		return reflect.ValueOf(f), err
	}

	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() > 0 {
			return reflect.Value{}, fmt.Errorf("cannot set values of type %s from a script", t)
		}
		x, err := native(v)
		if err != nil || x == nil {
			return reflect.Zero(t), err
		}
		return reflect.ValueOf(x), nil
	case reflect.Array, reflect.Slice:
		if !v.CanIterateElements() || v.Type().IsMapType() || v.Type().IsObjectType() {
			return reflect.Value{}, fmt.Errorf("want a list, got %s", v.Type().FriendlyName())
		}
		n := v.LengthInt()
		var out reflect.Value
		if t.Kind() == reflect.Array {
			if n != t.Len() {
				return reflect.Value{}, fmt.Errorf("want %d elements, got %d", t.Len(), n)
			}
			out = reflect.New(t).Elem()
		} else {
			out = reflect.MakeSlice(t, n, n)
		}
		it := v.ElementIterator()
		for i := 0; it.Next(); i++ {
			_, e := it.Element()
			x, err := d.decode(e, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(x)
		}
		return out, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot set values of type %s from a script", t)
		}
		if !v.Type().IsMapType() && !v.Type().IsObjectType() {
			return reflect.Value{}, fmt.Errorf("want an object, got %s", v.Type().FriendlyName())
		}
		elems := v.AsValueMap()
		out := reflect.MakeMapWithSize(t, len(elems))
		for k, e := range elems {
			x, err := d.decode(e, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), x)
		}
		return out, nil
	}

	// primitives, including named ones such as image.AreaSource.
	ity, err := gocty.ImpliedType(reflect.Zero(t).Interface())
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot set values of type %s from a script: %w", t, err)
	}
	converted, err := convert.Convert(v, ity)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s: %w", v.Type().FriendlyName(), t, err)
	}
	out := reflect.New(t)
	if err := gocty.FromCtyValue(converted, out.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}

func (d decoder) matrix(v cty.Value) (geom.M44f, error) {
	if !v.Type().IsObjectType() {
		return geom.M44f{}, fmt.Errorf("want an object with translate and scale, got %s", v.Type().FriendlyName())
	}
	m := geom.Identity()
	attrs := v.AsValueMap()
	if s, ok := attrs["scale"]; ok {
		n, err := numbers(s, 3)
		if err != nil {
			return geom.M44f{}, fmt.Errorf("scale: %w", err)
		}
		m = m.Mul(geom.Scale(geom.V3f{X: float32(n[0]), Y: float32(n[1]), Z: float32(n[2])}))
	}
	if t, ok := attrs["translate"]; ok {
		n, err := numbers(t, 3)
		if err != nil {
			return geom.M44f{}, fmt.Errorf("translate: %w", err)
		}
		m = m.Mul(geom.Translate(geom.V3f{X: float32(n[0]), Y: float32(n[1]), Z: float32(n[2])}))
	}
	for k := range attrs {
		if k != "scale" && k != "translate" {
			return geom.M44f{}, fmt.Errorf("unsupported transform attribute %q", k)
		}
	}
	return m, nil
}

func (d decoder) format(v cty.Value) (image.Format, error) {
	if v.Type() == cty.String {
		f, ok := image.FormatByName(v.AsString())
		if !ok {
			return image.Format{}, fmt.Errorf("unknown format %q", v.AsString())
		}
		return f, nil
	}
	if !v.Type().IsObjectType() {
		return image.Format{}, fmt.Errorf("want a format name or object, got %s", v.Type().FriendlyName())
	}
	attrs := v.AsValueMap()
	w, ok := attrs["display_window"]
	if !ok {
		return image.Format{}, errors.New("format: missing display_window")
	}
	n, err := numbers(w, 4)
	if err != nil {
		return image.Format{}, fmt.Errorf("display_window: %w", err)
	}
	f := image.Format{DisplayWindow: geom.NewBox2i(int(n[0]), int(n[1]), int(n[2]), int(n[3])), PixelAspect: 1}
	if a, ok := attrs["pixel_aspect"]; ok {
		if err := gocty.FromCtyValue(a, &f.PixelAspect); err != nil {
			return image.Format{}, fmt.Errorf("pixel_aspect: %w", err)
		}
	}
	return image.ConvertLegacyFormat(f, d.version), nil
}

// numbers returns the n numbers of the list or tuple v.
func numbers(v cty.Value, n int) ([]float64, error) {
	if !v.Type().IsListType() && !v.Type().IsTupleType() {
		return nil, fmt.Errorf("want a list of %d numbers, got %s", n, v.Type().FriendlyName())
	}
	if v.LengthInt() != n {
		return nil, fmt.Errorf("want a list of %d numbers, got %d elements", n, v.LengthInt())
	}
	out := make([]float64, 0, n)
	it := v.ElementIterator()
	for it.Next() {
		_, e := it.Element()
		var f float64
		if err := gocty.FromCtyValue(e, &f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// native converts v to its most natural Go counterpart: numbers become float64,
// lists []any and objects plugraph.CompoundObject.
func native(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		list := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, e := it.Element()
			x, err := native(e)
			if err != nil {
				return nil, err
			}
			list = append(list, x)
		}
		return list, nil
	case ty.IsObjectType() || ty.IsMapType():
		elems := v.AsValueMap()
		o := make(plugraph.CompoundObject, len(elems))
		for k, e := range elems {
			x, err := native(e)
			if err != nil {
				return nil, err
			}
			o[k] = x
		}
		return o, nil
	}
	return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
}
