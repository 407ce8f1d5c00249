package image

import (
	"context"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// Offset translates its input by a whole number of pixels.
type Offset struct {
	Processor
	OffsetPlug *plugraph.ValuePlug[geom.V2i]
}

func NewOffset(name string) *Offset {
	n := &Offset{}
	n.InitProcessor(n, name)
	n.OffsetPlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "offset", plugraph.In, geom.V2i{})
	connectPassThrough(n.Out.FormatPlug, n.In.FormatPlug)
	connectPassThrough(n.Out.ChannelNamesPlug, n.In.ChannelNamesPlug)
	connectPassThrough(n.Out.MetadataPlug, n.In.MetadataPlug)
	return n
}

// connectPassThrough connects an output of a node under construction to one of
// its inputs.
func connectPassThrough[T any](dst, src *plugraph.ValuePlug[T]) {
	if err := dst.SetInput(src); err != nil {
		panic(err)
	}
}

func (n *Offset) Affects(p plugraph.Plug) []plugraph.Plug {
	switch p {
	case n.OffsetPlug:
		return []plugraph.Plug{n.Out.DataWindowPlug, n.Out.ChannelDataPlug}
	case n.In.DataWindowPlug:
		return []plugraph.Plug{n.Out.DataWindowPlug, n.Out.ChannelDataPlug}
	}
	return n.Processor.Affects(p)
}

func (n *Offset) ComputeDataWindow(ctx context.Context, ec *plugraph.Context, _ Plug) (geom.Box2i, error) {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return geom.Box2i{}, err
	}
	return s.window.Offset(s.offset), nil
}

func (n *Offset) ComputeChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, _ Plug) ([]float32, error) {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return nil, err
	}
	return s.tile(ctx, ec, channel, tileOrigin)
}

func (n *Offset) HashChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, _ Plug, h *plugraph.Hasher) error {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return err
	}
	return s.hash(ctx, ec, channel, tileOrigin, h)
}

func (n *Offset) shift(ctx context.Context, ec *plugraph.Context) (shift, error) {
	offset, err := n.OffsetPlug.Value(ctx, ec)
	if err != nil {
		return shift{}, err
	}
	dw, err := n.In.DataWindow(ctx, ec)
	if err != nil {
		return shift{}, err
	}
	return shift{in: n.In, window: dw, offset: offset}, nil
}

// shift describes channel data made of the pixels of in inside window, moved by
// offset. Pixels of the output tile with no source pixel are zero.
type shift struct {
	in     Plug
	window geom.Box2i
	offset geom.V2i
}

// source returns the input pixels landing in the output tile at origin.
func (s shift) source(origin geom.V2i) geom.Box2i {
	return geom.Intersection(TileBound(origin).Offset(s.offset.Neg()), s.window)
}

func (s shift) tile(ctx context.Context, ec *plugraph.Context, channel string, origin geom.V2i) ([]float32, error) {
	out := make([]float32, TileSize*TileSize)
	src := s.source(origin)
	for o := range TileOrigins(src) {
		in, err := s.in.ChannelData(ctx, ec, channel, o)
		if err != nil {
			return nil, err
		}
		r := geom.Intersection(src, TileBound(o))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				p := geom.V2i{X: x, Y: y}
				out[pixelIndex(origin, p.Add(s.offset))] = in[pixelIndex(o, p)]
			}
		}
	}
	return out, nil
}

func (s shift) hash(ctx context.Context, ec *plugraph.Context, channel string, origin geom.V2i, h *plugraph.Hasher) error {
	src := s.source(origin)
	if err := h.WriteValue(src); err != nil {
		return err
	}
	if err := h.WriteValue(s.offset); err != nil {
		return err
	}
	for o := range TileOrigins(src) {
		x, err := s.in.ChannelDataHash(ctx, ec, channel, o)
		if err != nil {
			return err
		}
		h.WriteHash(x)
	}
	return nil
}
