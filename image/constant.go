package image

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

func init() {
	plugraph.RegisterNodeType("image.Constant", NewConstant)
	plugraph.RegisterNodeType("image.Offset", NewOffset)
	plugraph.RegisterNodeType("image.Crop", NewCrop)
}

// ChannelNames of the images produced by Constant.
var rgba = []string{"R", "G", "B", "A"}

// Constant produces an image of a single color filling its format.
type Constant struct {
	NodeBase
	FormatPlug *plugraph.ValuePlug[Format]
	// Color holds the R, G, B and A values.
	Color *plugraph.ValuePlug[[4]float32]
}

func NewConstant(name string) *Constant {
	n := &Constant{}
	n.InitImageNode(n, name)
	n.FormatPlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "format", plugraph.In, DefaultFormat)
	n.Color = plugraph.NewPlug(&n.NodeBase.NodeBase, "color", plugraph.In, [4]float32{0, 0, 0, 1})
	return n
}

func (n *Constant) Affects(p plugraph.Plug) []plugraph.Plug {
	switch p {
	case n.FormatPlug:
		return []plugraph.Plug{n.Out.FormatPlug, n.Out.DataWindowPlug}
	case n.Color:
		return []plugraph.Plug{n.Out.ChannelDataPlug}
	}
	return nil
}

func (n *Constant) ComputeFormat(ctx context.Context, ec *plugraph.Context, _ Plug) (Format, error) {
	return n.FormatPlug.Value(ctx, ec)
}

func (n *Constant) ComputeDataWindow(ctx context.Context, ec *plugraph.Context, _ Plug) (geom.Box2i, error) {
	f, err := n.FormatPlug.Value(ctx, ec)
	if err != nil {
		return geom.Box2i{}, err
	}
	return f.DisplayWindow, nil
}

func (n *Constant) ComputeChannelNames(context.Context, *plugraph.Context, Plug) ([]string, error) {
	return rgba, nil
}

func (n *Constant) ComputeMetadata(context.Context, *plugraph.Context, Plug) (plugraph.CompoundObject, error) {
	return nil, nil
}

func (n *Constant) ComputeChannelData(ctx context.Context, channel string, _ geom.V2i, ec *plugraph.Context, _ Plug) ([]float32, error) {
	i := slices.Index(rgba, channel)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchChannel, channel)
	}
	c, err := n.Color.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	tile := make([]float32, TileSize*TileSize)
	for j := range tile {
		tile[j] = c[i]
	}
	return tile, nil
}
