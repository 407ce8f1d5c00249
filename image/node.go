package image

import (
	"context"
	"fmt"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// Computer computes the values of an image node's output. ComputeChannelData is
// asked for one tile at a time.
type Computer interface {
	ComputeFormat(ctx context.Context, ec *plugraph.Context, out Plug) (Format, error)
	ComputeDataWindow(ctx context.Context, ec *plugraph.Context, out Plug) (geom.Box2i, error)
	ComputeChannelNames(ctx context.Context, ec *plugraph.Context, out Plug) ([]string, error)
	ComputeMetadata(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error)
	ComputeChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, out Plug) ([]float32, error)
}

// Nodes whose outputs cannot be hashed by plugraph.DefaultHash implement the
// hasher for that output. The preamble is already written to h when they are
// called.
type (
	FormatHasher interface {
		HashFormat(ctx context.Context, ec *plugraph.Context, out Plug, h *plugraph.Hasher) error
	}
	DataWindowHasher interface {
		HashDataWindow(ctx context.Context, ec *plugraph.Context, out Plug, h *plugraph.Hasher) error
	}
	ChannelDataHasher interface {
		HashChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, out Plug, h *plugraph.Hasher) error
	}
)

// ImageNode is implemented by nodes embedding NodeBase.
type ImageNode interface {
	plugraph.Node
	Computer
}

// NodeBase implements plugraph.Node and plugraph.NodeHasher for nodes producing
// an image on their Out plug. Embed it and call InitImageNode in the
// constructor, before creating any other plug.
type NodeBase struct {
	plugraph.NodeBase
	Out Plug

	self ImageNode
}

// InitImageNode initialises the node and creates its "out" image.
func (n *NodeBase) InitImageNode(self ImageNode, name string) {
	n.InitNode(self, name)
	n.self = self
	n.Out = NewPlug(&n.NodeBase, "out", plugraph.Out)
}

func (n *NodeBase) Compute(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (any, error) {
	out := n.Out
	switch output {
	case out.FormatPlug:
		return n.self.ComputeFormat(ctx, ec, out)
	case out.DataWindowPlug:
		return n.self.ComputeDataWindow(ctx, ec, out)
	case out.ChannelNamesPlug:
		return n.self.ComputeChannelNames(ctx, ec, out)
	case out.MetadataPlug:
		return n.self.ComputeMetadata(ctx, ec, out)
	case out.ChannelDataPlug:
		channel, origin, err := tileOf(ec)
		if err != nil {
			return nil, err
		}
		return n.self.ComputeChannelData(ctx, channel, origin, ec, out)
	}
	return nil, fmt.Errorf("image: %s is not an output of %s", output.FullName(), n.Name())
}

// Hash uses the node's FormatHasher, DataWindowHasher or ChannelDataHasher
// when it has one for output, and plugraph.DefaultHash otherwise.
func (n *NodeBase) Hash(ctx context.Context, output plugraph.Plug, ec *plugraph.Context, h *plugraph.Hasher) error {
	out := n.Out
	switch output {
	case out.FormatPlug:
		if x, ok := n.self.(FormatHasher); ok {
			plugraph.AppendPreamble(h, output, ec)
			return x.HashFormat(ctx, ec, out, h)
		}
	case out.DataWindowPlug:
		if x, ok := n.self.(DataWindowHasher); ok {
			plugraph.AppendPreamble(h, output, ec)
			return x.HashDataWindow(ctx, ec, out, h)
		}
	case out.ChannelDataPlug:
		if x, ok := n.self.(ChannelDataHasher); ok {
			channel, origin, err := tileOf(ec)
			if err != nil {
				return err
			}
			plugraph.AppendPreamble(h, output, ec)
			return x.HashChannelData(ctx, channel, origin, ec, out, h)
		}
	}
	return plugraph.DefaultHash(ctx, output, ec, h)
}

func tileOf(ec *plugraph.Context) (string, geom.V2i, error) {
	channel, err := plugraph.ContextValue[string](ec, ChannelNameKey)
	if err != nil {
		return "", geom.V2i{}, err
	}
	origin, err := plugraph.ContextValue[geom.V2i](ec, TileOriginKey)
	if err != nil {
		return "", geom.V2i{}, err
	}
	if origin != TileOrigin(origin) {
		return "", geom.V2i{}, fmt.Errorf("image: tile origin %v is not a multiple of %d", origin, TileSize)
	}
	return channel, origin, nil
}

// Processor is the base of nodes transforming the image on their In plug. When
// Enabled is false, every output passes the corresponding input through
// unchanged, sharing its hash.
//
// By default every output is computed from the same input under the same
// context; embedders override the Compute methods for the outputs they change.
type Processor struct {
	NodeBase
	In      Plug
	Enabled *plugraph.ValuePlug[bool]
}

// InitProcessor initialises the node and creates its "in" image and "enabled"
// plug.
func (n *Processor) InitProcessor(self ImageNode, name string) {
	n.InitImageNode(self, name)
	n.In = NewPlug(&n.NodeBase.NodeBase, "in", plugraph.In)
	n.Enabled = plugraph.NewPlug(&n.NodeBase.NodeBase, "enabled", plugraph.In, true)
}

func (n *Processor) Affects(p plugraph.Plug) []plugraph.Plug {
	if p == n.Enabled {
		return n.Out.Children()
	}
	if x := n.Out.Corresponding(n.In, p); x != nil {
		return []plugraph.Plug{x}
	}
	return nil
}

// passThrough returns the input output is copied from, or nil when the node is
// enabled.
func (n *Processor) passThrough(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (plugraph.Plug, error) {
	in := n.In.Corresponding(n.Out, output)
	if in == nil {
		return nil, nil
	}
	enabled, err := n.Enabled.Value(ctx, ec)
	if err != nil || enabled {
		return nil, err
	}
	return in, nil
}

func (n *Processor) Hash(ctx context.Context, output plugraph.Plug, ec *plugraph.Context, h *plugraph.Hasher) error {
	in, err := n.passThrough(ctx, output, ec)
	if err != nil {
		return err
	}
	if in == nil {
		return n.NodeBase.Hash(ctx, output, ec, h)
	}
	x, err := n.Graph().HashOf(ctx, in, ec)
	if err != nil {
		return err
	}
	h.Assign(x)
	return nil
}

func (n *Processor) Compute(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (any, error) {
	in, err := n.passThrough(ctx, output, ec)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return n.NodeBase.Compute(ctx, output, ec)
	}
	return n.Graph().Evaluate(ctx, in, ec)
}

func (n *Processor) ComputeFormat(ctx context.Context, ec *plugraph.Context, out Plug) (Format, error) {
	return n.In.FormatPlug.Value(ctx, ec)
}

func (n *Processor) ComputeDataWindow(ctx context.Context, ec *plugraph.Context, out Plug) (geom.Box2i, error) {
	return n.In.DataWindowPlug.Value(ctx, ec)
}

func (n *Processor) ComputeChannelNames(ctx context.Context, ec *plugraph.Context, out Plug) ([]string, error) {
	return n.In.ChannelNamesPlug.Value(ctx, ec)
}

func (n *Processor) ComputeMetadata(ctx context.Context, ec *plugraph.Context, out Plug) (plugraph.CompoundObject, error) {
	return n.In.MetadataPlug.Value(ctx, ec)
}

func (n *Processor) ComputeChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, out Plug) ([]float32, error) {
	return n.In.ChannelDataPlug.Value(ctx, ec)
}
