// Package image evaluates tiled images with plugraph.
//
// An image is described by global values (its format, data window, channel
// names and metadata) and by per-channel pixel data, computed in tiles of
// TileSize x TileSize pixels. A tile is requested by evaluating the channel data
// plug under a context naming the channel and the tile origin (see
// TileContext), so that nodes only compute the tiles somebody asks for.
//
// Nodes producing images embed NodeBase and implement Computer; nodes
// transforming an input image embed Processor.
package image

import (
	"context"
	"errors"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// ErrNoSuchChannel is returned when querying channel data for a channel the
// image does not have.
var ErrNoSuchChannel = errors.New("image: no such channel")

// Plug gathers the plugs making up an image. It is created with NewPlug and used
// by value.
type Plug struct {
	FormatPlug       *plugraph.ValuePlug[Format]
	DataWindowPlug   *plugraph.ValuePlug[geom.Box2i]
	ChannelNamesPlug *plugraph.ValuePlug[[]string]
	MetadataPlug     *plugraph.ValuePlug[plugraph.CompoundObject]
	// ChannelDataPlug holds one tile of one channel, as TileSize*TileSize
	// values in row-major order.
	ChannelDataPlug *plugraph.ValuePlug[[]float32]
}

// NewPlug creates the plugs of an image on the node embedding b, named after
// name, e.g. "out.format".
func NewPlug(b *plugraph.NodeBase, name string, dir plugraph.Direction) Plug {
	return Plug{
		FormatPlug:       plugraph.NewPlug(b, name+".format", dir, DefaultFormat),
		DataWindowPlug:   plugraph.NewPlug(b, name+".dataWindow", dir, geom.Box2i{}),
		ChannelNamesPlug: plugraph.NewPlug[[]string](b, name+".channelNames", dir, nil),
		MetadataPlug:     plugraph.NewPlug[plugraph.CompoundObject](b, name+".metadata", dir, nil),
		ChannelDataPlug:  plugraph.NewPlug[[]float32](b, name+".channelData", dir, nil),
	}
}

// Children returns the plugs of the image, in creation order.
func (p Plug) Children() []plugraph.Plug {
	return []plugraph.Plug{p.FormatPlug, p.DataWindowPlug, p.ChannelNamesPlug, p.MetadataPlug, p.ChannelDataPlug}
}

// Contains reports whether x is one of the plugs of the image.
func (p Plug) Contains(x plugraph.Plug) bool {
	return p.Corresponding(p, x) != nil
}

// Corresponding returns the plug of p playing the same role as x does in o, or
// nil if x is not part of o.
func (p Plug) Corresponding(o Plug, x plugraph.Plug) plugraph.Plug {
	mine := p.Children()
	for i, c := range o.Children() {
		if c == x {
			return mine[i]
		}
	}
	return nil
}

// Connect makes every plug of p receive its value from the same plug of src.
func (p Plug) Connect(w plugraph.Writer, src Plug) error {
	theirs := src.Children()
	for i, c := range p.Children() {
		if err := w.Connect(c, theirs[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetInput connects src to p in a single edit. Nodes that are not part of a
// graph yet are connected directly.
func (p Plug) SetInput(src Plug) error {
	n, _ := p.FormatPlug.Node().(interface{ Graph() *plugraph.Graph })
	if n == nil || n.Graph() == nil {
		theirs := src.Children()
		for i, c := range p.Children() {
			if err := c.(interface{ SetInput(plugraph.Plug) error }).SetInput(theirs[i]); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := n.Graph().Apply(context.Background(), func(ctx context.Context, w plugraph.Writer) error {
		return p.Connect(w, src)
	})
	return err
}

func (p Plug) Format(ctx context.Context, ec *plugraph.Context) (Format, error) {
	return p.FormatPlug.Value(ctx, GlobalContext(ec))
}

// DataWindow returns the region holding pixel data. It may extend beyond the
// display window of the format, or cover only part of it.
func (p Plug) DataWindow(ctx context.Context, ec *plugraph.Context) (geom.Box2i, error) {
	return p.DataWindowPlug.Value(ctx, GlobalContext(ec))
}

func (p Plug) ChannelNames(ctx context.Context, ec *plugraph.Context) ([]string, error) {
	return p.ChannelNamesPlug.Value(ctx, GlobalContext(ec))
}

func (p Plug) Metadata(ctx context.Context, ec *plugraph.Context) (plugraph.CompoundObject, error) {
	return p.MetadataPlug.Value(ctx, GlobalContext(ec))
}

// ChannelData returns the tile of channel at tileOrigin, which must be a
// multiple of TileSize.
func (p Plug) ChannelData(ctx context.Context, ec *plugraph.Context, channel string, tileOrigin geom.V2i) ([]float32, error) {
	return p.ChannelDataPlug.Value(ctx, TileContext(ec, channel, tileOrigin))
}

// ChannelDataHash returns the hash of the tile ChannelData would return.
func (p Plug) ChannelDataHash(ctx context.Context, ec *plugraph.Context, channel string, tileOrigin geom.V2i) (plugraph.Hash, error) {
	return p.ChannelDataPlug.Hash(ctx, TileContext(ec, channel, tileOrigin))
}

// Sample returns the value of channel at pixel pos. Pixels outside the data
// window are zero.
func (p Plug) Sample(ctx context.Context, ec *plugraph.Context, channel string, pos geom.V2i) (float32, error) {
	dw, err := p.DataWindow(ctx, ec)
	if err != nil {
		return 0, err
	}
	if !dw.Contains(pos) {
		return 0, nil
	}
	origin := TileOrigin(pos)
	tile, err := p.ChannelData(ctx, ec, channel, origin)
	if err != nil {
		return 0, err
	}
	return tile[pixelIndex(origin, pos)], nil
}

// Pixels returns every pixel of channel inside the data window, in row-major
// order. Tiles are fetched in parallel.
func (p Plug) Pixels(ctx context.Context, ec *plugraph.Context, channel string) ([]float32, error) {
	dw, err := p.DataWindow(ctx, ec)
	if err != nil {
		return nil, err
	}
	size := dw.Size()
	pixels := make([]float32, size.X*size.Y)
	err = ParallelTiles(ctx, p, ec, []string{channel}, func(ctx context.Context, channel string, origin geom.V2i) error {
		tile, err := p.ChannelData(ctx, ec, channel, origin)
		if err != nil {
			return err
		}
		// every tile writes a distinct region of pixels.
		r := geom.Intersection(dw, TileBound(origin))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				pixels[(y-dw.Min.Y)*size.X+(x-dw.Min.X)] = tile[pixelIndex(origin, geom.V2i{X: x, Y: y})]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pixels, nil
}
