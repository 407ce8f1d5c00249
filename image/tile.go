package image

import (
	"context"
	"iter"
	"runtime"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
	"golang.org/x/sync/errgroup"
)

// TileSize is the width and height of the tiles channel data is computed in.
const TileSize = 64

// Context variables naming the channel data being queried.
const (
	ChannelNameKey = "image:channelName"
	TileOriginKey  = "image:tileOrigin"
)

// TileOrigin returns the origin of the tile containing the pixel p.
func TileOrigin(p geom.V2i) geom.V2i {
	return geom.V2i{X: floorMultiple(p.X), Y: floorMultiple(p.Y)}
}

func floorMultiple(x int) int {
	if x < 0 {
		return -((-x + TileSize - 1) / TileSize * TileSize)
	}
	return x / TileSize * TileSize
}

// TileBound returns the pixels covered by the tile at origin.
func TileBound(origin geom.V2i) geom.Box2i {
	return geom.Box2i{Min: origin, Max: origin.Add(geom.V2i{X: TileSize, Y: TileSize})}
}

// TileOrigins iterates over the origins of the tiles overlapping b, row by row.
func TileOrigins(b geom.Box2i) iter.Seq[geom.V2i] {
	return func(yield func(geom.V2i) bool) {
		if b.IsEmpty() {
			return
		}
		lo := TileOrigin(b.Min)
		hi := b.Max.Sub(geom.V2i{X: 1, Y: 1})
		for y := lo.Y; y <= hi.Y; y += TileSize {
			for x := lo.X; x <= hi.X; x += TileSize {
				if !yield(geom.V2i{X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// pixelIndex returns the index of the pixel p within the tile at origin.
func pixelIndex(origin, p geom.V2i) int {
	return (p.Y-origin.Y)*TileSize + (p.X - origin.X)
}

// GlobalContext returns ec without the variables naming channel data. Queries
// of the global outputs (format, data window, channel names and metadata) use
// it, so that they are cached once rather than once per tile.
func GlobalContext(ec *plugraph.Context) *plugraph.Context {
	return ec.Without(ChannelNameKey, TileOriginKey)
}

// TileContext returns ec naming the given channel and tile.
func TileContext(ec *plugraph.Context, channel string, tileOrigin geom.V2i) *plugraph.Context {
	return ec.With(ChannelNameKey, channel).With(TileOriginKey, tileOrigin)
}

// ParallelTiles calls fn concurrently for every tile of the image's data window
// and every channel in channels. The first error cancels the remaining calls and
// is returned.
func ParallelTiles(ctx context.Context, img Plug, ec *plugraph.Context, channels []string, fn func(ctx context.Context, channel string, tileOrigin geom.V2i) error) error {
	dw, err := img.DataWindow(ctx, ec)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for origin := range TileOrigins(dw) {
		for _, channel := range channels {
			g.Go(func() error {
				return fn(ctx, channel, origin)
			})
		}
	}
	return g.Wait()
}
