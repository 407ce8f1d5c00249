package image

import (
	"context"
	"fmt"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
)

// AreaSource selects the window a Crop crops to.
type AreaSource int

const (
	// AreaCustom crops to the Area plug.
	AreaCustom AreaSource = iota
	// AreaDataWindow crops to the data window of the input.
	AreaDataWindow
	// AreaDisplayWindow crops to the display window of the input's format.
	AreaDisplayWindow
)

func (s AreaSource) String() string {
	switch s {
	case AreaCustom:
		return "custom"
	case AreaDataWindow:
		return "dataWindow"
	case AreaDisplayWindow:
		return "displayWindow"
	}
	return fmt.Sprintf("AreaSource(%d)", int(s))
}

// Crop restricts its input to a window. It may crop the data window, the display
// window of the format, or both, and may move the result so that the crop
// window starts at the origin.
type Crop struct {
	Processor
	AreaSourcePlug      *plugraph.ValuePlug[AreaSource]
	Area                *plugraph.ValuePlug[geom.Box2i]
	AffectDataWindow    *plugraph.ValuePlug[bool]
	AffectDisplayWindow *plugraph.ValuePlug[bool]
	// ResetOrigin moves the crop window to the origin. It only applies when
	// AffectDisplayWindow is set.
	ResetOrigin *plugraph.ValuePlug[bool]

	// CropWindow is the window being cropped to, resolved from AreaSourcePlug.
	CropWindow *plugraph.ValuePlug[geom.Box2i]
	// Translation is the offset applied to the data window and channel data.
	Translation *plugraph.ValuePlug[geom.V2i]
}

func NewCrop(name string) *Crop {
	n := &Crop{}
	n.InitProcessor(n, name)
	b := &n.NodeBase.NodeBase
	n.AreaSourcePlug = plugraph.NewPlug(b, "areaSource", plugraph.In, AreaCustom)
	n.Area = plugraph.NewPlug(b, "area", plugraph.In, geom.Box2i{})
	n.AffectDataWindow = plugraph.NewPlug(b, "affectDataWindow", plugraph.In, true)
	n.AffectDisplayWindow = plugraph.NewPlug(b, "affectDisplayWindow", plugraph.In, true)
	n.ResetOrigin = plugraph.NewPlug(b, "resetOrigin", plugraph.In, true)
	n.CropWindow = plugraph.NewPlug(b, "__cropWindow", plugraph.Out, geom.Box2i{})
	n.Translation = plugraph.NewPlug(b, "__offset", plugraph.Out, geom.V2i{})
	connectPassThrough(n.Out.ChannelNamesPlug, n.In.ChannelNamesPlug)
	connectPassThrough(n.Out.MetadataPlug, n.In.MetadataPlug)
	return n
}

func (n *Crop) Affects(p plugraph.Plug) []plugraph.Plug {
	out := n.Out
	switch p {
	case n.Area, n.AreaSourcePlug, n.In.FormatPlug, n.In.DataWindowPlug:
		affected := []plugraph.Plug{n.CropWindow}
		switch p {
		case n.In.FormatPlug:
			affected = append(affected, out.FormatPlug)
		case n.In.DataWindowPlug:
			affected = append(affected, out.DataWindowPlug, out.ChannelDataPlug)
		}
		return affected
	case n.CropWindow:
		return []plugraph.Plug{n.Translation, out.FormatPlug, out.DataWindowPlug, out.ChannelDataPlug}
	case n.AffectDisplayWindow, n.ResetOrigin:
		return []plugraph.Plug{n.Translation, out.FormatPlug}
	case n.AffectDataWindow:
		return []plugraph.Plug{out.DataWindowPlug, out.ChannelDataPlug}
	case n.Translation:
		return []plugraph.Plug{out.DataWindowPlug, out.ChannelDataPlug}
	}
	return n.Processor.Affects(p)
}

func (n *Crop) Compute(ctx context.Context, output plugraph.Plug, ec *plugraph.Context) (any, error) {
	switch output {
	case n.CropWindow:
		return n.computeCropWindow(ctx, ec)
	case n.Translation:
		return n.computeTranslation(ctx, ec)
	}
	return n.Processor.Compute(ctx, output, ec)
}

func (n *Crop) Hash(ctx context.Context, output plugraph.Plug, ec *plugraph.Context, h *plugraph.Hasher) error {
	if output == n.CropWindow {
		plugraph.AppendPreamble(h, output, ec)
		return n.hashCropWindow(ctx, ec, h)
	}
	return n.Processor.Hash(ctx, output, ec, h)
}

func (n *Crop) computeCropWindow(ctx context.Context, ec *plugraph.Context) (geom.Box2i, error) {
	source, err := n.AreaSourcePlug.Value(ctx, ec)
	if err != nil {
		return geom.Box2i{}, err
	}
	switch source {
	case AreaDataWindow:
		return n.In.DataWindow(ctx, ec)
	case AreaDisplayWindow:
		f, err := n.In.Format(ctx, ec)
		return f.DisplayWindow, err
	}
	return n.Area.Value(ctx, ec)
}

// hashCropWindow hashes only the plug the crop window is read from.
func (n *Crop) hashCropWindow(ctx context.Context, ec *plugraph.Context, h *plugraph.Hasher) error {
	source, err := n.AreaSourcePlug.Value(ctx, ec)
	if err != nil {
		return err
	}
	h.WriteInt(int64(source))
	var from plugraph.Plug = n.Area
	switch source {
	case AreaDataWindow:
		from = n.In.DataWindowPlug
	case AreaDisplayWindow:
		from = n.In.FormatPlug
	}
	x, err := n.Graph().HashOf(ctx, from, GlobalContext(ec))
	if err != nil {
		return err
	}
	h.WriteHash(x)
	return nil
}

func (n *Crop) computeTranslation(ctx context.Context, ec *plugraph.Context) (geom.V2i, error) {
	reset, err := n.resetsOrigin(ctx, ec)
	if err != nil || !reset {
		return geom.V2i{}, err
	}
	w, err := n.CropWindow.Value(ctx, GlobalContext(ec))
	if err != nil {
		return geom.V2i{}, err
	}
	return w.Min.Neg(), nil
}

func (n *Crop) resetsOrigin(ctx context.Context, ec *plugraph.Context) (bool, error) {
	affect, err := n.AffectDisplayWindow.Value(ctx, ec)
	if err != nil || !affect {
		return false, err
	}
	return n.ResetOrigin.Value(ctx, ec)
}

func (n *Crop) ComputeFormat(ctx context.Context, ec *plugraph.Context, _ Plug) (Format, error) {
	f, err := n.In.Format(ctx, ec)
	if err != nil {
		return Format{}, err
	}
	affect, err := n.AffectDisplayWindow.Value(ctx, ec)
	if err != nil || !affect {
		return f, err
	}
	w, err := n.CropWindow.Value(ctx, GlobalContext(ec))
	if err != nil {
		return Format{}, err
	}
	reset, err := n.ResetOrigin.Value(ctx, ec)
	if err != nil {
		return Format{}, err
	}
	if reset {
		w = geom.Box2i{Max: w.Max.Sub(w.Min)}
	}
	return Format{DisplayWindow: w, PixelAspect: f.PixelAspect}, nil
}

// HashFormat passes the hash of the input format through when the display
// window is left alone.
func (n *Crop) HashFormat(ctx context.Context, ec *plugraph.Context, out Plug, h *plugraph.Hasher) error {
	affect, err := n.AffectDisplayWindow.Value(ctx, ec)
	if err != nil {
		return err
	}
	if affect {
		for _, p := range plugraph.Dependencies(out.FormatPlug) {
			x, err := n.Graph().HashOf(ctx, p, ec)
			if err != nil {
				return err
			}
			h.WriteHash(x)
		}
		return nil
	}
	x, err := n.Graph().HashOf(ctx, n.In.FormatPlug, ec)
	if err != nil {
		return err
	}
	h.Assign(x)
	return nil
}

// window returns the input pixels surviving the crop.
func (n *Crop) window(ctx context.Context, ec *plugraph.Context) (geom.Box2i, error) {
	dw, err := n.In.DataWindow(ctx, ec)
	if err != nil {
		return geom.Box2i{}, err
	}
	affect, err := n.AffectDataWindow.Value(ctx, ec)
	if err != nil || !affect {
		return dw, err
	}
	w, err := n.CropWindow.Value(ctx, GlobalContext(ec))
	if err != nil {
		return geom.Box2i{}, err
	}
	return geom.Intersection(dw, w), nil
}

func (n *Crop) shift(ctx context.Context, ec *plugraph.Context) (shift, error) {
	w, err := n.window(ctx, ec)
	if err != nil {
		return shift{}, err
	}
	offset, err := n.Translation.Value(ctx, GlobalContext(ec))
	if err != nil {
		return shift{}, err
	}
	return shift{in: n.In, window: w, offset: offset}, nil
}

func (n *Crop) ComputeDataWindow(ctx context.Context, ec *plugraph.Context, _ Plug) (geom.Box2i, error) {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return geom.Box2i{}, err
	}
	return s.window.Offset(s.offset), nil
}

func (n *Crop) ComputeChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, _ Plug) ([]float32, error) {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return nil, err
	}
	return s.tile(ctx, ec, channel, tileOrigin)
}

func (n *Crop) HashChannelData(ctx context.Context, channel string, tileOrigin geom.V2i, ec *plugraph.Context, _ Plug, h *plugraph.Hasher) error {
	s, err := n.shift(ctx, ec)
	if err != nil {
		return err
	}
	return s.hash(ctx, ec, channel, tileOrigin, h)
}
