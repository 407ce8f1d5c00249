package image

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/geom"
	"github.com/go-plugraph/plugraph/plugtest"
)

// ramp is an image whose single channel "Y" holds x + 1000*y at every pixel of
// its data window.
type ramp struct {
	NodeBase
	FormatPlug *plugraph.ValuePlug[Format]
	Window     *plugraph.ValuePlug[geom.Box2i]
}

func newRamp(name string, format Format, dw geom.Box2i) *ramp {
	n := &ramp{}
	n.InitImageNode(n, name)
	n.FormatPlug = plugraph.NewPlug(&n.NodeBase.NodeBase, "format", plugraph.In, format)
	n.Window = plugraph.NewPlug(&n.NodeBase.NodeBase, "window", plugraph.In, dw)
	return n
}

func (n *ramp) Affects(p plugraph.Plug) []plugraph.Plug {
	switch p {
	case n.FormatPlug:
		return []plugraph.Plug{n.Out.FormatPlug}
	case n.Window:
		return []plugraph.Plug{n.Out.DataWindowPlug, n.Out.ChannelDataPlug}
	}
	return nil
}

func (n *ramp) ComputeFormat(ctx context.Context, ec *plugraph.Context, _ Plug) (Format, error) {
	return n.FormatPlug.Value(ctx, ec)
}

func (n *ramp) ComputeDataWindow(ctx context.Context, ec *plugraph.Context, _ Plug) (geom.Box2i, error) {
	return n.Window.Value(ctx, ec)
}

func (n *ramp) ComputeChannelNames(context.Context, *plugraph.Context, Plug) ([]string, error) {
	return []string{"Y"}, nil
}

func (n *ramp) ComputeMetadata(context.Context, *plugraph.Context, Plug) (plugraph.CompoundObject, error) {
	return plugraph.CompoundObject{"source": "ramp"}, nil
}

func (n *ramp) ComputeChannelData(ctx context.Context, channel string, origin geom.V2i, ec *plugraph.Context, _ Plug) ([]float32, error) {
	if channel != "Y" {
		return nil, ErrNoSuchChannel
	}
	dw, err := n.Window.Value(ctx, ec)
	if err != nil {
		return nil, err
	}
	tile := make([]float32, TileSize*TileSize)
	r := geom.Intersection(dw, TileBound(origin))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			tile[pixelIndex(origin, geom.V2i{X: x, Y: y})] = float32(x + 1000*y)
		}
	}
	return tile, nil
}

func newGraph(t *testing.T, nodes ...plugraph.Node) *plugraph.Graph {
	t.Helper()
	g := plugraph.NewGraph("image")
	_, err := g.Apply(context.Background(), func(ctx context.Context, w plugraph.Writer) error {
		for _, n := range nodes {
			if err := w.AddNode(n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return g
}

func connect(t *testing.T, dst, src Plug) {
	t.Helper()
	if err := dst.SetInput(src); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
}

func sample(t *testing.T, img Plug, channel string, p geom.V2i) float32 {
	t.Helper()
	v, err := img.Sample(context.Background(), plugraph.NewContext(), channel, p)
	if err != nil {
		t.Fatalf("Sample(%v): %v", p, err)
	}
	return v
}

func TestTileOrigin(t *testing.T) {
	tests := []struct {
		p, want geom.V2i
	}{
		{p: geom.V2i{}, want: geom.V2i{}},
		{p: geom.V2i{X: 63, Y: 64}, want: geom.V2i{X: 0, Y: 64}},
		{p: geom.V2i{X: -1, Y: -64}, want: geom.V2i{X: -64, Y: -64}},
		{p: geom.V2i{X: -65, Y: 130}, want: geom.V2i{X: -128, Y: 128}},
	}
	for _, tt := range tests {
		if got := TileOrigin(tt.p); got != tt.want {
			t.Errorf("TileOrigin(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestTileOrigins(t *testing.T) {
	tests := []struct {
		name string
		b    geom.Box2i
		want []geom.V2i
	}{
		{name: "empty", b: geom.Box2i{}, want: nil},
		{name: "single", b: geom.NewBox2i(0, 0, 64, 64), want: []geom.V2i{{}}},
		{name: "straddling", b: geom.NewBox2i(-1, 10, 65, 20), want: []geom.V2i{{X: -64}, {X: 0}, {X: 64}}},
		{name: "rows", b: geom.NewBox2i(0, 63, 1, 65), want: []geom.V2i{{X: 0, Y: 0}, {X: 0, Y: 64}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(TileOrigins(tt.b))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TileOrigins(%v) mismatch (-want +got):\n%s", tt.b, diff)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	f, ok := FormatByName("HD 1080")
	if !ok {
		t.Fatal(`FormatByName("HD 1080") not found`)
	}
	if f.Width() != 1920 || f.Height() != 1080 {
		t.Errorf("HD 1080 = %v", f)
	}
	RegisterFormat("test square", NewFormat(10, 10, 1))
	if !slices.Contains(RegisteredFormats(), "test square") {
		t.Errorf("RegisteredFormats() = %q, missing registered format", RegisteredFormats())
	}
	if names := RegisteredFormats(); !slices.IsSorted(names) {
		t.Errorf("RegisteredFormats() = %q, not sorted", names)
	}
	if _, ok := FormatByName("no such format"); ok {
		t.Error("FormatByName of an unknown name succeeded")
	}
}

func TestConvertLegacyFormat(t *testing.T) {
	legacy := Format{DisplayWindow: geom.NewBox2i(0, 0, 1919, 1079), PixelAspect: 1}
	tests := []struct {
		version string
		want    Format
	}{
		{version: "0.16.2.1", want: NewFormat(1920, 1080, 1)},
		{version: "0.17", want: legacy},
		{version: "1.2.3.4", want: legacy},
	}
	for _, tt := range tests {
		v, err := ParseVersion(tt.version)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", tt.version, err)
		}
		if got := ConvertLegacyFormat(legacy, v); got != tt.want {
			t.Errorf("ConvertLegacyFormat(%v) = %v, want %v", v, got, tt.want)
		}
	}
	if _, err := ParseVersion("0.x"); err == nil {
		t.Error("ParseVersion(0.x) succeeded")
	}
}

func TestConstant(t *testing.T) {
	c := NewConstant("c")
	if err := c.FormatPlug.SetValue(NewFormat(100, 50, 1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Color.SetValue([4]float32{0.25, 0.5, 0.75, 1}); err != nil {
		t.Fatal(err)
	}
	newGraph(t, c)
	ctx, ec := context.Background(), plugraph.NewContext()

	dw, err := c.Out.DataWindow(ctx, ec)
	if err != nil {
		t.Fatal(err)
	}
	if want := geom.NewBox2i(0, 0, 100, 50); dw != want {
		t.Errorf("DataWindow = %v, want %v", dw, want)
	}
	if got := sample(t, c.Out, "B", geom.V2i{X: 99, Y: 49}); got != 0.75 {
		t.Errorf("B = %g, want 0.75", got)
	}
	if _, err := c.Out.ChannelData(ctx, ec, "Z", geom.V2i{}); !errors.Is(err, ErrNoSuchChannel) {
		t.Errorf("ChannelData(Z) error = %v, want %v", err, ErrNoSuchChannel)
	}
	if _, err := c.Out.ChannelData(ctx, ec, "R", geom.V2i{X: 1}); err == nil {
		t.Error("ChannelData with an unaligned tile origin succeeded")
	}

	// every tile of a constant holds the same values, but tiles are still
	// requested separately.
	a, _ := c.Out.ChannelDataHash(ctx, ec, "R", geom.V2i{})
	b, _ := c.Out.ChannelDataHash(ctx, ec, "G", geom.V2i{})
	if a == b {
		t.Error("channels R and G share a hash")
	}
}

func TestCrop(t *testing.T) {
	tests := []struct {
		name           string
		format         Format
		dataWindow     geom.Box2i
		configure      func(*Crop) error
		wantCropWindow geom.Box2i
		wantFormat     geom.Box2i
		wantDataWindow geom.Box2i
	}{
		{
			name:       "display window",
			format:     NewFormat(200, 200, 1),
			dataWindow: geom.NewBox2i(0, 0, 100, 100),
			configure: func(c *Crop) error {
				return c.AreaSourcePlug.SetValue(AreaDisplayWindow)
			},
			wantCropWindow: geom.NewBox2i(0, 0, 200, 200),
			wantFormat:     geom.NewBox2i(0, 0, 200, 200),
			wantDataWindow: geom.NewBox2i(0, 0, 100, 100),
		},
		{
			name:       "custom area",
			format:     NewFormat(200, 200, 1),
			dataWindow: geom.NewBox2i(0, 0, 100, 100),
			configure: func(c *Crop) error {
				return c.Area.SetValue(geom.NewBox2i(50, 50, 150, 150))
			},
			wantCropWindow: geom.NewBox2i(50, 50, 150, 150),
			wantFormat:     geom.NewBox2i(0, 0, 100, 100),
			wantDataWindow: geom.NewBox2i(0, 0, 50, 50),
		},
		{
			name:       "data window without reset",
			format:     NewFormat(100, 100, 1),
			dataWindow: geom.NewBox2i(10, 10, 80, 80),
			configure: func(c *Crop) error {
				if err := c.ResetOrigin.SetValue(false); err != nil {
					return err
				}
				return c.AreaSourcePlug.SetValue(AreaDataWindow)
			},
			wantCropWindow: geom.NewBox2i(10, 10, 80, 80),
			wantFormat:     geom.NewBox2i(10, 10, 80, 80),
			wantDataWindow: geom.NewBox2i(10, 10, 80, 80),
		},
		{
			name:       "data window only",
			format:     NewFormat(100, 100, 1),
			dataWindow: geom.NewBox2i(0, 0, 100, 100),
			configure: func(c *Crop) error {
				if err := c.AffectDisplayWindow.SetValue(false); err != nil {
					return err
				}
				return c.Area.SetValue(geom.NewBox2i(20, 30, 40, 50))
			},
			wantCropWindow: geom.NewBox2i(20, 30, 40, 50),
			wantFormat:     geom.NewBox2i(0, 0, 100, 100),
			wantDataWindow: geom.NewBox2i(20, 30, 40, 50),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newRamp("src", tt.format, tt.dataWindow)
			crop := NewCrop("crop")
			if err := tt.configure(crop); err != nil {
				t.Fatal(err)
			}
			newGraph(t, src, crop)
			connect(t, crop.In, src.Out)
			ctx, ec := context.Background(), plugraph.NewContext()

			w, err := crop.CropWindow.Value(ctx, ec)
			if err != nil {
				t.Fatal(err)
			}
			if w != tt.wantCropWindow {
				t.Errorf("crop window = %v, want %v", w, tt.wantCropWindow)
			}
			f, err := crop.Out.Format(ctx, ec)
			if err != nil {
				t.Fatal(err)
			}
			if f.DisplayWindow != tt.wantFormat {
				t.Errorf("display window = %v, want %v", f.DisplayWindow, tt.wantFormat)
			}
			dw, err := crop.Out.DataWindow(ctx, ec)
			if err != nil {
				t.Fatal(err)
			}
			if dw != tt.wantDataWindow {
				t.Errorf("data window = %v, want %v", dw, tt.wantDataWindow)
			}
		})
	}
}

func TestCrop_pixels(t *testing.T) {
	src := newRamp("src", NewFormat(100, 100, 1), geom.NewBox2i(10, 10, 80, 80))
	crop := NewCrop("crop")
	if err := crop.Area.SetValue(geom.NewBox2i(20, 30, 90, 40)); err != nil {
		t.Fatal(err)
	}
	newGraph(t, src, crop)
	connect(t, crop.In, src.Out)

	dw, err := crop.Out.DataWindow(context.Background(), plugraph.NewContext())
	if err != nil {
		t.Fatal(err)
	}
	if want := geom.NewBox2i(0, 0, 60, 10); dw != want {
		t.Fatalf("data window = %v, want %v", dw, want)
	}
	tests := []struct {
		p    geom.V2i
		want float32
	}{
		{p: geom.V2i{X: 0, Y: 0}, want: 30020},
		{p: geom.V2i{X: 59, Y: 9}, want: 39079},
		{p: geom.V2i{X: 60, Y: 0}, want: 0},
	}
	for _, tt := range tests {
		if got := sample(t, crop.Out, "Y", tt.p); got != tt.want {
			t.Errorf("Sample(%v) = %g, want %g", tt.p, got, tt.want)
		}
	}

	// metadata and channel names pass through.
	md, err := crop.Out.Metadata(context.Background(), plugraph.NewContext())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(plugraph.CompoundObject{"source": "ramp"}, md); diff != "" {
		t.Errorf("Metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestCrop_formatHash(t *testing.T) {
	src := newRamp("src", NewFormat(100, 100, 1), geom.NewBox2i(0, 0, 100, 100))
	crop := NewCrop("crop")
	if err := crop.Area.SetValue(geom.NewBox2i(0, 0, 10, 10)); err != nil {
		t.Fatal(err)
	}
	g := newGraph(t, src, crop)
	connect(t, crop.In, src.Out)
	ctx, ec := context.Background(), plugraph.NewContext()

	in, err := src.Out.FormatPlug.Hash(ctx, ec)
	if err != nil {
		t.Fatal(err)
	}
	out, err := crop.Out.FormatPlug.Hash(ctx, ec)
	if err != nil {
		t.Fatal(err)
	}
	if in == out {
		t.Error("cropping the display window kept the input format hash")
	}

	if _, err := g.Apply(ctx, func(ctx context.Context, w plugraph.Writer) error {
		return w.SetValue(crop.AffectDisplayWindow, false)
	}); err != nil {
		t.Fatal(err)
	}
	out, err = crop.Out.FormatPlug.Hash(ctx, ec)
	if err != nil {
		t.Fatal(err)
	}
	if in != out {
		t.Errorf("format hash = %v, want the input format hash %v", out, in)
	}
}

func TestOffset(t *testing.T) {
	src := newRamp("src", NewFormat(200, 200, 1), geom.NewBox2i(0, 0, 100, 100))
	offset := NewOffset("offset")
	if err := offset.OffsetPlug.SetValue(geom.V2i{X: 5, Y: -70}); err != nil {
		t.Fatal(err)
	}
	newGraph(t, src, offset)
	connect(t, offset.In, src.Out)
	ctx, ec := context.Background(), plugraph.NewContext()

	dw, err := offset.Out.DataWindow(ctx, ec)
	if err != nil {
		t.Fatal(err)
	}
	if want := geom.NewBox2i(5, -70, 105, 30); dw != want {
		t.Errorf("data window = %v, want %v", dw, want)
	}
	for _, p := range []geom.V2i{{X: 0, Y: 0}, {X: 63, Y: 63}, {X: 64, Y: 69}, {X: 99, Y: 99}} {
		want := float32(p.X + 1000*p.Y)
		if got := sample(t, offset.Out, "Y", p.Add(geom.V2i{X: 5, Y: -70})); got != want {
			t.Errorf("Sample(%v + offset) = %g, want %g", p, got, want)
		}
	}

	want, err := src.Out.Pixels(ctx, ec, "Y")
	if err != nil {
		t.Fatal(err)
	}
	got, err := offset.Out.Pixels(ctx, ec, "Y")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessor_disabled(t *testing.T) {
	src := newRamp("src", NewFormat(100, 100, 1), geom.NewBox2i(0, 0, 100, 100))
	crop := NewCrop("crop")
	if err := crop.Area.SetValue(geom.NewBox2i(10, 10, 20, 20)); err != nil {
		t.Fatal(err)
	}
	if err := crop.Enabled.SetValue(false); err != nil {
		t.Fatal(err)
	}
	newGraph(t, src, crop)
	connect(t, crop.In, src.Out)
	ctx, ec := context.Background(), plugraph.NewContext()
	tile := TileContext(ec, "Y", geom.V2i{X: 64, Y: 64})

	for _, p := range []struct {
		in, out plugraph.Plug
		ec      *plugraph.Context
	}{
		{in: src.Out.FormatPlug, out: crop.Out.FormatPlug, ec: ec},
		{in: src.Out.DataWindowPlug, out: crop.Out.DataWindowPlug, ec: ec},
		{in: src.Out.ChannelDataPlug, out: crop.Out.ChannelDataPlug, ec: tile},
	} {
		g := crop.Graph()
		want, err := g.HashOf(ctx, p.in, p.ec)
		if err != nil {
			t.Fatal(err)
		}
		got, err := g.HashOf(ctx, p.out, p.ec)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("hash of %s = %v, want %v", p.out, got, want)
		}
	}
	if got := sample(t, crop.Out, "Y", geom.V2i{X: 70, Y: 80}); got != 80070 {
		t.Errorf("Sample = %g, want 80070", got)
	}
}

func TestParallelTiles(t *testing.T) {
	src := newRamp("src", NewFormat(200, 200, 1), geom.NewBox2i(-10, 0, 130, 65))
	newGraph(t, src)
	ctx, ec := context.Background(), plugraph.NewContext()

	var (
		mu      sync.Mutex
		visited = make(map[geom.V2i]bool)
	)
	err := ParallelTiles(ctx, src.Out, ec, []string{"Y"}, func(ctx context.Context, channel string, origin geom.V2i) error {
		mu.Lock()
		visited[origin] = true
		mu.Unlock()
		_, err := src.Out.ChannelData(ctx, ec, channel, origin)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(visited); got != 8 {
		t.Errorf("visited %d tiles, want 8", got)
	}

	err = ParallelTiles(ctx, src.Out, ec, []string{"Y", "Z"}, func(ctx context.Context, channel string, origin geom.V2i) error {
		_, err := src.Out.ChannelData(ctx, ec, channel, origin)
		return err
	})
	if !errors.Is(err, ErrNoSuchChannel) {
		t.Errorf("ParallelTiles error = %v, want %v", err, ErrNoSuchChannel)
	}
}

func TestCrop_properties(t *testing.T) {
	src := newRamp("src", NewFormat(200, 100, 1), geom.NewBox2i(0, 0, 150, 100))
	crop := NewCrop("crop")
	if err := crop.Area.SetValue(geom.NewBox2i(50, 50, 100, 90)); err != nil {
		t.Fatal(err)
	}
	g := newGraph(t, src, crop)
	connect(t, crop.In, src.Out)

	ec := plugraph.NewContext()
	queries := []plugtest.Query{
		{Plug: crop.Out.FormatPlug, Context: ec},
		{Plug: crop.Out.DataWindowPlug, Context: ec},
		{Plug: crop.Out.ChannelNamesPlug, Context: ec},
		{Plug: src.Out.FormatPlug, Context: ec},
	}
	for _, origin := range []geom.V2i{{X: 0, Y: 0}, {X: 64, Y: 0}, {X: 64, Y: 64}} {
		queries = append(queries,
			plugtest.Query{Plug: crop.Out.ChannelDataPlug, Context: TileContext(ec, "Y", origin)},
			plugtest.Query{Plug: src.Out.ChannelDataPlug, Context: TileContext(ec, "Y", origin)},
		)
	}

	plugtest.Run(t, g, queries, []plugtest.Mutation{
		plugtest.Set("move area", crop.Area, geom.NewBox2i(-10, 20, 120, 80)),
		plugtest.Set("keep origin", crop.ResetOrigin, false),
		plugtest.Set("data window source", crop.AreaSourcePlug, AreaDataWindow),
		plugtest.Set("shrink input", src.Window, geom.NewBox2i(10, 10, 70, 70)),
		plugtest.Set("display window source", crop.AreaSourcePlug, AreaDisplayWindow),
		plugtest.Set("reset origin", crop.ResetOrigin, true),
		plugtest.Set("leave display window", crop.AffectDisplayWindow, false),
		plugtest.Set("leave data window", crop.AffectDataWindow, false),
		plugtest.Set("disable", crop.Enabled, false),
		plugtest.Set("enable", crop.Enabled, true),
	})
}

func TestOffset_properties(t *testing.T) {
	src := newRamp("src", NewFormat(200, 100, 1), geom.NewBox2i(0, 0, 150, 100))
	offset := NewOffset("offset")
	g := newGraph(t, src, offset)
	connect(t, offset.In, src.Out)

	ec := plugraph.NewContext()
	queries := []plugtest.Query{{Plug: offset.Out.DataWindowPlug, Context: ec}}
	for _, origin := range []geom.V2i{{X: 0, Y: 0}, {X: 64, Y: 64}, {X: -64, Y: 0}} {
		queries = append(queries, plugtest.Query{Plug: offset.Out.ChannelDataPlug, Context: TileContext(ec, "Y", origin)})
	}
	plugtest.Run(t, g, queries, []plugtest.Mutation{
		plugtest.Set("offset", offset.OffsetPlug, geom.V2i{X: 3, Y: 4}),
		plugtest.Set("negative offset", offset.OffsetPlug, geom.V2i{X: -70, Y: 1}),
		plugtest.Set("shrink input", src.Window, geom.NewBox2i(0, 0, 10, 10)),
		plugtest.Set("tile aligned", offset.OffsetPlug, geom.V2i{X: 64}),
	})
}
