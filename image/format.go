package image

import (
	"encoding/gob"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-plugraph/plugraph/geom"
)

func init() {
	gob.Register(Format{})
	gob.Register(AreaSource(0))
	gob.Register([4]float32{})

	RegisterFormat("HD 720", NewFormat(1280, 720, 1))
	RegisterFormat("HD 1080", NewFormat(1920, 1080, 1))
	RegisterFormat("UHD 4K", NewFormat(3840, 2160, 1))
	RegisterFormat("PAL", NewFormat(720, 576, 1.066))
	RegisterFormat("NTSC", NewFormat(720, 486, 0.9))
	RegisterFormat("square 1K", NewFormat(1024, 1024, 1))
}

// Format describes the frame an image is displayed in.
type Format struct {
	// DisplayWindow has an exclusive maximum, like every Box2i.
	DisplayWindow geom.Box2i
	PixelAspect   float64
}

// DefaultFormat is the format of new images.
var DefaultFormat = NewFormat(1920, 1080, 1)

// NewFormat returns a width x height format with its origin at (0,0).
func NewFormat(width, height int, pixelAspect float64) Format {
	return Format{DisplayWindow: geom.NewBox2i(0, 0, width, height), PixelAspect: pixelAspect}
}

func (f Format) Width() int  { return f.DisplayWindow.Size().X }
func (f Format) Height() int { return f.DisplayWindow.Size().Y }

func (f Format) String() string {
	if f.DisplayWindow.Min == (geom.V2i{}) {
		return fmt.Sprintf("%dx%d (%g)", f.Width(), f.Height(), f.PixelAspect)
	}
	return fmt.Sprintf("%v (%g)", f.DisplayWindow, f.PixelAspect)
}

var formats sync.Map // map[string]Format

// RegisterFormat makes f available under name, replacing any format
// registered under the same name before.
func RegisterFormat(name string, f Format) {
	formats.Store(name, f)
}

// FormatByName returns the format registered under name.
func FormatByName(name string) (Format, bool) {
	f, ok := formats.Load(name)
	if !ok {
		return Format{}, false
	}
	return f.(Format), true
}

// RegisteredFormats returns the names of all registered formats, sorted.
func RegisteredFormats() []string {
	var names []string
	formats.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}

// A Version identifies the release that saved a script, as milestone, major,
// minor and patch numbers.
type Version [4]int

// ParseVersion parses versions such as "0.16.2.1". Missing trailing numbers
// are zero.
func ParseVersion(s string) (Version, error) {
	var v Version
	parts := strings.Split(s, ".")
	if len(parts) > len(v) {
		return Version{}, fmt.Errorf("version %q: too many components", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("version %q: %w", s, err)
		}
		v[i] = n
	}
	return v, nil
}

// Less reports whether v is older than o.
func (v Version) Less(o Version) bool {
	return slices.Compare(v[:], o[:]) < 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// ExclusiveDisplayWindowVersion is the first version storing display windows
// with an exclusive maximum.
var ExclusiveDisplayWindowVersion = Version{0, 17, 0, 0}

// ConvertLegacyFormat converts a format saved by version v to the current
// convention. Versions before ExclusiveDisplayWindowVersion stored the maximum
// of the display window inclusively.
func ConvertLegacyFormat(f Format, v Version) Format {
	if !v.Less(ExclusiveDisplayWindowVersion) {
		return f
	}
	f.DisplayWindow.Max = f.DisplayWindow.Max.Add(geom.V2i{X: 1, Y: 1})
	return f
}
