package edit_test

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-plugraph/plugraph"
	"github.com/go-plugraph/plugraph/edit"
	"github.com/go-plugraph/plugraph/geom"
	_ "github.com/go-plugraph/plugraph/image"
)

// We demonstrate the complete workflow: recording edits, encoding them for
// transmission to another process, and replaying the decoded steps on a graph.
func ExampleRecorder() {
	var recorder edit.Recorder
	recorder.AddNode("image.Constant", "c")
	recorder.AddNode("image.Offset", "offset")
	recorder.SetValue("c.color", [4]float32{0.5, 0.25, 0, 1})
	recorder.SetValue("offset.offset", geom.V2i{X: 10, Y: 20})
	for _, name := range []string{"format", "dataWindow", "channelNames", "metadata", "channelData"} {
		recorder.Connect("offset.in."+name, "c.out."+name)
	}

	steps := recorder.Steps()
	for _, step := range steps[:5] {
		fmt.Println(step)
	}

	data, err := edit.Encode(steps)
	if err != nil {
		panic(err)
	}
	// In a distributed scenario, the encoded bytes would be transmitted to another
	// process. Here we simply decode them in place.
	decoded, err := edit.Decode(data)
	if err != nil {
		panic(err)
	}

	g := plugraph.NewGraph("example")
	if _, err := g.Apply(context.Background(), edit.Replay(decoded)); err != nil {
		panic(err)
	}
	p, err := g.Plug("offset.out.dataWindow")
	if err != nil {
		panic(err)
	}
	dw, err := g.Evaluate(context.Background(), p, plugraph.NewContext())
	if err != nil {
		panic(err)
	}
	fmt.Println("offset.out.dataWindow =", dw)

	// Output:
	// add image.Constant "c"
	// add image.Offset "offset"
	// set c.color = [0.5 0.25 0 1]
	// set offset.offset = (10,20)
	// connect offset.in.format <- c.out.format
	// offset.out.dataWindow = [(10,20),(1930,1100)]
}

func ExampleTargets() {
	var recorder edit.Recorder
	recorder.AddNode("image.Constant", "c")
	recorder.SetValue("c.color", [4]float32{1, 1, 1, 1})
	recorder.Connect("crop.in.format", "c.out.format")
	recorder.RemoveNode("old")

	fmt.Println(slices.Collect(edit.Targets(recorder.Steps())))
	// Output:
	// [c crop old]
}
