package extract

import (
	"fmt"
	"io"

	"github.com/malt3/peicon/pkg/container"
	"github.com/malt3/peicon/pkg/icon"
	"github.com/malt3/peicon/pkg/rsrc"
)

// ScoredEntry is an icon group entry with its selection score.
type ScoredEntry struct {
	icon.GroupEntry
	Score int
}

// Report describes what the pipeline sees inside an executable.
// Fields are filled in pipeline order; a failed step leaves the later ones empty.
type Report struct {
	Is64     bool
	Sections []container.Section
	// Resource is nil when the file has no resource section.
	Resource  *rsrc.Section
	Resources []rsrc.Leaf
	Group     []ScoredEntry
	// Selected indexes Group, -1 if nothing was selected.
	Selected int
	// Payload is "png" or "bitmap" for the selected image.
	Payload string
}

// Inspect walks the executable held by r and reports its sections, resource tree
// and icon group. The report is returned together with the error of the first
// step that failed.
func (x *Extractor) Inspect(r io.ReaderAt, size int64) (*Report, error) {
	rep := &Report{Selected: -1}
	layout, err := container.Open(r, size)
	if err != nil {
		return rep, err
	}
	rep.Is64 = layout.Is64
	rep.Sections = layout.Sections

	sec, err := rsrc.Locate(layout)
	if err != nil {
		return rep, err
	}
	rep.Resource = &sec
	w := rsrc.NewWalker(r, layout, sec)

	err = w.Walk(func(l rsrc.Leaf) bool {
		rep.Resources = append(rep.Resources, l)
		return true
	})
	if err != nil {
		return rep, fmt.Errorf("walking resources: %w", err)
	}

	group, err := icon.LoadGroup(w)
	if err != nil {
		return rep, err
	}
	best, _ := icon.Select(group)
	for i, e := range group.Entries {
		rep.Group = append(rep.Group, ScoredEntry{GroupEntry: e, Score: icon.Score(e)})
		if rep.Selected < 0 && e == best {
			rep.Selected = i
		}
	}

	data, err := icon.LoadImageData(w, best)
	if err != nil {
		return rep, err
	}
	rep.Payload = "bitmap"
	if icon.IsPNG(data) {
		rep.Payload = "png"
	}
	return rep, nil
}
