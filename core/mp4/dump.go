package mp4

import (
	"io"
	"os"
	"sort"

	"github.com/headcamlab/headcam/core/errors"
	"github.com/headcamlab/headcam/internal/logging"
)

// Node is one box in a container dump, ordered by file offset.
type Node struct {
	Tag      string
	Extent   Extent
	Children []Node
}

// Size returns the full box size including its 8-byte header.
func (n Node) Size() int64 {
	return n.Extent.Len() + headerSize
}

// containerTags lists boxes whose payload is itself a box sequence worth
// descending into for inspection.
var containerTags = map[string]bool{
	TagMoov: true,
	TagUdta: true,
	"trak":  true,
	"mdia":  true,
	"minf":  true,
	"stbl":  true,
	"edts":  true,
}

// DumpFile enumerates the box tree of an MP4 file down to maxDepth
// levels. The walk is tolerant: a malformed nested region is logged and
// reported as a leaf so the rest of the file can still be inspected.
func DumpFile(path string, maxDepth int) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return Walk(f, 0, EndOfStream, maxDepth)
}

// Walk enumerates the boxes in a byte range and recursively descends
// into known container boxes while depth remains.
func Walk(r io.ReadSeeker, start, end int64, depth int) ([]Node, error) {
	table, err := EnumerateBoxes(r, start, end)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(table))
	for tag, extent := range table {
		nodes = append(nodes, Node{Tag: tag, Extent: extent})
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Extent.Start < nodes[j].Extent.Start
	})

	if depth <= 1 {
		return nodes, nil
	}
	for i := range nodes {
		if !containerTags[nodes[i].Tag] {
			continue
		}
		children, err := Walk(r, nodes[i].Extent.Start, nodes[i].Extent.End, depth-1)
		if err != nil {
			logging.Debug("skipping malformed nested boxes",
				"tag", nodes[i].Tag, "error", err)
			continue
		}
		nodes[i].Children = children
	}
	return nodes, nil
}
