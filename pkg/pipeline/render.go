package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/render/nodelink"
)

// Render draws t as a node-link diagram without caching.
func Render(ctx context.Context, t *network.Table, opts RenderOptions) ([]byte, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	dot := nodelink.ToDOT(t, nodelink.Options{
		Detailed:    opts.Detailed,
		ShowRemoved: opts.ShowRemoved,
	})

	switch opts.Format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		svg, err := nodelink.RenderSVG(ctx, dot)
		if err != nil {
			return nil, fmt.Errorf("render svg: %w", err)
		}
		return svg, nil
	}
	return nil, fmt.Errorf("unsupported format: %s", opts.Format)
}
