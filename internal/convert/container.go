// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/zotnote/internal/container"
)

// PandocImage is the container image the container backend runs.
const PandocImage = "docker.io/pandoc/core:latest"

// ContainerConverter runs pandoc inside a container, for machines without
// a local pandoc install.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter detects docker or podman and makes sure the pandoc
// image is present, pulling it on first use.
func NewContainerConverter(ctx context.Context, logger *slog.Logger) (*ContainerConverter, error) {
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	if rt.ImageExists(ctx, PandocImage) != nil {
		logger.Info("convert: pulling pandoc image", slog.String("runtime", rt.Name()), slog.String("image", PandocImage))
	}
	if err := container.EnsureImage(ctx, rt, PandocImage); err != nil {
		return nil, err
	}
	return newContainerConverter(rt), nil
}

func newContainerConverter(rt container.Runtime) *ContainerConverter {
	return &ContainerConverter{runtime: rt, image: PandocImage}
}

// Convert pipes text through pandoc in a throwaway container.
func (c *ContainerConverter) Convert(ctx context.Context, text, from, to string) (string, error) {
	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, pandocArgs(from, to), strings.NewReader(text), &out); err != nil {
		return "", fmt.Errorf("converting with %s: %w", c.runtime.Name(), err)
	}
	return out.String(), nil
}
