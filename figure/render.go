package figure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"github.com/wiser-x/exploration-plots/util"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgeps"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// Formats lists the output formats Render accepts.
var Formats = []string{"png", "svg", "pdf", "eps", "jpg", "jpeg", "tif", "tiff"}

var ErrNothingToRender = errors.New("nothing to render")

// FormatOf returns the output format implied by a file name.
func FormatOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Render draws plots side by side, aligned on their axes, on one canvas of
// the given total size and writes it to w in format.
func Render(w io.Writer, format string, width, height vg.Length, plots ...*plot.Plot) error {
	if len(plots) == 0 {
		return ErrNothingToRender
	}
	c, err := draw.NewFormattedCanvas(width, height, format)
	if err != nil {
		return fmt.Errorf("while creating %s canvas: %w", format, err)
	}

	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(plots),
		PadX:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, draw.New(c))
	for i, p := range plots {
		p.Draw(canvases[0][i])
	}

	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("while writing %s: %w", format, err)
	}
	return nil
}

// Save renders plots to path, a local file or a gs:// object. The format
// follows path's extension unless format is set.
func Save(ctx context.Context, client *storage.Client, path, format string, width, height vg.Length, plots ...*plot.Plot) error {
	if format == "" {
		format = FormatOf(path)
	}
	var buf bytes.Buffer
	if err := Render(&buf, format, width, height, plots...); err != nil {
		return err
	}

	if strings.HasPrefix(path, "gs://") {
		if client == nil {
			return fmt.Errorf("writing %s needs a storage client", path)
		}
		contentType := mime.TypeByExtension("." + format)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := util.UploadObject(ctx, client, path, contentType, buf.Bytes()); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("while writing %s: %w", path, err)
	}
	log.Infof("Figure written to %s", path)
	return nil
}
