package stamper

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// watermarkDesc mirrors the channel's overlay: bold Helvetica at 40pt, gray,
// translucent, rotated 45 degrees and anchored 300/450 points from the bottom left.
const watermarkDesc = "fontname:Helvetica-Bold, points:40, scalefactor:1 abs, rotation:45, " +
	"fillcolor:#808080, opacity:0.2, position:bl, offset:300 450"

// stampPDF puts the text overlay on top of every page and rewrites the file.
func stampPDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	if err := api.AddTextWatermarksFile(path, "", nil, true, WatermarkText, watermarkDesc, cfg); err != nil {
		return fmt.Errorf("failed to add watermark: %w", err)
	}
	return nil
}
