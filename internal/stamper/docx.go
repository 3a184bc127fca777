package stamper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/zip"
)

const documentPart = "word/document.xml"

// stampDocx inserts the attribution as the first body paragraph. The package
// is rewritten into a temp file next to the original and renamed over it.
func stampDocx(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open docx package: %w", err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".stamp-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := rewriteDocx(&r.Reader, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to finalize docx: %w", err)
	}
	_ = r.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace docx: %w", err)
	}
	return nil
}

func rewriteDocx(r *zip.Reader, out io.Writer) error {
	w := zip.NewWriter(out)
	found := false

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}

		if f.Name == documentPart {
			found = true
			if content, err = insertAttribution(content); err != nil {
				return err
			}
		}

		pw, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("failed to write part %s: %w", f.Name, err)
		}
		if _, err := pw.Write(content); err != nil {
			return fmt.Errorf("failed to write part %s: %w", f.Name, err)
		}
	}

	if !found {
		return fmt.Errorf("%s not found in package", documentPart)
	}
	return w.Close()
}

// insertAttribution adds a <w:p> before the first paragraph of the body, or
// before the section properties when the body has no paragraphs at all.
func insertAttribution(documentXML []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(documentXML); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", documentPart, err)
	}
	body := doc.FindElement("//w:body")
	if body == nil {
		return nil, fmt.Errorf("%s has no w:body", documentPart)
	}

	p := etree.NewElement("w:p")
	run := p.CreateElement("w:r")
	text := run.CreateElement("w:t")
	text.CreateAttr("xml:space", "preserve")
	text.SetText(Attribution)

	if anchor := firstOf(body, "w:p", "w:sectPr"); anchor != nil {
		body.InsertChildAt(anchor.Index(), p)
	} else {
		body.AddChild(p)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", documentPart, err)
	}
	return out, nil
}

func firstOf(parent *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		if el := parent.SelectElement(tag); el != nil {
			return el
		}
	}
	return nil
}
