package extract

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv"
)

// docxText pulls the raw text out of a .docx container.
func docxText(data []byte) (text string, err error) {
	defer recoverToError(&err)

	s, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("docx convert: %w", err)
	}
	return s, nil
}

// docText handles the legacy binary .doc format.
func docText(data []byte) (text string, err error) {
	defer recoverToError(&err)

	s, _, err := docconv.ConvertDoc(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("doc convert: %w", err)
	}
	return s, nil
}
