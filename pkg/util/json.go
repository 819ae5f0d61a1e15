package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PrintPrettyJSON prints v as indented JSON. HTML characters are left
// unescaped so model output reads the same as in text mode.
func PrintPrettyJSON(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	fmt.Print(buf.String())
	return nil
}
