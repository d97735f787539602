// Package assets provides files embedded at compile time: the default
// watermark-removal instruction list and the upload page.
package assets

import (
	"embed"
	"io/fs"
)

// RemovalInstructionsYAML is the default ordered instruction list.
//
//go:embed prompts/removal-instructions.yaml
var RemovalInstructionsYAML []byte

//go:embed web
var webFS embed.FS

// Web returns the static upload page rooted at "/".
func Web() fs.FS {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	return sub
}
