package pdfform

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/jogardn/saleco-docs/internal/document"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfcpu keeps user fonts in a process wide directory and metrics table.
// installed maps directory and PostScript name to the content hash last
// written there.
var userFonts = struct {
	sync.Mutex
	installed map[string]string
}{installed: make(map[string]string)}

func useConfigDir(dir string) error {
	userFonts.Lock()
	defer userFonts.Unlock()
	return api.EnsureDefaultConfigAt(dir)
}

// installUserFont registers the script font as a pdfcpu user font and returns
// the name pdfcpu knows it by. A font already installed with the same content
// is reused.
func installUserFont(ef *document.EmbeddedFont) (string, error) {
	name := ef.PostScriptName
	if name == "" {
		return "", errors.New("font has no PostScript name")
	}

	userFonts.Lock()
	defer userFonts.Unlock()

	if font.UserFontDir == "" {
		model.NewDefaultConfiguration()
	}
	if font.UserFontDir == "" {
		return "", errors.New("pdfcpu user font directory is not configured")
	}

	sum := sha256.Sum256(ef.Data())
	hash := hex.EncodeToString(sum[:])
	key := font.UserFontDir + "/" + name
	if userFonts.installed[key] == hash && font.IsUserFont(name) {
		return name, nil
	}

	if err := font.InstallFontFromBytes(font.UserFontDir, name, ef.Data()); err != nil {
		return "", fmt.Errorf("failed to install font %s: %w", name, err)
	}
	if err := font.LoadUserFonts(); err != nil {
		return "", fmt.Errorf("failed to load user fonts: %w", err)
	}
	if !font.IsUserFont(name) {
		return "", fmt.Errorf("font %s was not registered under its PostScript name", name)
	}

	userFonts.installed[key] = hash
	return name, nil
}

// scriptFontDict adds a Type0 font dict for the user font. pdfcpu replaces
// its glyph program with the subset of glyphs actually drawn when the form is
// filled.
func scriptFontDict(ctx *model.Context, name string) (*types.IndirectRef, error) {
	return pdffont.EnsureFontDict(ctx.XRefTable, name, "", "", false, nil)
}
