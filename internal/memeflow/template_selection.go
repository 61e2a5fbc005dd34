package memeflow

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"memeflow/internal/fileutil"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/imagegen"
	"memeflow/internal/stage"
	"memeflow/internal/textutil"
)

// templateExtensions are the image formats a template may use.
var templateExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// Caption bands as fractions of the template height.
const (
	topZoneStart    = 0.10
	bottomZoneStart = 0.85
	zoneHeight      = 0.15
)

// TemplateSelectionNode picks a template from the category subdirectories
// of the templates directory.
type TemplateSelectionNode struct{}

// NewTemplateSelectionNode builds the node.
func NewTemplateSelectionNode() *TemplateSelectionNode {
	return &TemplateSelectionNode{}
}

func (n *TemplateSelectionNode) Name() string { return NodeTemplateSelection }

func (n *TemplateSelectionNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyContentAnalysis},
		Produces: []stage.Key{KeyTemplateSelection},
	}
}

func (n *TemplateSelectionNode) Run(_ context.Context, in *stage.Input) (*stage.Output, error) {
	var analysis ContentAnalysis
	if err := in.Decode(KeyContentAnalysis, &analysis); err != nil {
		return nil, err
	}
	root := strings.TrimSpace(in.Config.String(flowconfig.KeyMemeTemplatesPath, ""))
	catalog, err := scanTemplates(root)
	if err != nil {
		return nil, err
	}
	selection, err := chooseTemplate(catalog, analysis.SuggestedTemplateCategories, in.RunID)
	if err != nil {
		return nil, err
	}
	dims, err := imageDimensions(selection.Path)
	if err != nil {
		return nil, err
	}
	selection.Dimensions = dims
	selection.TextZones = textZones(dims)

	in.Logger.Info("template selected",
		logging.String(logging.FieldEventType, "template_selected"),
		logging.String("template", selection.RelPath),
		logging.String("category", selection.Category),
		logging.Bool("suggested", selection.Suggested),
		logging.Int("candidates", selection.Candidates),
		logging.Int("width", dims.Width),
		logging.Int("height", dims.Height))

	out := stage.NewOutput()
	if err := out.Set(KeyTemplateSelection, selection); err != nil {
		return nil, err
	}
	return out, nil
}

// templateCatalog maps a category token to its templates, sorted by
// relative path.
type templateCatalog map[string][]fileutil.DirEntry

func (c templateCatalog) categories() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// scanTemplates groups templates by their top-level directory. Files at the
// root of the templates directory have no category and are ignored.
func scanTemplates(root string) (templateCatalog, error) {
	if root == "" {
		return nil, services.UserInput("memeflow", NodeTemplateSelection, "meme_templates_path is not set")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "memeflow", NodeTemplateSelection,
				"meme templates directory does not exist", err)
		}
		return nil, services.Wrap(services.ErrUserInput, "memeflow", NodeTemplateSelection,
			"meme templates directory is not readable", err)
	}
	entries, err := fileutil.ListFiles(root, templateExtensions...)
	if err != nil {
		return nil, services.Wrap(services.ErrUserInput, "memeflow", NodeTemplateSelection,
			"meme templates directory is not readable", err)
	}
	catalog := make(templateCatalog)
	for _, entry := range entries {
		category, _, nested := strings.Cut(entry.RelPath, "/")
		if !nested {
			continue
		}
		token := textutil.SanitizeToken(category)
		catalog[token] = append(catalog[token], entry)
	}
	if len(catalog) == 0 {
		return nil, services.UserInput("memeflow", NodeTemplateSelection,
			"no template images were found in category subdirectories of the meme templates directory")
	}
	return catalog, nil
}

// chooseTemplate takes the first suggested category that has templates, or
// any category otherwise. The pick within the candidates is seeded by the
// run id, so a run always gets the same template.
func chooseTemplate(catalog templateCatalog, suggested []string, runID string) (TemplateSelection, error) {
	var (
		category  string
		preferred bool
	)
	for _, name := range suggested {
		if _, ok := catalog[textutil.SanitizeToken(name)]; ok {
			category = textutil.SanitizeToken(name)
			preferred = true
			break
		}
	}
	if category == "" {
		names := catalog.categories()
		category = names[seed(runID, "category")%uint64(len(names))]
	}
	templates := catalog[category]
	if len(templates) == 0 {
		return TemplateSelection{}, services.Wrap(services.ErrContract, "memeflow", NodeTemplateSelection,
			fmt.Sprintf("category %q has no templates", category), nil)
	}
	entry := templates[seed(runID, "template:"+category)%uint64(len(templates))]
	return TemplateSelection{
		Path:       entry.Path,
		RelPath:    entry.RelPath,
		Category:   category,
		Filename:   path.Base(entry.RelPath),
		Suggested:  preferred,
		Candidates: len(templates),
	}, nil
}

func seed(runID, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(salt))
	return h.Sum64()
}

func imageDimensions(path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, services.Wrap(services.ErrUserInput, "memeflow", NodeTemplateSelection, "template image is not readable", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, services.Wrap(services.ErrUserInput, "memeflow", NodeTemplateSelection, "template image could not be decoded", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, services.UserInput("memeflow", NodeTemplateSelection, "template image has no pixels")
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

func textZones(d Dimensions) TextZones {
	h := float64(d.Height)
	band := int(h * zoneHeight)
	return TextZones{
		Top:    imagegen.TextZone{Y: int(h * topZoneStart), Height: band},
		Bottom: imagegen.TextZone{Y: int(h * bottomZoneStart), Height: band},
	}
}
