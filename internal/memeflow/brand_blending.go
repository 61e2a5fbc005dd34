package memeflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/imagegen"
	"memeflow/internal/stage"
)

const brandConfigFileName = "brand_config.json"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// BrandBlendingNode applies a light brand treatment to the template: a
// color shift toward the primary color, a thin border, and the logo as a
// watermark when one is configured.
type BrandBlendingNode struct {
	images Imager
}

// NewBrandBlendingNode builds the node.
func NewBrandBlendingNode(images Imager) *BrandBlendingNode {
	return &BrandBlendingNode{images: images}
}

func (n *BrandBlendingNode) Name() string { return NodeBrandBlending }

func (n *BrandBlendingNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyTemplateSelection},
		Produces: []stage.Key{KeyBrandedTemplate},
	}
}

func (n *BrandBlendingNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	if n.images == nil {
		return nil, services.Wrap(services.ErrConfiguration, "memeflow", NodeBrandBlending, "image service is not configured", nil)
	}
	var selection TemplateSelection
	if err := in.Decode(KeyTemplateSelection, &selection); err != nil {
		return nil, err
	}
	brandDir := strings.TrimSpace(in.Config.String(flowconfig.KeyBrandIdentityPath, ""))
	brand, err := LoadBrandConfig(brandDir)
	if err != nil {
		return nil, err
	}

	modifications := map[string]bool{"color_adjustment": true, "border_added": true, "logo_added": false}
	var assets []imagegen.Asset
	if brand.LogoPath != "" {
		logo := filepath.Join(brandDir, filepath.FromSlash(brand.LogoPath))
		if info, err := os.Stat(logo); err == nil && info.Mode().IsRegular() {
			assets = append(assets, imagegen.Asset{Name: "logo", Path: logo})
			modifications["logo_added"] = true
		} else {
			logging.WarnWithContext(in.Logger, "brand logo not found; blending without it", "brand_logo_missing",
				logging.String("logo_path", brand.LogoPath),
				logging.String(logging.FieldImpact, "branded template has no watermark"),
				logging.String(logging.FieldErrorHint, "fix logo_path in "+brandConfigFileName))
		}
	}

	rel := filepath.ToSlash(filepath.Join(memesDirName, brandedFileName))
	artifact, err := n.images.Brand(ctx, imagegen.BrandRequest{
		TemplatePath: selection.Path,
		Assets:       assets,
		Instructions: brandInstructions(brand, modifications["logo_added"]),
	}, filepath.Join(in.RunDir, rel))
	if err != nil {
		return nil, err
	}
	in.Logger.Info("template branded",
		logging.String(logging.FieldEventType, "template_branded"),
		logging.String("brand", brand.BrandName),
		logging.String("file", rel),
		logging.Bool("logo", modifications["logo_added"]),
		logging.Int("bytes", artifact.Bytes))

	out := stage.NewOutput()
	if err := out.Set(KeyBrandedTemplate, BrandedTemplate{
		Path:          rel,
		OriginalPath:  selection.Path,
		Brand:         brand,
		Modifications: modifications,
		Artifact:      artifact,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadBrandConfig reads and validates brand_config.json from dir.
func LoadBrandConfig(dir string) (BrandConfig, error) {
	if dir == "" {
		return BrandConfig{}, services.UserInput("memeflow", "load brand config", "brand_identity_path is not set")
	}
	data, err := os.ReadFile(filepath.Join(dir, brandConfigFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BrandConfig{}, services.Wrap(services.ErrNotFound, "memeflow", "load brand config",
				brandConfigFileName+" was not found in the brand identity directory", err)
		}
		return BrandConfig{}, services.Wrap(services.ErrUserInput, "memeflow", "load brand config",
			brandConfigFileName+" is not readable", err)
	}
	var brand BrandConfig
	if err := json.Unmarshal(data, &brand); err != nil {
		return BrandConfig{}, services.Wrap(services.ErrUserInput, "memeflow", "load brand config",
			brandConfigFileName+" is not valid JSON", err)
	}
	brand.BrandName = strings.TrimSpace(brand.BrandName)
	if brand.BrandName == "" {
		return BrandConfig{}, services.UserInput("memeflow", "load brand config", "brand_name is required")
	}
	for _, color := range []struct{ field, value string }{
		{"primary_color", brand.PrimaryColor},
		{"secondary_color", brand.SecondaryColor},
	} {
		if !hexColor.MatchString(strings.TrimSpace(color.value)) {
			return BrandConfig{}, services.UserInput("memeflow", "load brand config",
				fmt.Sprintf("%s must be a hex color like #1a2b3c, got %q", color.field, color.value))
		}
	}
	if brand.TextStyleRules.StrokeColor == "" {
		brand.TextStyleRules.StrokeColor = "#000000"
	}
	if brand.TextStyleRules.StrokeWidth <= 0 {
		brand.TextStyleRules.StrokeWidth = 2
	}
	return brand, nil
}

func brandInstructions(brand BrandConfig, logo bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shift colors subtly (10%%) toward %s while keeping the template recognizable.", brand.PrimaryColor)
	fmt.Fprintf(&b, " Draw a 3px %s border.", brand.PrimaryColor)
	if logo {
		b.WriteString(" Place the logo asset bottom right at 8% of the image width and 60% opacity.")
	}
	if brand.VisualTone != "" {
		fmt.Fprintf(&b, " Visual tone: %s.", brand.VisualTone)
	}
	return b.String()
}
