package memeflow

import (
	"context"
	"path/filepath"
	"strings"

	"memeflow/internal/logging"
	"memeflow/internal/services"
	"memeflow/internal/services/imagegen"
	"memeflow/internal/stage"
)

// RenderingNode draws the winning caption onto the branded template.
type RenderingNode struct {
	images Imager
}

// NewRenderingNode builds the node.
func NewRenderingNode(images Imager) *RenderingNode {
	return &RenderingNode{images: images}
}

func (n *RenderingNode) Name() string { return NodeMemeRendering }

func (n *RenderingNode) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{KeyTemplateSelection, KeyBrandedTemplate, KeyMemeText},
		Produces: []stage.Key{KeyFinalMeme},
	}
}

func (n *RenderingNode) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	if n.images == nil {
		return nil, services.Wrap(services.ErrConfiguration, "memeflow", NodeMemeRendering, "image service is not configured", nil)
	}
	var selection TemplateSelection
	if err := in.Decode(KeyTemplateSelection, &selection); err != nil {
		return nil, err
	}
	var branded BrandedTemplate
	if err := in.Decode(KeyBrandedTemplate, &branded); err != nil {
		return nil, err
	}
	var text MemeText
	if err := in.Decode(KeyMemeText, &text); err != nil {
		return nil, err
	}
	best, ok := text.Best()
	if !ok {
		return nil, services.Wrap(services.ErrContract, "memeflow", NodeMemeRendering, "no caption was selected", nil)
	}

	top, bottom := best.TopText, best.BottomText
	if branded.Brand.UppercaseCaptions() {
		top, bottom = strings.ToUpper(top), strings.ToUpper(bottom)
	}
	rel := filepath.ToSlash(filepath.Join(memesDirName, finalMemeFileName))
	artifact, err := n.images.Render(ctx, imagegen.RenderRequest{
		ImagePath:  filepath.Join(in.RunDir, filepath.FromSlash(branded.Path)),
		TopText:    top,
		BottomText: bottom,
		TopZone:    selection.TextZones.Top,
		BottomZone: selection.TextZones.Bottom,
	}, filepath.Join(in.RunDir, rel))
	if err != nil {
		return nil, err
	}
	in.Logger.Info("meme rendered",
		logging.String(logging.FieldEventType, "meme_rendered"),
		logging.String("file", rel),
		logging.String("candidate", best.CandidateID),
		logging.String("top_text", top),
		logging.String("bottom_text", bottom))

	out := stage.NewOutput()
	if err := out.Set(KeyFinalMeme, FinalMeme{
		Path:        rel,
		TopText:     top,
		BottomText:  bottom,
		CandidateID: best.CandidateID,
		Score:       best.Combined,
		Template:    selection.RelPath,
		ContentType: artifact.ContentType,
		Bytes:       artifact.Bytes,
		SHA256:      artifact.SHA256,
	}); err != nil {
		return nil, err
	}
	return out, nil
}
