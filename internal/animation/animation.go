package animation

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"memeflow/internal/config"
	"memeflow/internal/fileutil"
	"memeflow/internal/flowconfig"
	"memeflow/internal/logging"
	"memeflow/internal/memeflow"
	"memeflow/internal/services"
	"memeflow/internal/services/imagegen"
	"memeflow/internal/stage"
)

// Namespace is the state namespace owned by the animation flow.
const Namespace = "animation"

// NodeMemeAnimation is the flow's only node.
const NodeMemeAnimation = "meme_animation"

// KeyAnimatedMeme is the animation result.
var KeyAnimatedMeme = stage.K(Namespace, "animated_meme")

// Animation styles.
const (
	StyleAuto   = "auto"
	StyleBounce = "bounce"
	StyleShake  = "shake"
	StyleGlow   = "glow"
	StyleZoom   = "zoom"
	StyleNone   = "none"
)

const (
	videoDirName     = "video"
	clipBaseName     = "animated_meme"
	clipSeconds      = 3.0
	formatStatic     = "static"
	defaultClipExt   = ".mp4"
	defaultAutoStyle = StyleGlow
)

// emotionStyles maps a dominant emotion to the style auto picks.
var emotionStyles = map[string]string{
	"joy":        StyleBounce,
	"surprise":   StyleShake,
	"confidence": StyleGlow,
	"triumph":    StyleZoom,
}

// Animator is the image service call the node needs.
type Animator interface {
	Animate(ctx context.Context, req imagegen.AnimateRequest, dest string) (imagegen.Artifact, error)
}

// AnimatedMeme is the node's output. Skipped results carry the reason and
// no file.
type AnimatedMeme struct {
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Path is relative to the run directory.
	Path            string  `json:"path,omitempty"`
	Format          string  `json:"format,omitempty"`
	StyleUsed       string  `json:"style_used,omitempty"`
	IsLoopable      bool    `json:"is_loopable"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SHA256          string  `json:"sha256,omitempty"`
}

// Node animates the final meme.
type Node struct {
	animator Animator
}

// NewNode builds the node.
func NewNode(animator Animator) *Node {
	return &Node{animator: animator}
}

func (n *Node) Name() string { return NodeMemeAnimation }

func (n *Node) Spec() stage.Spec {
	return stage.Spec{
		Requires: []stage.Key{memeflow.KeyFinalMeme, memeflow.KeyContentAnalysis},
		Produces: []stage.Key{KeyAnimatedMeme},
	}
}

func (n *Node) Run(ctx context.Context, in *stage.Input) (*stage.Output, error) {
	var final memeflow.FinalMeme
	if err := in.Decode(memeflow.KeyFinalMeme, &final); err != nil {
		return nil, err
	}
	var analysis memeflow.ContentAnalysis
	if err := in.Decode(memeflow.KeyContentAnalysis, &analysis); err != nil {
		return nil, err
	}
	requested := strings.ToLower(strings.TrimSpace(in.Config.String(flowconfig.KeyAnimationStyle, StyleAuto)))
	if !slices.Contains(config.AnimationStyles, requested) {
		return nil, services.UserInput("animation", NodeMemeAnimation,
			fmt.Sprintf("unsupported animation_style %q (expected one of %s)", requested, strings.Join(config.AnimationStyles, ", ")))
	}

	var (
		result AnimatedMeme
		err    error
	)
	if reason := skipReason(in.Config, analysis); reason != "" {
		result = AnimatedMeme{Skipped: true, SkipReason: reason}
		in.Logger.Info("animation skipped",
			logging.String(logging.FieldEventType, "animation_skipped"),
			logging.String("reason", reason))
	} else {
		style := ResolveStyle(requested, analysis.DominantEmotion)
		source := filepath.Join(in.RunDir, filepath.FromSlash(final.Path))
		if style == StyleNone {
			result, err = copyStatic(in.RunDir, source)
		} else {
			result, err = n.animate(ctx, in.RunDir, source, style)
		}
		if err != nil {
			return nil, err
		}
		in.Logger.Info("meme animated",
			logging.String(logging.FieldEventType, "meme_animated"),
			logging.String("style", result.StyleUsed),
			logging.String("format", result.Format),
			logging.String("file", result.Path))
	}

	out := stage.NewOutput()
	if err := out.Set(KeyAnimatedMeme, result); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveStyle returns the style to render. auto picks by emotion and falls
// back to glow.
func ResolveStyle(requested, emotion string) string {
	if requested != StyleAuto {
		return requested
	}
	if style, ok := emotionStyles[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return style
	}
	return defaultAutoStyle
}

func skipReason(cfg *flowconfig.Config, analysis memeflow.ContentAnalysis) string {
	if cfg.Bool(flowconfig.KeySkipAnimation, false) {
		return "skip_animation is set"
	}
	threshold := cfg.Float(flowconfig.KeyMinMemeWorthiness, 0)
	if analysis.MemeWorthinessScore < threshold {
		return fmt.Sprintf("meme worthiness %.2f is below min_meme_worthiness %.2f", analysis.MemeWorthinessScore, threshold)
	}
	return ""
}

func (n *Node) animate(ctx context.Context, runDir, source, style string) (AnimatedMeme, error) {
	if n.animator == nil {
		return AnimatedMeme{}, services.Wrap(services.ErrConfiguration, "animation", NodeMemeAnimation, "image service is not configured", nil)
	}
	rel := filepath.ToSlash(filepath.Join(videoDirName, clipBaseName+defaultClipExt))
	dest := filepath.Join(runDir, filepath.FromSlash(rel))
	artifact, err := n.animator.Animate(ctx, imagegen.AnimateRequest{
		ImagePath:       source,
		Style:           style,
		DurationSeconds: clipSeconds,
	}, dest)
	if err != nil {
		return AnimatedMeme{}, err
	}
	// Keep the extension in line with what the service returned.
	if ext := extensionFor(artifact.ContentType); ext != "" && ext != defaultClipExt {
		renamed := filepath.ToSlash(filepath.Join(videoDirName, clipBaseName+ext))
		if err := os.Rename(dest, filepath.Join(runDir, filepath.FromSlash(renamed))); err != nil {
			return AnimatedMeme{}, services.Wrap(services.ErrPersistence, "animation", NodeMemeAnimation, "animated meme could not be renamed", err)
		}
		rel = renamed
	}
	return AnimatedMeme{
		Path:            rel,
		Format:          formatOf(artifact.ContentType, rel),
		StyleUsed:       style,
		IsLoopable:      true,
		DurationSeconds: clipSeconds,
		SHA256:          artifact.SHA256,
	}, nil
}

// copyStatic places the still meme where the clip would go.
func copyStatic(runDir, source string) (AnimatedMeme, error) {
	rel := filepath.ToSlash(filepath.Join(videoDirName, clipBaseName+filepath.Ext(source)))
	dest := filepath.Join(runDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return AnimatedMeme{}, services.Wrap(services.ErrPersistence, "animation", NodeMemeAnimation, "video directory could not be created", err)
	}
	if err := fileutil.CopyFile(source, dest); err != nil {
		return AnimatedMeme{}, services.Wrap(services.ErrPersistence, "animation", NodeMemeAnimation, "meme could not be copied", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return AnimatedMeme{}, services.Wrap(services.ErrPersistence, "animation", NodeMemeAnimation, "copied meme is not readable", err)
	}
	return AnimatedMeme{
		Path:      rel,
		Format:    formatStatic,
		StyleUsed: StyleNone,
		SHA256:    fileutil.HashBytes(data),
	}, nil
}

func extensionFor(contentType string) string {
	if contentType == "" {
		return ""
	}
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	slices.Sort(exts)
	return exts[0]
}

func formatOf(contentType, rel string) string {
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return sub
	}
	return strings.TrimPrefix(filepath.Ext(rel), ".")
}
