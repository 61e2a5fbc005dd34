// Package memeflow implements the meme flow nodes: content sentiment
// analysis, template selection, template image analysis, brand blending,
// candidate text generation, ranked text selection, and final rendering.
//
// Nodes read the text flow's namespace when it completed on the same run and
// fall back to the input_text option otherwise. Every collaborator sits
// behind a small interface so tests can script the language model and the
// image service.
package memeflow
