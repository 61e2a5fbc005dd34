// Package animation implements the animation flow: a single node that turns
// the rendered meme into a short looping clip, or records why it did not.
package animation
