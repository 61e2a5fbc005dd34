// Package preflight provides readiness checks for the configuration and
// filesystem paths a flow depends on.
//
// These checks run in two contexts:
//   - workflow.Runner calls RunAll before executing a flow. If any check
//     fails, the flow never starts, so no run state is written for a
//     doomed invocation.
//   - The CLI "memeflow config check" command prints every result and adds
//     a reachability probe of the image service (CheckImageService).
//
// Checks are scoped to the flow being run: the text flow needs business
// documents and a language model, the meme flow needs brand assets,
// templates and both collaborators, the animation flow only the image
// service.
package preflight
