// Package export turns a conversation into downloadable artifacts.
//
// Two formats are produced:
//
//   - sketch-conversation.json: every turn in order, as an indented JSON
//     array with the Turn field order. ParseJSON reads it back losslessly.
//   - sketch-conversation.pdf: the conversation captured by a Renderer and
//     placed on one A4 portrait page at full width. Content beyond the page
//     height is cut off.
//
// Exporting an empty conversation does nothing. A snapshot failure is shown
// to the user through a Notifier and never changes the conversation.
//
// # Usage
//
//	e := export.New(session, export.NewDirSink(dir),
//	    export.WithRenderer(render.New(logger)),
//	    export.WithLogger(logger))
//	art, err := e.ExportJSON(ctx)
package export
