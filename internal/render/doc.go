// Package render rasterizes a conversation region for snapshot export.
//
// The Rasterizer lays the turns out in one column: the prompt as a caption,
// the output image scaled to the column width (PNG, JPEG, GIF or WebP
// data URLs), and the model's text wrapped below it. Images that cannot be
// decoded become a grey placeholder so one bad turn never fails a capture.
package render
