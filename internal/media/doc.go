// Package media runs the external tools the playback pipeline depends on:
// ffmpeg for blank fillers, audio stripping, concatenation and multiplexing,
// ImageMagick for blank canvases, and ffprobe for video metadata.
//
// Argument construction is kept in pure builder functions so it can be
// tested without the binaries installed. Execution goes through a Runner;
// the default runner wraps exec.CommandContext and captures stderr for
// failure classification.
package media
