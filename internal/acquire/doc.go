// Package acquire downloads source videos with yt-dlp.
//
// Files land in the configured videos directory as <video id>.mp4 and are
// reused on later requests. A per-video file lock keeps two processes from
// downloading the same id at once.
package acquire
