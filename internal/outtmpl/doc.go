// Package outtmpl fills yt-dlp style output templates ahead of time.
//
// Only the named fields supplied by the caller are replaced; every other
// %(field)s placeholder is left intact for yt-dlp to expand at download time.
// Conversions follow printf rules (width, zero padding, precision), and values
// are NFC-normalised with path separators neutralised so a playlist title
// cannot introduce extra directories.
package outtmpl
