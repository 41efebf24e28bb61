package formats

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"ytqueue/internal/services"
)

// Logical format names accepted by Resolve.
const (
	FormatAny       = "any"
	FormatMP4       = "mp4"
	FormatThumbnail = "thumbnail"
	FormatCaptions  = "captions"
	customPrefix    = "custom:"
)

// Quality names with special meaning; any other quality must be a positive integer.
const (
	QualityBest    = "best"
	QualityBestIOS = "best_ios"
	QualityWorst   = "worst"
	QualityAudio   = "audio"
)

// AudioFormats lists the audio containers that trigger audio extraction.
var AudioFormats = []string{"m4a", "mp3", "opus", "wav", "flac"}

// IsAudioFormat reports whether format names an audio container.
func IsAudioFormat(format string) bool {
	return slices.Contains(AudioFormats, format)
}

// IsAudioOnly reports whether the request produces audio only, which routes
// the download to the audio root.
func IsAudioOnly(format, quality string) bool {
	return quality == QualityAudio || IsAudioFormat(format)
}

// Resolve maps a logical format and quality to a yt-dlp format selector.
func Resolve(format, quality string) (string, error) {
	if expr, ok := strings.CutPrefix(format, customPrefix); ok {
		return strings.TrimPrefix(expr, " "), nil
	}

	switch {
	case format == FormatThumbnail, format == FormatCaptions:
		return "bestaudio/best", nil
	case IsAudioFormat(format):
		if quality != QualityBest && !isPositiveInt(quality) {
			return "", unknownQuality(format, quality)
		}
		return fmt.Sprintf("bestaudio[ext=%s]/bestaudio/best", format), nil
	case format == FormatMP4, format == FormatAny:
		return videoSelector(format, quality)
	default:
		return "", services.Wrap(services.ErrConfiguration, "formats", "resolve", fmt.Sprintf("unknown format %q", format), nil)
	}
}

func videoSelector(format, quality string) (string, error) {
	if quality == QualityAudio {
		return "bestaudio/best", nil
	}

	var vfmt, afmt string
	if format == FormatMP4 {
		vfmt, afmt = "[ext=mp4]", "[ext=m4a]"
	}

	var vres string
	switch quality {
	case QualityBest, QualityBestIOS, QualityWorst:
	default:
		if !isPositiveInt(quality) {
			return "", unknownQuality(format, quality)
		}
		vres = "[height<=" + quality + "]"
	}
	vcombo := vres + vfmt

	switch quality {
	case QualityBestIOS:
		// Ordered from strict iOS-playable codecs with AAC down to any container match.
		const iosCodec = "[vcodec~='^((he|a)vc|h26[45])']"
		return "bestvideo" + iosCodec + vres + "+bestaudio[acodec=aac]" +
			"/bestvideo" + iosCodec + vres + "+bestaudio" + afmt +
			"/bestvideo" + vcombo + "+bestaudio" + afmt +
			"/best" + vcombo, nil
	case QualityWorst:
		return "worstvideo" + vcombo + "+worstaudio" + afmt + "/worst" + vcombo, nil
	default:
		return "bestvideo" + vcombo + "+bestaudio" + afmt + "/best" + vcombo, nil
	}
}

// ValidateQuality checks a format/quality pair without building a selector.
func ValidateQuality(format, quality string) error {
	_, err := Resolve(format, quality)
	return err
}

func unknownQuality(format, quality string) error {
	return services.Wrap(services.ErrConfiguration, "formats", "resolve", fmt.Sprintf("unknown quality %q for format %q", quality, format), nil)
}

func isPositiveInt(value string) bool {
	n, err := strconv.Atoi(value)
	return err == nil && n > 0
}
