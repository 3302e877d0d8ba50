package converter

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/newsupernova0617/convert-for-you/internal/formats"
)

// ffmpegOutputs maps formats to an output extension plus fixed encode
// arguments. Container-only remuxes carry no extra flags.
var ffmpegOutputs = map[formats.Format]struct {
	ext  string
	args []string
}{
	formats.FormatMp3: {".mp3", []string{"-vn", "-codec:a", "libmp3lame"}},
	formats.FormatWav: {".wav", []string{"-vn"}},
	formats.FormatOgg: {".ogg", []string{"-vn", "-codec:a", "libvorbis"}},
	formats.FormatM4a: {".m4a", []string{"-vn", "-codec:a", "aac"}},
	formats.FormatAac: {".aac", []string{"-vn", "-codec:a", "aac"}},

	formats.FormatMp4:  {".mp4", nil},
	formats.FormatMov:  {".mov", nil},
	formats.FormatWebm: {".webm", []string{"-codec:v", "libvpx-vp9", "-codec:a", "libopus"}},
	formats.FormatMkv:  {".mkv", nil},
	formats.FormatGif:  {".gif", []string{"-vf", "fps=12,scale=480:-1:flags=lanczos", "-loop", "0"}},

	formats.FormatCompressVideo: {".mp4", []string{"-codec:v", "libx264", "-crf", "28", "-preset", "medium"}},
}

// FFmpegTranscoder serves the audio and video families through ffmpeg.
type FFmpegTranscoder struct {
	binary string
}

func NewFFmpegTranscoder() *FFmpegTranscoder {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Printf("[ffmpeg] binary not found, media conversions disabled")
		return &FFmpegTranscoder{}
	}
	return &FFmpegTranscoder{binary: bin}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, input []byte, format formats.Format, opts *formats.Options) ([]byte, error) {
	if t.binary == "" {
		return nil, unavailable("transcoder")
	}
	spec, ok := ffmpegOutputs[format]
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("transcoder cannot produce %s", format)}
	}

	workdir, err := os.MkdirTemp("", "ffmpeg-*")
	if err != nil {
		return nil, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workdir)

	in := filepath.Join(workdir, "input.bin")
	if err := os.WriteFile(in, input, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}
	out := filepath.Join(workdir, "output"+spec.ext)

	args := []string{"-hide_banner", "-y", "-i", in}
	args = append(args, spec.args...)
	if opts != nil && opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	args = append(args, out)

	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Message: "transcode failed: " + lastStderrLine(stderr.String(), err)}
	}
	return os.ReadFile(out)
}

// lastStderrLine trims ffmpeg's verbose progress output down to the
// actual failure line.
func lastStderrLine(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return err.Error()
}
