package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultFFmpegPath = "ffmpeg"
	defaultFFprobe    = "ffprobe"
	defaultWidth      = 1080
	defaultHeight     = 1920
)

var ErrNoStills = errors.New("no stills to assemble")

type Assembler struct {
	ffmpegPath string
	ffprobe    string
}

func NewAssembler(ffmpegPath, ffprobePath string) *Assembler {
	if ffmpegPath == "" {
		ffmpegPath = defaultFFmpegPath
	}
	if ffprobePath == "" {
		ffprobePath = defaultFFprobe
	}
	return &Assembler{
		ffmpegPath: ffmpegPath,
		ffprobe:    ffprobePath,
	}
}

// ParseResolution reads "WIDTHxHEIGHT", falling back to 1080x1920.
func ParseResolution(res string) (int, int) {
	parts := strings.Split(res, "x")
	if len(parts) != 2 {
		return defaultWidth, defaultHeight
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return defaultWidth, defaultHeight
	}
	return w, h
}

// AssembleStills holds each still for its share of duration*fps frames and encodes the
// sequence as H.264.
func (a *Assembler) AssembleStills(ctx context.Context, stills []string, outputPath string, duration, fps int) error {
	args, err := buildStillsArgs(stills, outputPath, duration, fps)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, string(output))
	}
	return nil
}

func buildStillsArgs(stills []string, outputPath string, duration, fps int) ([]string, error) {
	if len(stills) == 0 {
		return nil, ErrNoStills
	}
	if duration <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid duration %ds at %d fps", duration, fps)
	}

	plan := PlanFrames(duration, fps, len(stills))
	args := []string{"-y"}
	var filters, labels []string
	input := 0
	for i, still := range stills {
		if plan[i] == 0 {
			continue
		}
		seconds := float64(plan[i]) / float64(fps)
		args = append(args,
			"-loop", "1",
			"-framerate", strconv.Itoa(fps),
			"-t", strconv.FormatFloat(seconds, 'f', 6, 64),
			"-i", still,
		)
		label := fmt.Sprintf("s%d", input)
		filters = append(filters, fmt.Sprintf(
			"[%d:v]trim=end_frame=%d,setpts=PTS-STARTPTS,format=yuv420p[%s]",
			input, plan[i], label,
		))
		labels = append(labels, "["+label+"]")
		input++
	}

	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[v]", strings.Join(labels, ""), input))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[v]",
		"-frames:v", strconv.Itoa(duration*fps),
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "fast",
		"-movflags", "+faststart",
		outputPath,
	)
	return args, nil
}

type ProbeResult struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

func (p ProbeResult) Portrait() bool {
	return p.Height > p.Width
}

// Probe reads the first video stream's geometry, frame rate, decoded frame count and duration.
func (a *Assembler) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames,nb_read_frames:format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, a.ffprobe, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(output)
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	stream := out.Streams[0]
	result := &ProbeResult{
		Width:  stream.Width,
		Height: stream.Height,
		FPS:    parseRate(stream.RFrameRate),
	}

	frames := stream.NbReadFrames
	if frames == "" || frames == "N/A" {
		frames = stream.NbFrames
	}
	result.Frames, _ = strconv.Atoi(frames)
	result.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	return result, nil
}

func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
