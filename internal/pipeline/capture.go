package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/pkg/capture"
)

// RunCapture opens the audio device and pumps its frames into the processor
// queue until ctx is cancelled or the device fails.
//
// The pump never blocks on the processor: a full queue drops the frame, which
// Enqueue counts. A device error is a resource fault and is returned to the
// caller; the supervisor treats it as fatal.
func RunCapture(ctx context.Context, device capture.Device, cfg capture.StreamConfig, proc *Processor, metrics *observe.Metrics, logger *slog.Logger) error {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	stream, err := device.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}
	defer stream.Close()

	logger.Info("audio capture started",
		"sample_rate", cfg.SampleRate,
		"frame_size_ms", cfg.FrameSizeMs,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-stream.Errs():
			return fmt.Errorf("capture: device fault: %w", err)

		case frame, ok := <-stream.Frames():
			if !ok {
				// A pending device error takes precedence over the bare
				// closed-stream report.
				select {
				case err := <-stream.Errs():
					return fmt.Errorf("capture: device fault: %w", err)
				default:
				}
				return fmt.Errorf("capture: stream closed unexpectedly")
			}
			metrics.FramesCaptured.Add(ctx, 1)
			if !proc.Enqueue(frame) {
				logger.Debug("frame dropped, queue full", "dropped_total", proc.Dropped())
			}
		}
	}
}
