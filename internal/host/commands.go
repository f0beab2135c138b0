package host

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mase1981/uc-intg-jellyfin/internal/domain"
)

type commandDispatcher interface {
	Dispatch(ctx context.Context, entityID string, cmd domain.Command, params domain.CommandParams) error
}

type commandFrame struct {
	EntityID          string `json:"entity_id"`
	Command           string `json:"command"`
	SeekPositionTicks int64  `json:"seek_position_ticks"`
	Volume            int    `json:"volume"`
}

// CommandReader consumes newline-delimited JSON command frames from the
// host runtime and hands them to the dispatcher. One frame per line:
//
//	{"entity_id":"jf_ab12...","command":"play_pause"}
//
// Malformed frames are logged and skipped; the stream stays open until
// EOF or context cancellation.
type CommandReader struct {
	in         io.Reader
	dispatcher commandDispatcher
	log        *slog.Logger
}

func NewCommandReader(in io.Reader, dispatcher commandDispatcher, logger *slog.Logger) *CommandReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CommandReader{in: in, dispatcher: dispatcher, log: logger}
}

func (c *CommandReader) Run(ctx context.Context) {
	lines := make(chan []byte)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.log.Warn("command_stream_error", slog.String("error", err.Error()))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				c.log.Info("command_stream_closed")
				return
			}
			c.handle(ctx, line)
		}
	}
}

func (c *CommandReader) handle(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}

	var frame commandFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		c.log.Warn("command_frame_invalid", slog.String("error", err.Error()))
		return
	}

	cmd, ok := domain.ParseCommand(frame.Command)
	if !ok {
		c.log.Warn("command_unknown", slog.String("command", frame.Command))
		return
	}

	params := domain.CommandParams{
		SeekPositionTicks: frame.SeekPositionTicks,
		Volume:            frame.Volume,
	}
	if err := c.dispatcher.Dispatch(ctx, frame.EntityID, cmd, params); err != nil {
		c.log.Warn("command_dispatch_failed",
			slog.String("entity_id", frame.EntityID),
			slog.String("command", frame.Command),
			slog.String("error", err.Error()),
		)
	}
}
