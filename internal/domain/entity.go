package domain

// DisplayState is the projected media-player payload pushed to the host
// runtime. The struct is comparable so reconciliation can suppress
// redundant host updates with a plain equality check.
type DisplayState struct {
	State    PlayState
	Title    string
	Artist   string
	Album    string
	ImageURL string

	PositionSeconds int64
	DurationSeconds int64
	Progress        float64
	ProgressKnown   bool

	Volume int
	Muted  bool
}

// StoppedDisplay is the display an entity falls back to when its session is
// gone: state stopped, everything else cleared.
func StoppedDisplay() DisplayState {
	return DisplayState{State: PlayStateStopped}
}

type Command string

const (
	CommandPlay        Command = "play"
	CommandPause       Command = "pause"
	CommandPlayPause   Command = "play_pause"
	CommandStop        Command = "stop"
	CommandNext        Command = "next"
	CommandPrevious    Command = "previous"
	CommandFastForward Command = "fast_forward"
	CommandRewind      Command = "rewind"
	CommandSeek        Command = "seek"
	CommandSetVolume   Command = "set_volume"
	CommandVolumeUp    Command = "volume_up"
	CommandVolumeDown  Command = "volume_down"
	CommandMuteToggle  Command = "mute_toggle"
)

// ParseCommand validates a raw command name from the host runtime.
func ParseCommand(raw string) (Command, bool) {
	switch cmd := Command(raw); cmd {
	case CommandPlay, CommandPause, CommandPlayPause, CommandStop,
		CommandNext, CommandPrevious, CommandFastForward, CommandRewind,
		CommandSeek, CommandSetVolume, CommandVolumeUp, CommandVolumeDown,
		CommandMuteToggle:
		return cmd, true
	default:
		return "", false
	}
}

// CommandParams carries optional arguments for a dispatched command.
type CommandParams struct {
	SeekPositionTicks int64
	Volume            int
}
