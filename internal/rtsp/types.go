// Package rtsp models the stream-negotiation payloads exchanged inside
// the session-control protocol's SETUP and TEARDOWN methods: property
// list dictionaries that select stream kinds and carry their parameters
// and key material.
package rtsp

// StreamID tags a stream kind on the wire. Every structure that tags a
// stream uses exactly one of these values; anything else is a decode
// error, never silently ignored.
type StreamID uint32

const (
	StreamAudioRealtime StreamID = 96
	StreamAudioBuffered StreamID = 103
	StreamVideo         StreamID = 110
)

// Valid reports whether the tag is one of the negotiated stream kinds.
func (s StreamID) Valid() bool {
	switch s {
	case StreamAudioRealtime, StreamAudioBuffered, StreamVideo:
		return true
	}
	return false
}

func (s StreamID) String() string {
	switch s {
	case StreamAudioRealtime:
		return "audio-realtime"
	case StreamAudioBuffered:
		return "audio-buffered"
	case StreamVideo:
		return "video"
	}
	return "unknown"
}

// TimingProtocol selects the sender's clock synchronization scheme.
type TimingProtocol string

const (
	TimingPTP TimingProtocol = "PTP"
	TimingNTP TimingProtocol = "NTP"
)

// SenderInfo is the session-scoped SETUP variant, sent once. It carries
// the sender's identity, the encrypted session key and IV consumed by
// the cipher layer, and the timing protocol choice. TimingPort is only
// meaningful for NTP, where it names the sender's remote timing port.
type SenderInfo struct {
	Name           string         `plist:"name"`
	Model          string         `plist:"model"`
	DeviceID       string         `plist:"deviceID"`
	MacAddr        string         `plist:"macAddress"`
	OSName         string         `plist:"osName,omitempty"`
	OSVersion      string         `plist:"osVersion,omitempty"`
	OSBuildVersion string         `plist:"osBuildVersion,omitempty"`
	EKey           []byte         `plist:"ekey"`
	EIV            []byte         `plist:"eiv"`
	TimingProtocol TimingProtocol `plist:"timingProtocol"`
	TimingPort     uint16         `plist:"timingPort,omitempty"`
}

// SetupRequest is the decoded SETUP payload. Exactly one of the two
// fields is set: SenderInfo for the session-scoped variant, Streams for
// the per-stream-group variant. See DecodeSetup for the shape probe.
type SetupRequest struct {
	SenderInfo *SenderInfo
	Streams    []StreamRequest
}

// StreamRequest is one per-stream SETUP entry, discriminated on the
// wire by its type field.
type StreamRequest interface {
	StreamType() StreamID
}

// AudioRealtimeRequest asks for low-latency audio over UDP, with no
// reliability layer. Latencies are in samples.
type AudioRealtimeRequest struct {
	ContentType       uint8  `plist:"ct"`
	AudioFormat       uint32 `plist:"audioFormat"`
	SamplesPerFrame   uint32 `plist:"spf"`
	SampleRate        uint32 `plist:"sr"`
	LatencyMin        uint32 `plist:"latencyMin"`
	LatencyMax        uint32 `plist:"latencyMax"`
	RemoteControlPort uint16 `plist:"controlPort"`
}

func (AudioRealtimeRequest) StreamType() StreamID { return StreamAudioRealtime }

// AudioBufferedRequest asks for buffered audio over TCP with
// authenticated encryption keyed by the per-stream shared key.
type AudioBufferedRequest struct {
	ContentType      uint8  `plist:"ct"`
	AudioFormat      uint32 `plist:"audioFormat"`
	AudioFormatIndex uint8  `plist:"audioFormatIndex,omitempty"`
	SamplesPerFrame  uint32 `plist:"spf"`
	SharedKey        []byte `plist:"shk"`
	ClientID         string `plist:"clientID,omitempty"`
}

func (AudioBufferedRequest) StreamType() StreamID { return StreamAudioBuffered }

// VideoRequest asks for video over TCP with authenticated encryption.
type VideoRequest struct {
	StreamConnectionID int64  `plist:"streamConnectionID"`
	LatencyMs          uint32 `plist:"latencyMs"`
}

func (VideoRequest) StreamType() StreamID { return StreamVideo }

// SetupResponse mirrors SetupRequest: a non-nil Streams list answers a
// streams request; otherwise the event/timing port pair answers a
// sender-info request. Exactly one shape is emitted per round trip.
type SetupResponse struct {
	EventPort  uint16
	TimingPort uint16
	Streams    []StreamResponse
}

// StreamResponse is one per-stream SETUP answer. The encoding is
// adjacency-tagged: each variant emits only the keys meaningful for its
// kind, so a decoder never sees a control-port key on a video stream.
type StreamResponse interface {
	// streamDict renders the adjacency-tagged wire dictionary.
	streamDict() map[string]any
}

// AudioRealtimeResponse assigns the local data and control ports for a
// realtime audio stream.
type AudioRealtimeResponse struct {
	ID          uint64
	DataPort    uint16
	ControlPort uint16
}

func (r AudioRealtimeResponse) streamDict() map[string]any {
	return map[string]any{
		"type":        uint8(StreamAudioRealtime),
		"streamID":    r.ID,
		"dataPort":    r.DataPort,
		"controlPort": r.ControlPort,
	}
}

// AudioBufferedResponse assigns the local data port and advertises the
// receiver-side buffer size for a buffered audio stream.
type AudioBufferedResponse struct {
	ID              uint64
	DataPort        uint16
	AudioBufferSize uint32
}

func (r AudioBufferedResponse) streamDict() map[string]any {
	return map[string]any{
		"type":            uint8(StreamAudioBuffered),
		"streamID":        r.ID,
		"dataPort":        r.DataPort,
		"audioBufferSize": r.AudioBufferSize,
	}
}

// VideoResponse assigns the local data port for a video stream.
type VideoResponse struct {
	ID       uint64
	DataPort uint16
}

func (r VideoResponse) streamDict() map[string]any {
	return map[string]any{
		"type":     uint8(StreamVideo),
		"streamID": r.ID,
		"dataPort": r.DataPort,
	}
}

// Teardown identifies which active streams to stop. A nil Streams list
// means the whole session is torn down, not nothing.
type Teardown struct {
	Streams []TeardownRequest `plist:"streams"`
}

// All reports whether the teardown covers the entire session.
func (t *Teardown) All() bool { return t.Streams == nil }

// TeardownRequest identifies exactly one active stream to stop.
type TeardownRequest struct {
	ID   uint64   `plist:"streamID"`
	Type StreamID `plist:"type"`
}
