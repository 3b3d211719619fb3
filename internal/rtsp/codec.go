package rtsp

import (
	"fmt"

	"howett.net/plist"
)

// streamDecoders is the stream-type registry: one entry per negotiated
// kind, naming the keys the variant cannot decode without and
// re-decoding the full dictionary against it. New stream kinds are
// added here, not in branch logic.
var streamDecoders = map[StreamID]struct {
	required []string
	decode   func(unmarshal func(any) error) (StreamRequest, error)
}{
	StreamAudioRealtime: {
		required: []string{"ct", "audioFormat", "spf", "sr", "latencyMin", "latencyMax", "controlPort"},
		decode: func(unmarshal func(any) error) (StreamRequest, error) {
			var r AudioRealtimeRequest
			return r, unmarshal(&r)
		},
	},
	StreamAudioBuffered: {
		required: []string{"ct", "audioFormat", "spf", "shk"},
		decode: func(unmarshal func(any) error) (StreamRequest, error) {
			var r AudioBufferedRequest
			return r, unmarshal(&r)
		},
	},
	StreamVideo: {
		required: []string{"streamConnectionID", "latencyMs"},
		decode: func(unmarshal func(any) error) (StreamRequest, error) {
			var r VideoRequest
			return r, unmarshal(&r)
		},
	},
}

// senderInfoRequired lists the sender-info keys a SETUP cannot omit.
// The os* fields and (for PTP) the timing port stay optional.
var senderInfoRequired = []string{"name", "model", "deviceID", "macAddress", "ekey", "eiv", "timingProtocol"}

// requireKeys reports the first mandatory key absent from the wire
// dictionary. Absent required fields fail the SETUP; they are never
// defaulted.
func requireKeys(dict map[string]any, keys []string) error {
	for _, key := range keys {
		if _, ok := dict[key]; !ok {
			return &MissingFieldError{Field: key}
		}
	}
	return nil
}

// DecodeSetup parses a SETUP payload. The request carries no explicit
// variant tag, so the shape is probed structurally; the probe is a
// public contract: a payload containing a "streams" key decodes as the
// per-stream variant, any other dictionary decodes as sender info.
func DecodeSetup(data []byte) (*SetupRequest, error) {
	var dict map[string]any
	if _, err := plist.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("rtsp: decode setup: %w", err)
	}

	raw, ok := dict["streams"]
	if !ok {
		return decodeSenderInfo(data, dict)
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("rtsp: streams key must hold an array")
	}
	reqs := make([]StreamRequest, 0, len(list))
	for i, el := range list {
		d, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rtsp: streams[%d]: %w", i, ErrNotDictionary)
		}
		r, err := decodeStreamRequest(d)
		if err != nil {
			return nil, fmt.Errorf("rtsp: streams[%d]: %w", i, err)
		}
		reqs = append(reqs, r)
	}
	return &SetupRequest{Streams: reqs}, nil
}

func decodeSenderInfo(data []byte, dict map[string]any) (*SetupRequest, error) {
	if err := requireKeys(dict, senderInfoRequired); err != nil {
		return nil, fmt.Errorf("rtsp: sender info: %w", err)
	}

	var info SenderInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("rtsp: decode sender info: %w", err)
	}
	switch info.TimingProtocol {
	case TimingPTP:
	case TimingNTP:
		// NTP carries the sender's remote timing port; PTP has none.
		if _, ok := dict["timingPort"]; !ok {
			return nil, fmt.Errorf("rtsp: sender info: %w", &MissingFieldError{Field: "timingPort"})
		}
	default:
		return nil, fmt.Errorf("rtsp: unknown timing protocol %q", info.TimingProtocol)
	}
	return &SetupRequest{SenderInfo: &info}, nil
}

// decodeStreamRequest reads the type tag first, then re-decodes the
// dictionary against the variant the registry selects.
func decodeStreamRequest(dict map[string]any) (StreamRequest, error) {
	raw, ok := dict["type"]
	if !ok {
		return nil, ErrMissingType
	}

	var ty uint64
	switch v := raw.(type) {
	case uint64:
		ty = v
	case int64:
		if v < 0 {
			return nil, ErrInvalidType
		}
		ty = uint64(v)
	default:
		return nil, ErrInvalidType
	}

	entry, ok := streamDecoders[StreamID(ty)]
	if !ok {
		return nil, &UnknownStreamTypeError{Type: ty}
	}
	if err := requireKeys(dict, entry.required); err != nil {
		return nil, err
	}

	envelope, err := plist.Marshal(dict, plist.BinaryFormat)
	if err != nil {
		return nil, fmt.Errorf("reencode stream request: %w", err)
	}
	return entry.decode(func(v any) error {
		_, err := plist.Unmarshal(envelope, v)
		return err
	})
}

// EncodeSetup renders a SETUP response as a binary property list. A
// non-nil Streams list selects the streams shape; otherwise the
// event/timing port pair is emitted.
func EncodeSetup(r *SetupResponse) ([]byte, error) {
	if r.Streams != nil {
		dicts := make([]map[string]any, 0, len(r.Streams))
		for _, sr := range r.Streams {
			dicts = append(dicts, sr.streamDict())
		}
		return plist.Marshal(map[string]any{"streams": dicts}, plist.BinaryFormat)
	}
	return plist.Marshal(map[string]any{
		"eventPort":  r.EventPort,
		"timingPort": r.TimingPort,
	}, plist.BinaryFormat)
}

// DecodeTeardown parses a TEARDOWN payload. An absent streams list is
// preserved as nil, meaning the whole session.
func DecodeTeardown(data []byte) (*Teardown, error) {
	var td Teardown
	if _, err := plist.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("rtsp: decode teardown: %w", err)
	}
	for i, s := range td.Streams {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("rtsp: streams[%d]: %w", i, &UnknownStreamTypeError{Type: uint64(s.Type)})
		}
	}
	return &td, nil
}
