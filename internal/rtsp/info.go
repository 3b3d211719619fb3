package rtsp

import (
	"fmt"

	"howett.net/plist"
)

// InfoResponse is the receiver-capability payload advertised to senders
// before negotiation begins.
type InfoResponse struct {
	DeviceID        string    `plist:"deviceid"`
	MacAddr         string    `plist:"macAddress"`
	Features        uint64    `plist:"features"`
	Manufacturer    string    `plist:"manufacturer"`
	Model           string    `plist:"model"`
	Name            string    `plist:"name"`
	ProtocolVersion string    `plist:"protocolVersion"`
	SourceVersion   string    `plist:"sourceVersion"`
	Displays        []Display `plist:"displays"`
}

// Display describes one output surface the receiver can drive.
type Display struct {
	Width    uint32 `plist:"widthPixels"`
	Height   uint32 `plist:"heightPixels"`
	UUID     string `plist:"uuid"`
	MaxFPS   uint32 `plist:"maxFPS"`
	Features uint32 `plist:"features"`
}

// EncodeInfo renders the capability payload as a binary property list.
func EncodeInfo(r *InfoResponse) ([]byte, error) {
	data, err := plist.Marshal(r, plist.BinaryFormat)
	if err != nil {
		return nil, fmt.Errorf("rtsp: encode info: %w", err)
	}
	return data, nil
}
