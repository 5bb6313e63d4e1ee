package recorder

import (
	"encoding/binary"
	"fmt"
)

// PassthroughEncoder writes frames as length-prefixed packets with a small
// session header. The headless driver uses it where no hardware encoder is
// available; a chunk is then a raw frame stream rather than a true mp4.
type PassthroughEncoder struct {
	started bool
}

func (e *PassthroughEncoder) Start(preset Preset) ([]byte, error) {
	if e.started {
		return nil, fmt.Errorf("encoder already started")
	}
	e.started = true

	header := make([]byte, 12)
	copy(header, "FLYR")
	binary.LittleEndian.PutUint32(header[4:], uint32(preset.FrameRate))
	binary.LittleEndian.PutUint32(header[8:], uint32(preset.BitrateKbps))
	return header, nil
}

func (e *PassthroughEncoder) Encode(frame []byte) ([]byte, error) {
	if !e.started {
		return nil, fmt.Errorf("encoder not started")
	}
	pkt := make([]byte, 4+len(frame))
	binary.LittleEndian.PutUint32(pkt, uint32(len(frame)))
	copy(pkt[4:], frame)
	return pkt, nil
}

func (e *PassthroughEncoder) Stop() ([]byte, error) {
	if !e.started {
		return nil, fmt.Errorf("encoder not started")
	}
	e.started = false
	return []byte("FEND"), nil
}
