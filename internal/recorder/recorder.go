// Package recorder captures playback into chunked video files. Chunks
// rotate when they cross the target size so every file stays below the
// hard maximum the downstream pipeline accepts.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default chunk sizing. The hard maximum leaves headroom over the target
// for the packet in flight plus the container trailer.
const (
	DefaultTargetChunkBytes = 200 << 20
	DefaultMaxChunkBytes    = 250 << 20
)

// Preset describes the capture settings for a session.
type Preset struct {
	FrameRate        int   `json:"frame_rate"`
	BitrateKbps      int   `json:"bitrate_kbps"`
	TargetChunkBytes int64 `json:"target_chunk_bytes"`
	MaxChunkBytes    int64 `json:"max_chunk_bytes"`
}

func (p Preset) validate() error {
	if p.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", p.FrameRate)
	}
	if p.TargetChunkBytes <= 0 || p.MaxChunkBytes <= 0 {
		return fmt.Errorf("chunk sizes must be positive")
	}
	if p.TargetChunkBytes >= p.MaxChunkBytes {
		return fmt.Errorf("target chunk size %d must be below hard maximum %d",
			p.TargetChunkBytes, p.MaxChunkBytes)
	}
	return nil
}

// Encoder turns raw frames into container packets. Start returns the
// container header written at the top of every chunk, Stop the trailer
// written at the end of the last one.
type Encoder interface {
	Start(preset Preset) ([]byte, error)
	Encode(frame []byte) ([]byte, error)
	Stop() ([]byte, error)
}

// ChunkInfo describes one finished chunk file.
type ChunkInfo struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Manifest is written next to the chunks when the session stops.
type Manifest struct {
	SessionID   string      `json:"session_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Preset      Preset      `json:"preset"`
	TotalFrames uint64      `json:"total_frames"`
	TotalBytes  int64       `json:"total_bytes"`
	Chunks      []ChunkInfo `json:"chunks"`
}

// Session records one capture run.
type Session struct {
	id       uuid.UUID
	basePath string
	preset   Preset
	enc      Encoder
	header   []byte

	chunkFile  *os.File
	chunkIndex int
	chunkBytes int64
	chunks     []ChunkInfo

	frameCount uint64
	totalBytes int64
	createdAt  time.Time

	mu     sync.Mutex
	closed bool
}

// NewSession starts a capture session writing chunks under basePath. An
// empty basePath records into a timestamped temp directory.
func NewSession(basePath string, preset Preset, enc Encoder) (*Session, error) {
	if preset.TargetChunkBytes == 0 {
		preset.TargetChunkBytes = DefaultTargetChunkBytes
	}
	if preset.MaxChunkBytes == 0 {
		preset.MaxChunkBytes = DefaultMaxChunkBytes
	}
	if preset.FrameRate == 0 {
		preset.FrameRate = 30
	}
	if err := preset.validate(); err != nil {
		return nil, fmt.Errorf("invalid recording preset: %w", err)
	}

	id := uuid.New()
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), fmt.Sprintf("flyover_rec_%s", id))
	}
	if err := os.MkdirAll(filepath.Join(basePath, "chunks"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	header, err := enc.Start(preset)
	if err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	s := &Session{
		id:         id,
		basePath:   basePath,
		preset:     preset,
		enc:        enc,
		header:     header,
		chunkIndex: -1,
		createdAt:  time.Now().UTC(),
	}
	if err := s.rotateChunk(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteFrame encodes one frame and appends it to the current chunk,
// rotating first when the packet would push the chunk past the target.
func (s *Session) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("recording session is closed")
	}

	pkt, err := s.enc.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	// Even a fresh chunk cannot hold a packet this large without crossing
	// the hard maximum.
	if int64(len(s.header))+int64(len(pkt)) > s.preset.MaxChunkBytes {
		return fmt.Errorf("encoded packet of %d bytes exceeds max chunk size %d",
			len(pkt), s.preset.MaxChunkBytes)
	}

	if s.chunkBytes+int64(len(pkt)) > s.preset.TargetChunkBytes && s.chunkBytes > int64(len(s.header)) {
		if err := s.rotateChunk(); err != nil {
			return err
		}
	}

	n, err := s.chunkFile.Write(pkt)
	if err != nil {
		return fmt.Errorf("failed to write frame packet: %w", err)
	}
	s.chunkBytes += int64(n)
	s.totalBytes += int64(n)
	s.frameCount++
	return nil
}

// rotateChunk closes the current chunk and opens the next, re-emitting
// the container header so every chunk plays standalone.
func (s *Session) rotateChunk() error {
	if err := s.closeChunk(); err != nil {
		return err
	}

	s.chunkIndex++
	path := filepath.Join(s.basePath, "chunks", fmt.Sprintf("chunk_%04d.mp4", s.chunkIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}

	n, err := f.Write(s.header)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write chunk header: %w", err)
	}

	s.chunkFile = f
	s.chunkBytes = int64(n)
	s.totalBytes += int64(n)
	return nil
}

func (s *Session) closeChunk() error {
	if s.chunkFile == nil {
		return nil
	}
	if err := s.chunkFile.Close(); err != nil {
		return fmt.Errorf("failed to close chunk file: %w", err)
	}
	s.chunks = append(s.chunks, ChunkInfo{
		Index: s.chunkIndex,
		Path:  s.chunkFile.Name(),
		Bytes: s.chunkBytes,
	})
	s.chunkFile = nil
	return nil
}

// Stop flushes the encoder trailer into the final chunk, closes it, and
// writes the session manifest. The returned manifest lists every chunk.
func (s *Session) Stop() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("recording session is closed")
	}
	s.closed = true

	trailer, err := s.enc.Stop()
	if err != nil {
		return nil, fmt.Errorf("failed to stop encoder: %w", err)
	}
	if len(trailer) > 0 && s.chunkFile != nil {
		n, werr := s.chunkFile.Write(trailer)
		if werr != nil {
			return nil, fmt.Errorf("failed to write chunk trailer: %w", werr)
		}
		s.chunkBytes += int64(n)
		s.totalBytes += int64(n)
	}
	if err := s.closeChunk(); err != nil {
		return nil, err
	}

	m := &Manifest{
		SessionID:   s.id.String(),
		CreatedAt:   s.createdAt,
		Preset:      s.preset,
		TotalFrames: s.frameCount,
		TotalBytes:  s.totalBytes,
		Chunks:      s.chunks,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.basePath, "manifest.json"), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return m, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id.String() }

// Path returns the session's base directory.
func (s *Session) Path() string { return s.basePath }

// FrameCount returns the number of frames written so far.
func (s *Session) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// ChunkIndex returns the index of the chunk currently being written.
func (s *Session) ChunkIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkIndex
}
