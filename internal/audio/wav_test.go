package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWrapPCMHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := WrapPCM(pcm, Format{SampleRate: 24000, Channels: 1, BitDepth: 16})

	if len(wav) != 44+len(pcm) {
		t.Fatalf("length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Errorf("byte rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if string(wav[44:]) != string(pcm) {
		t.Error("PCM payload not preserved")
	}
}

func TestWrapPCMZeroFormatDefaults(t *testing.T) {
	wav := WrapPCM(nil, Format{})
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != uint32(DefaultFormat.SampleRate) {
		t.Errorf("sample rate = %d, want default %d", got, DefaultFormat.SampleRate)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	s := NewStore(t.TempDir())

	data := []byte("fake wav bytes")
	path, err := s.Save("batch-1", "alice-1", data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "alice-1.wav" {
		t.Errorf("path = %q, want alice-1.wav basename", path)
	}

	got, err := s.Load("batch-1", "alice-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(data) {
		t.Error("loaded data differs from saved data")
	}
	if !s.Exists("batch-1", "alice-1") {
		t.Error("Exists = false for saved clip")
	}
	if s.Exists("batch-1", "nope") {
		t.Error("Exists = true for missing clip")
	}
}

func TestStoreSanitizesIDs(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	if _, err := s.Save("../escape", "also/../bad", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Nothing may be written outside the store root.
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); err == nil {
		t.Error("store wrote outside its root")
	}
}

func TestStoreRemoveBatch(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Save("b", "r", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.RemoveBatch("b"); err != nil {
		t.Fatalf("RemoveBatch: %v", err)
	}
	if s.Exists("b", "r") {
		t.Error("clip still exists after RemoveBatch")
	}
}
