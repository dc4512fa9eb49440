package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/emg_monitor/internal/emg"
	"github.com/relabs-tech/emg_monitor/internal/npz"
	"github.com/relabs-tech/emg_monitor/internal/vision"
)

// ErrNotFinalized guards against archiving a session that is still being
// written to.
var ErrNotFinalized = errors.New("record: session not finalized")

// ArchiveName builds the session filename: motion_<label>_<stamp>.npz.
func ArchiveName(label string, start time.Time) string {
	return fmt.Sprintf("motion_%s_%s.npz", label, start.Format("20060102_150405"))
}

// WriteArchive persists a finalized session into dir and returns the
// archive path. Row i of every array refers to the same tick; that
// alignment is the compatibility contract downstream consumers rely on.
func WriteArchive(dir string, s *Session) (string, error) {
	if !s.Finalized() {
		return "", ErrNotFinalized
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating recordings dir: %w", err)
	}

	frames := s.Frames()
	n := len(frames)

	timestamps := make([]float32, n)
	emgData := make([]float32, 0, n*emg.NumChannels)
	landmarks := make([]float32, 0, n*vision.NumLandmarks*3)
	valid := make([]bool, n)

	for i, f := range frames {
		timestamps[i] = float32(f.Timestamp)
		for _, v := range f.Values {
			emgData = append(emgData, float32(v))
		}
		for _, pt := range f.Landmarks {
			landmarks = append(landmarks, float32(pt[0]), float32(pt[1]), float32(pt[2]))
		}
		valid[i] = f.LandmarksValid
	}

	meta, err := json.Marshal(s.Metadata())
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}

	path := filepath.Join(dir, ArchiveName(s.Label, s.StartTime()))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer file.Close()

	w := npz.NewWriter(file)
	if err := w.Float32("timestamps", []int{n}, timestamps); err != nil {
		return "", err
	}
	if err := w.Float32("emg_data", []int{n, emg.NumChannels}, emgData); err != nil {
		return "", err
	}
	if err := w.Float32("landmarks", []int{n, vision.NumLandmarks, 3}, landmarks); err != nil {
		return "", err
	}
	if err := w.Bool("landmarks_valid", valid); err != nil {
		return "", err
	}
	if err := w.Bytes("metadata", meta); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}
	return path, nil
}

// ArchiveData holds the decoded arrays of one recording, mainly for
// verification and the sessions tool.
type ArchiveData struct {
	Timestamps []float32
	EMG        []float32 // row-major [N][NumChannels]
	Landmarks  []float32 // row-major [N][NumLandmarks][3]
	Valid      []bool
	Meta       Metadata
	NumFrames  int
}

// ReadArchive opens an NPZ recording and validates the row alignment.
func ReadArchive(path string) (*ArchiveData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	arrays, err := npz.Read(file, info.Size())
	if err != nil {
		return nil, err
	}

	data := &ArchiveData{}
	ts, ok := arrays["timestamps"]
	if !ok {
		return nil, fmt.Errorf("archive missing timestamps")
	}
	if data.Timestamps, err = ts.Float32(); err != nil {
		return nil, err
	}
	data.NumFrames = len(data.Timestamps)

	ed, ok := arrays["emg_data"]
	if !ok {
		return nil, fmt.Errorf("archive missing emg_data")
	}
	if data.EMG, err = ed.Float32(); err != nil {
		return nil, err
	}
	lm, ok := arrays["landmarks"]
	if !ok {
		return nil, fmt.Errorf("archive missing landmarks")
	}
	if data.Landmarks, err = lm.Float32(); err != nil {
		return nil, err
	}
	lv, ok := arrays["landmarks_valid"]
	if !ok {
		return nil, fmt.Errorf("archive missing landmarks_valid")
	}
	if data.Valid, err = lv.Bool(); err != nil {
		return nil, err
	}

	if md, ok := arrays["metadata"]; ok {
		raw, err := md.Bytes()
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &data.Meta); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}

	n := data.NumFrames
	if len(data.EMG) != n*emg.NumChannels ||
		len(data.Landmarks) != n*vision.NumLandmarks*3 ||
		len(data.Valid) != n {
		return nil, fmt.Errorf("archive arrays misaligned: %d frames, %d emg, %d landmarks, %d valid",
			n, len(data.EMG), len(data.Landmarks), len(data.Valid))
	}
	return data, nil
}
