package emg

// NumChannels is the number of electrode channels carried by every sample.
// The wire protocol and the recording format both fix this at 8.
const NumChannels = 8

// SampleRate is the nominal acquisition rate in Hz.
const SampleRate = 200

// Sample represents one acquisition tick across all channels.
type Sample struct {
	Timestamp float64              `json:"t"`      // seconds since session/stream start
	Values    [NumChannels]float64 `json:"values"` // µV per channel
	Seq       uint8                `json:"seq"`    // device sequence counter (mod 256)
}

// IMUSample represents one inertial reading interleaved in the device stream.
type IMUSample struct {
	Timestamp float64 `json:"t"`

	Gx float64 `json:"gx"` // rad/s
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`

	Ax float64 `json:"ax"` // m/s²
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
}
