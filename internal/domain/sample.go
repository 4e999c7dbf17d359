package domain

// Channel names a physiological signal stream.
type Channel string

const (
	// ChannelECG is the analysis lead (lead II). Beat detection always runs on it.
	ChannelECG Channel = "ecg"
	// ChannelECGLead is the ECG as rendered for the currently selected lead.
	ChannelECGLead Channel = "ecg_lead"
	ChannelPleth   Channel = "pleth"
	ChannelResp    Channel = "resp"
)

// Sample is one timestamped reading. Time is simulated seconds since start.
type Sample struct {
	Time  float64 `json:"t"`
	Value float64 `json:"v"`
}

// Chunk groups the samples produced for each channel during one tick.
type Chunk map[Channel][]Sample

// Beat is a detected R-peak instant.
type Beat struct {
	Time float64 `json:"t"`
}

// RRInterval is the spacing between two consecutive beats. Duration is always positive.
type RRInterval struct {
	Start    Beat
	End      Beat
	Duration float64
}
