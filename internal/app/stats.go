package session

// Stats is a snapshot of the session counters.
type Stats struct {
	ID           string `json:"id"`
	Tracker      string `json:"tracker"`
	SampleRateHz int    `json:"sampleRateHz"`
	Recording    bool   `json:"recording"`
	Calibrating  bool   `json:"calibrating"`
	Seq          uint64 `json:"seq"`

	Polled     int64 `json:"polled"`
	PollErrors int64 `json:"pollErrors"`
	Published  int64 `json:"published"`
	Logged     int64 `json:"logged"`

	QueueLen      int `json:"queueLen"`
	QueueCapacity int `json:"queueCapacity"`

	Heartbeat         string `json:"heartbeat"`
	HeartbeatsSent    int64  `json:"heartbeatsSent"`
	HeartbeatsFailed  int64  `json:"heartbeatsFailed"`
	HeartbeatsSkipped int64  `json:"heartbeatsSkipped"`

	NoiseX     float64 `json:"noiseX"`
	NoiseY     float64 `json:"noiseY"`
	SpeedPx    float64 `json:"speedPx"`
	AccelPx    float64 `json:"accelPx"`
	FixationPx float64 `json:"fixationPx"`
}

// Stats returns the current counters. Before Start only the identity is set.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{ID: s.id}
	if s.device != nil {
		st.Tracker = s.device.Kind().String()
	}
	if !s.started {
		return st
	}

	st.SampleRateHz = s.info.SampleRateHz
	st.Recording = s.consumer.Recording()
	st.Calibrating = s.device.Calibrating()
	st.Seq = s.holder.Seq()
	st.Polled, st.PollErrors = s.producer.Polled()
	st.Published, st.Logged = s.consumer.Counts()
	st.QueueLen = s.queue.Len()
	st.QueueCapacity = s.queue.Capacity()

	hb := s.heartbeat.Stats()
	st.Heartbeat = s.heartbeat.State().String()
	st.HeartbeatsSent, st.HeartbeatsFailed, st.HeartbeatsSkipped = hb.Sent, hb.Failed, hb.Skipped

	st.NoiseX, st.NoiseY = s.thresholds.NoiseX, s.thresholds.NoiseY
	st.SpeedPx = s.thresholds.SpeedPx
	st.AccelPx = s.thresholds.AccelPx
	st.FixationPx = s.thresholds.FixationPx
	return st
}
