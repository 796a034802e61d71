package httpapi

import (
	"time"

	"github.com/streampay/streampay/internal/domain/amount"
	domainStream "github.com/streampay/streampay/internal/domain/stream"
)

// streamView is the wire shape of a stream: stored fields plus the derived
// status, vesting amounts, and display strings at the service clock's now.
type streamView struct {
	ID               int64      `json:"id"`
	Sender           string     `json:"sender"`
	Recipient        string     `json:"recipient"`
	TotalAmount      uint64     `json:"totalAmount"`
	TotalDisplay     string     `json:"totalDisplay"`
	DurationSeconds  int64      `json:"durationSeconds"`
	DurationDisplay  string     `json:"durationDisplay"`
	Status           string     `json:"status"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	ClaimedAmount    uint64     `json:"claimedAmount"`
	ClaimedDisplay   string     `json:"claimedDisplay"`
	Vested           uint64     `json:"vested"`
	Claimable        uint64     `json:"claimable"`
	ClaimableDisplay string     `json:"claimableDisplay"`
	RatePerSecond    string     `json:"ratePerSecond"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (s *Server) streamView(st *domainStream.Stream) streamView {
	now := s.streamSvc.Now()
	v := streamView{
		ID:              st.ID,
		Sender:          st.Sender,
		Recipient:       st.Recipient,
		TotalAmount:     uint64(st.TotalAmount),
		TotalDisplay:    st.TotalAmount.String(),
		DurationSeconds: st.DurationSeconds,
		DurationDisplay: amount.FormatDuration(time.Duration(st.DurationSeconds) * time.Second),
		Status:          string(domainStream.Classify(st, now)),
		StartTime:       st.StartTime,
		ClaimedAmount:   uint64(st.ClaimedAmount),
		ClaimedDisplay:  st.ClaimedAmount.String(),
		RatePerSecond:   domainStream.Rate(st).FloatString(8),
		CreatedAt:       st.CreatedAt,
	}
	if st.StartTime != nil {
		end := st.EndTime()
		v.EndTime = &end
	}
	if vested, err := domainStream.VestedAt(st, now); err == nil {
		v.Vested = uint64(vested)
	}
	if claimable, err := domainStream.ClaimableAt(st, now); err == nil {
		v.Claimable = uint64(claimable)
		v.ClaimableDisplay = claimable.String()
	}
	return v
}

func (s *Server) streamViews(streams []*domainStream.Stream) []streamView {
	views := make([]streamView, 0, len(streams))
	for _, st := range streams {
		views = append(views, s.streamView(st))
	}
	return views
}
