package http

import "net/http"

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching summary").Write(w)
		return
	}
	NewJSONResponse().Data(sum).Write(w)
}

// handleStatistics serves the trend, growth, breakdown and top list for
// ?months=&category=&limit=.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseStatisticsOptions(r.URL.Query())
	if err != nil {
		ServiceErrorResponse(r, err, "Invalid statistics parameters").Write(w)
		return
	}

	st, err := s.svc.Statistics(r.Context(), opts)
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching statistics").Write(w)
		return
	}
	NewJSONResponse().Data(st).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard(r.Context())
	if err != nil {
		ServiceErrorResponse(r, err, "Error fetching dashboard").Write(w)
		return
	}
	NewJSONResponse().Data(d).Write(w)
}
