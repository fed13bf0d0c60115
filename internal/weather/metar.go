package weather

// WindyMETARResponse Represents the JSON response from https://node.windy.com/airports/metar/{CODE}
// Matches the structure: { "source": "Internal", "trend": [ ... ] }
type WindyMETARResponse struct {
	Note   string       `json:"note,omitempty"`
	Source string       `json:"source"`
	Trend  []WindyMETAR `json:"trend"`
}

// WindyMETAR represents a single METAR observation in the "trend" list
type WindyMETAR struct {
	MetarRaw string `json:"metar"` // "KJFK 092251Z ..."
	Ux       int64  `json:"ux"`
	Type     string `json:"type"`
}

// latestRaw returns the most recent raw report in the trend list
func (r *WindyMETARResponse) latestRaw() string {
	var latest *WindyMETAR
	for i := range r.Trend {
		if latest == nil || r.Trend[i].Ux > latest.Ux {
			latest = &r.Trend[i]
		}
	}
	if latest == nil {
		return ""
	}
	return latest.MetarRaw
}
